package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Periodic runs a work function on a fixed interval until its context is
// cancelled or Stop is called. The first pass runs immediately on Start, so a
// restarted process recovers backlog without waiting out a full interval.
type Periodic struct {
	name     string
	interval time.Duration
	logger   *zap.Logger
	work     func(ctx context.Context) error

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewPeriodic(name string, interval time.Duration, logger *zap.Logger, work func(ctx context.Context) error) *Periodic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Periodic{
		name:     name,
		interval: interval,
		logger:   logger,
		work:     work,
		stopped:  make(chan struct{}),
	}
}

// Start blocks until the worker stops. Run it on its own goroutine.
func (p *Periodic) Start(ctx context.Context) {
	p.logger.Info("worker started",
		zap.String("worker", p.name),
		zap.Duration("interval", p.interval))
	defer p.logger.Info("worker stopped", zap.String("worker", p.name))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case <-ticker.C:
			select {
			case <-p.stopped:
				return
			default:
			}
			p.run(ctx)
		}
	}
}

func (p *Periodic) run(ctx context.Context) {
	p.wg.Add(1)
	defer p.wg.Done()

	if ctx.Err() != nil {
		return
	}
	if err := p.work(ctx); err != nil {
		p.logger.Error("worker pass failed",
			zap.String("worker", p.name),
			zap.Error(err))
	}
}

// Stop signals the loop to exit and waits for an in-flight pass to finish.
// Safe to call more than once.
func (p *Periodic) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopped)
		p.wg.Wait()
	})
}

func (p *Periodic) Name() string { return p.name }
