package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrNotReady is returned by Publish before the broker connection has been
// verified. Callers fail fast instead of blocking on an absent broker.
var ErrNotReady = errors.New("kafka producer not ready")

// Producer is a synchronous publisher: Publish returns only after the broker
// acknowledged the write (acks=all) or the bounded timeout elapsed.
type Producer struct {
	w       *kafka.Writer
	brokers []string
	timeout time.Duration
	redial  time.Duration
	logger  *zap.Logger
	ready   atomic.Bool
}

type ProducerOption func(*Producer)

func WithLogger(logger *zap.Logger) ProducerOption {
	return func(p *Producer) { p.logger = logger }
}

func WithPublishTimeout(d time.Duration) ProducerOption {
	return func(p *Producer) { p.timeout = d }
}

func WithRedialInterval(d time.Duration) ProducerOption {
	return func(p *Producer) { p.redial = d }
}

func NewProducer(brokers []string, opts ...ProducerOption) *Producer {
	p := &Producer{
		brokers: brokers,
		timeout: 5 * time.Second,
		redial:  3 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return p
}

// Start verifies broker connectivity in the background and marks the producer
// ready once a broker answers. Until then Publish fails fast with ErrNotReady.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		for {
			if err := p.dial(ctx); err != nil {
				p.logger.Warn("kafka broker not reachable, will retry",
					zap.Strings("brokers", p.brokers),
					zap.Error(err))
			} else {
				p.ready.Store(true)
				p.logger.Info("kafka producer ready", zap.Strings("brokers", p.brokers))
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.redial):
			}
		}
	}()
}

func (p *Producer) dial(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := kafka.DialContext(dctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.brokers[0], err)
	}
	defer conn.Close()

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("list brokers: %w", err)
	}
	return nil
}

// Publish writes one keyed message to the topic. A nil error means the broker
// accepted the message, not that any consumer saw it.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if !p.ready.Load() {
		return ErrNotReady
	}

	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.w.WriteMessages(wctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("write message to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	p.ready.Store(false)
	return p.w.Close()
}
