package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPublishTimeout = 5 * time.Second
	defaultMaxAttempts    = 5
	defaultSweepBatchSize = 50

	// Bound on transparent re-reads after an optimistic-lock conflict.
	maxConflictRetries = 3
)

// ExhaustedFunc is invoked once per outbox record when its delivery attempts
// run out. The record is terminally failed at that point, never retried again.
type ExhaustedFunc func(rec OutboxRecord, err error)

// Coordinator sequences the durable order write and the event publication.
// The write commits first; publication is at-least-once, with the sweep
// redelivering anything the initial attempt could not get out.
type Coordinator struct {
	store          Store
	publisher      Publisher
	lifecycle      *Lifecycle
	logger         *zap.Logger
	topic          string
	publishTimeout time.Duration
	maxAttempts    int
	sweepBatchSize int
	backoff        Backoff
	onExhausted    ExhaustedFunc
	now            func() time.Time
}

type CoordinatorOption func(*Coordinator)

func WithLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

func WithTopic(topic string) CoordinatorOption {
	return func(c *Coordinator) { c.topic = topic }
}

func WithPublishTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.publishTimeout = d }
}

func WithMaxAttempts(n int) CoordinatorOption {
	return func(c *Coordinator) { c.maxAttempts = n }
}

func WithSweepBatchSize(n int) CoordinatorOption {
	return func(c *Coordinator) { c.sweepBatchSize = n }
}

func WithBackoff(b Backoff) CoordinatorOption {
	return func(c *Coordinator) { c.backoff = b }
}

func WithExhaustedHook(fn ExhaustedFunc) CoordinatorOption {
	return func(c *Coordinator) { c.onExhausted = fn }
}

func WithLifecycle(l *Lifecycle) CoordinatorOption {
	return func(c *Coordinator) { c.lifecycle = l }
}

func NewCoordinator(store Store, publisher Publisher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:          store,
		publisher:      publisher,
		lifecycle:      NewLifecycle(),
		logger:         zap.NewNop(),
		topic:          TopicOrderCreated,
		publishTimeout: defaultPublishTimeout,
		maxAttempts:    defaultMaxAttempts,
		sweepBatchSize: defaultSweepBatchSize,
		backoff:        Backoff{Base: 5 * time.Second, Max: 5 * time.Minute},
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates the request, persists the order together with its outbox
// record, and makes a best-effort first publish. A failed publish does not
// fail the call: the durable write already committed and the sweep owns
// redelivery from here.
func (c *Coordinator) Submit(ctx context.Context, ownerID, productID string, quantity int) (Order, error) {
	if ownerID == "" {
		return Order{}, fmt.Errorf("ownerId is required: %w", ErrValidation)
	}
	if productID == "" {
		return Order{}, fmt.Errorf("productId is required: %w", ErrValidation)
	}
	if quantity < 1 {
		return Order{}, fmt.Errorf("quantity must be at least 1, got %d: %w", quantity, ErrValidation)
	}

	order := c.lifecycle.NewOrder(ownerID, productID, quantity)

	payload, err := json.Marshal(NewOrderCreatedEvent(order))
	if err != nil {
		return Order{}, fmt.Errorf("marshal creation event: %w", err)
	}

	rec := OutboxRecord{
		OrderID:       order.ID,
		Payload:       payload,
		DeliveryState: DeliveryUnsent,
		NextAttemptAt: order.CreatedAt,
	}
	if err := c.store.CreateOrder(ctx, order, rec); err != nil {
		return Order{}, fmt.Errorf("store.CreateOrder: %w", err)
	}

	if err := c.deliver(ctx, rec); err != nil {
		c.logger.Warn("initial publish failed, sweep will retry",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}

	return order, nil
}
