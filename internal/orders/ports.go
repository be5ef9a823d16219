package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable storage consumed by the coordinator and the HTTP
// boundary. CreateOrder writes the order and its outbox record as one unit:
// both become visible or neither does.
type Store interface {
	CreateOrder(ctx context.Context, order Order, rec OutboxRecord) error
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListOrdersByOwner(ctx context.Context, ownerID string) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status Status, updatedAt time.Time) (Order, error)

	GetOutbox(ctx context.Context, orderID uuid.UUID) (OutboxRecord, error)
	// UpdateOutboxState applies upd only when upd.Version matches the stored
	// record; a stale version fails with ErrConflict and the caller re-reads.
	UpdateOutboxState(ctx context.Context, upd OutboxUpdate) error
	// DueOutbox returns records still awaiting delivery: state in
	// {unsent, failed}, attempts below maxAttempts, next attempt due.
	DueOutbox(ctx context.Context, limit, maxAttempts int, now time.Time) ([]OutboxRecord, error)
}

type OutboxUpdate struct {
	OrderID       uuid.UUID
	State         DeliveryState
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	Version       int64
}

// Publisher hands a message to the broker. A nil error means broker-side
// acceptance, not consumer receipt.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}
