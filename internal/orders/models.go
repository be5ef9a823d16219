package orders

import (
	"time"

	"github.com/google/uuid"
)

// Order JSON tags match the published wire format, so the HTTP response and
// the order-created event describe an order with the same field names.
type Order struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"ownerId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"orderDate"`
	UpdatedAt time.Time `json:"lastUpdated"`
}

type DeliveryState string

const (
	DeliveryUnsent DeliveryState = "unsent"
	DeliverySent   DeliveryState = "sent"
	DeliveryFailed DeliveryState = "failed"
)

// OutboxRecord is written in the same transaction as its Order and tracks
// delivery of the order-created event. Version guards concurrent updates:
// a writer holding a stale version gets ErrConflict.
type OutboxRecord struct {
	OrderID       uuid.UUID
	Payload       []byte
	DeliveryState DeliveryState
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	Version       int64
	CreatedAt     time.Time
}
