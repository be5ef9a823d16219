package orders

import "time"

// OrderCreatedEvent is the message published on TopicOrderCreated, keyed by
// the order id so consumers can deduplicate redeliveries.
type OrderCreatedEvent struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	ProductID   string    `json:"productId"`
	Quantity    int       `json:"quantity"`
	Status      Status    `json:"status"`
	OrderDate   time.Time `json:"orderDate"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// NewOrderCreatedEvent snapshots an order at creation time.
func NewOrderCreatedEvent(o Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		ID:          o.ID.String(),
		OwnerID:     o.OwnerID,
		ProductID:   o.ProductID,
		Quantity:    o.Quantity,
		Status:      o.Status,
		OrderDate:   o.CreatedAt,
		LastUpdated: o.UpdatedAt,
	}
}
