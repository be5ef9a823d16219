package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// Completed and Cancelled are terminal: nothing moves out of them.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func ToStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validNext[status]; !ok {
		return "", fmt.Errorf("unknown status %q: %w", s, ErrValidation)
	}
	return status, nil
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Lifecycle owns order construction and the status state machine.
// Transitions triggered by external workflows go through Apply.
type Lifecycle struct {
	now func() time.Time
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{now: func() time.Time { return time.Now().UTC() }}
}

// NewOrder builds the initial Pending order. The owner always comes from the
// authenticated caller, never from request input.
func (l *Lifecycle) NewOrder(ownerID, productID string, quantity int) Order {
	now := l.now()
	return Order{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (l *Lifecycle) CanTransition(from, to Status) bool {
	return CanTransition(from, to)
}

// Apply moves an order to the target status, refreshing UpdatedAt. On an
// illegal transition the returned order is the input, unchanged.
func (l *Lifecycle) Apply(o Order, to Status) (Order, error) {
	if !CanTransition(o.Status, to) {
		return o, fmt.Errorf("%s -> %s: %w", o.Status, to, ErrIllegalTransition)
	}
	o.Status = to
	o.UpdatedAt = l.now()
	return o, nil
}
