package orders

import "errors"

var (
	ErrValidation        = errors.New("invalid order input")
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("outbox version conflict")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrDeliveryExhausted = errors.New("delivery attempts exhausted")
)
