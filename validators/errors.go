package validators

import (
	"order-matching-core/models"
)

// OrderValidationError is the typed failure every validation check raises.
// It carries the order status the rejected order ends up with, so all
// downstream handling stays uniform.
type OrderValidationError struct {
	Status models.OrderStatus
	Reason string
}

func (e *OrderValidationError) Error() string {
	return e.Reason
}

func newValidationError(status models.OrderStatus, reason string) *OrderValidationError {
	return &OrderValidationError{Status: status, Reason: reason}
}
