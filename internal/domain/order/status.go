package order

import (
	"fmt"

	"github.com/example/ec-storefront/internal/domain/apperr"
	"github.com/example/ec-storefront/internal/domain/model"
)

var (
	ErrOrderCancelled = fmt.Errorf("order is already cancelled: %w", apperr.ErrInvalidTransition)
	ErrOrderCompleted = fmt.Errorf("order is already completed: %w", apperr.ErrInvalidTransition)
	ErrNotPending     = fmt.Errorf("only pending orders can be cancelled by the customer: %w", apperr.ErrInvalidTransition)
)

// validTransitions defines allowed state transitions
var validTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPending:    {model.OrderProcessing, model.OrderCancelled},
	model.OrderProcessing: {model.OrderShipped, model.OrderCancelled},
	model.OrderShipped:    {model.OrderCompleted, model.OrderCancelled},
	model.OrderCompleted:  {}, // terminal state
	model.OrderCancelled:  {}, // terminal state
}

// CanTransition checks if an order in from may move to target
func CanTransition(from, target model.OrderStatus) bool {
	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func transitionError(from, target model.OrderStatus) error {
	switch {
	case from == model.OrderCancelled:
		return ErrOrderCancelled
	case from == model.OrderCompleted:
		return ErrOrderCompleted
	default:
		return fmt.Errorf("%w: cannot move order from %s to %s", apperr.ErrInvalidTransition, from, target)
	}
}

// restoresStock reports whether cancelling from status puts the goods back on
// the shelf. Shipped goods have left the warehouse.
func restoresStock(from model.OrderStatus) bool {
	return from == model.OrderPending || from == model.OrderProcessing
}
