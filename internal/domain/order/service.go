package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/ec-storefront/internal/domain/apperr"
	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

const transitionAttempts = 3

var (
	ErrOrderNotFound = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrInvalidStatus = apperr.Invalid("unknown order status")
)

// Service manages placed orders: lookups and the status lifecycle.
type Service struct {
	orders    store.OrderStore
	ledger    StockLedger
	publisher events.Publisher
	cfg       Config
	now       func() time.Time
}

func NewService(orders store.OrderStore, ledger StockLedger, publisher events.Publisher, cfg Config) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		orders:    orders,
		ledger:    ledger,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// GetForUser returns the order only if userID owns it. Orders of other users
// are reported as not found.
func (s *Service) GetForUser(ctx context.Context, userID, id string) (*model.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]model.Order, error) {
	return s.List(ctx, model.OrderFilter{UserID: userID})
}

func (s *Service) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Transition moves an order to target. The status write is a compare-and-swap
// on the status that was validated, so two racing transitions cannot both
// succeed from the same state.
func (s *Service) Transition(ctx context.Context, id string, target model.OrderStatus, actor string) (*model.Order, error) {
	if !target.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.transition(ctx, id, target, actor, func(*model.Order) error { return nil })
}

// CancelOwn lets a customer cancel one of their own orders while it is still
// Pending.
func (s *Service) CancelOwn(ctx context.Context, userID, id string) (*model.Order, error) {
	return s.transition(ctx, id, model.OrderCancelled, userID, func(o *model.Order) error {
		if o.UserID != userID {
			return ErrOrderNotFound
		}
		if o.Status != model.OrderPending {
			return ErrNotPending
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id string, target model.OrderStatus, actor string, check func(*model.Order) error) (*model.Order, error) {
	for attempt := 1; attempt <= transitionAttempts; attempt++ {
		o, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := check(o); err != nil {
			return nil, err
		}
		if !CanTransition(o.Status, target) {
			return nil, transitionError(o.Status, target)
		}

		from := o.Status
		at := s.now().UTC()
		err = s.orders.UpdateOrderStatus(ctx, id, from, target, at)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("update order %s: %w", id, err)
		}

		o.Status = target
		o.UpdatedAt = at
		s.afterTransition(ctx, o, from, actor)
		return o, nil
	}
	return nil, fmt.Errorf("order %s kept changing: %w", id, apperr.ErrConflict)
}

func (s *Service) afterTransition(ctx context.Context, o *model.Order, from model.OrderStatus, actor string) {
	logger := zerolog.Ctx(ctx)

	if o.Status == model.OrderCancelled && restoresStock(from) {
		items := make([]restoreItem, 0, len(o.Lines))
		for _, l := range o.Lines {
			items = append(items, restoreItem{productID: l.ProductID, quantity: l.Quantity})
		}
		reason := fmt.Sprintf("order cancelled from %s", from)
		if failed := restoreStock(ctx, s.ledger, s.cfg.CompensationTimeout, o.ID, actor, reason, items); len(failed) > 0 {
			logger.Error().Str("order_id", o.ID).Int("unrestored_lines", len(failed)).Msg("cancelled order stock only partly restored")
		}
	}

	logger.Info().
		Str("order_id", o.ID).
		Str("from", string(from)).
		Str("to", string(o.Status)).
		Str("actor", actor).
		Msg("order status changed")

	events.Emit(ctx, s.publisher, events.TypeOrderStatusChanged, o.ID, events.OrderStatusChanged{
		OrderID:   o.ID,
		UserID:    o.UserID,
		From:      from,
		To:        o.Status,
		Actor:     actor,
		ChangedAt: o.UpdatedAt,
	})
}
