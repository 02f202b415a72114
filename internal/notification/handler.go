package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// Mailer sends the storefront's notification emails.
type Mailer interface {
	SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []email.OrderItem) error
	SendStatusUpdate(to, orderID string, status model.OrderStatus) error
	SendLowStockAlert(to string, alert email.LowStock) error
}

var _ Mailer = (*email.Service)(nil)

// Handler processes events for sending notifications
type Handler struct {
	mailer            Mailer
	users             store.UserStore
	adminEmail        string
	lowStockThreshold int
}

// NewHandler creates a new notification handler. Low stock alerts are off
// when adminEmail is empty.
func NewHandler(mailer Mailer, users store.UserStore, adminEmail string, lowStockThreshold int) *Handler {
	return &Handler{
		mailer:            mailer,
		users:             users,
		adminEmail:        adminEmail,
		lowStockThreshold: lowStockThreshold,
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case events.TypeOrderPlaced:
		var e events.OrderPlaced
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return h.handleOrderPlaced(ctx, e)
	case events.TypeOrderStatusChanged:
		var e events.OrderStatusChanged
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return h.handleStatusChanged(ctx, e)
	case events.TypeInventoryRecorded:
		var e events.InventoryRecorded
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return h.handleInventoryRecorded(ctx, e)
	}
	return nil
}

// recipient looks up the customer's address. A missing user is logged and
// skipped: there is nobody to notify.
func (h *Handler) recipient(ctx context.Context, userID string) (string, bool, error) {
	u, err := h.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		zerolog.Ctx(ctx).Warn().Str("user_id", userID).Msg("user not found, notification skipped")
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load user %s: %w", userID, err)
	}
	return u.Email, true, nil
}

func (h *Handler) handleOrderPlaced(ctx context.Context, e events.OrderPlaced) error {
	to, ok, err := h.recipient(ctx, e.UserID)
	if err != nil || !ok {
		return err
	}

	items := make([]email.OrderItem, len(e.Lines))
	for i, l := range e.Lines {
		items[i] = email.OrderItem{
			ProductID: l.ProductID,
			Name:      l.ProductName,
			Quantity:  l.Quantity,
			Price:     l.UnitPriceAtPurchase,
		}
	}

	if err := h.mailer.SendOrderConfirmation(to, e.OrderID, e.TotalAmount, items); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("order_id", e.OrderID).Msg("order confirmation sent")
	return nil
}

func (h *Handler) handleStatusChanged(ctx context.Context, e events.OrderStatusChanged) error {
	to, ok, err := h.recipient(ctx, e.UserID)
	if err != nil || !ok {
		return err
	}
	if err := h.mailer.SendStatusUpdate(to, e.OrderID, e.To); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("order_id", e.OrderID).Str("status", string(e.To)).Msg("status update sent")
	return nil
}

// handleInventoryRecorded alerts once, when stock crosses down to the
// threshold, not on every sale below it.
func (h *Handler) handleInventoryRecorded(ctx context.Context, e events.InventoryRecorded) error {
	if h.adminEmail == "" {
		return nil
	}
	entry := e.Entry
	before := entry.ResultingStock - entry.QuantityChanged
	if entry.QuantityChanged >= 0 || entry.ResultingStock > h.lowStockThreshold || before <= h.lowStockThreshold {
		return nil
	}

	name := e.ProductName
	if name == "" {
		name = entry.ProductID
	}
	alert := email.LowStock{
		ProductID:   entry.ProductID,
		ProductName: name,
		Stock:       entry.ResultingStock,
		Threshold:   h.lowStockThreshold,
	}
	if err := h.mailer.SendLowStockAlert(h.adminEmail, alert); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("product_id", entry.ProductID).Int("stock", entry.ResultingStock).Msg("low stock alert sent")
	return nil
}
