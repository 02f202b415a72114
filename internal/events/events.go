// Package events defines the domain events the storefront publishes after a
// state change commits, and the publisher abstraction services depend on.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/model"
)

const (
	TypeInventoryRecorded  = "inventory.recorded"
	TypeOrderPlaced        = "order.placed"
	TypeOrderStatusChanged = "order.status_changed"
)

// Envelope is the wire format of every event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope wraps data into an envelope keyed by key.
func NewEnvelope(eventType, key string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         uuid.New().String(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

type InventoryRecorded struct {
	Entry       model.InventoryLogEntry `json:"entry"`
	ProductName string                  `json:"product_name"`
}

type OrderPlaced struct {
	OrderID     string            `json:"order_id"`
	UserID      string            `json:"user_id"`
	Lines       []model.OrderLine `json:"lines"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	PlacedAt    time.Time         `json:"placed_at"`
}

type OrderStatusChanged struct {
	OrderID   string            `json:"order_id"`
	UserID    string            `json:"user_id"`
	From      model.OrderStatus `json:"from"`
	To        model.OrderStatus `json:"to"`
	Actor     string            `json:"actor"`
	ChangedAt time.Time         `json:"changed_at"`
}

// Publisher delivers envelopes to subscribers. Implementations must be safe
// for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Emit publishes data as an event after the corresponding state change has
// committed. Delivery is best-effort: failures are logged, never returned.
func Emit(ctx context.Context, pub Publisher, eventType, key string, data any) {
	if pub == nil {
		return
	}
	env, err := NewEnvelope(eventType, key, data)
	if err == nil {
		err = pub.Publish(ctx, key, env)
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("event_type", eventType).
			Str("key", key).
			Msg("event publish failed")
	}
}
