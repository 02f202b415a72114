// Package inventory implements the stock ledger: the single writer of
// product stock. Every change is an immutable entry, and a product's stock
// always equals the sum of its entries.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/ec-storefront/internal/domain/apperr"
	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/pkg/keylock"
)

const (
	DefaultMaxRetries = 5
	defaultPageSize   = 100
	defaultBackoff    = 2 * time.Millisecond
)

var (
	ErrProductNotFound  = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrNegativeStock    = apperr.Invalid("stock cannot go below zero")
	ErrInvalidChange    = apperr.Invalid("quantity sign does not match change type")
	ErrInvalidType      = apperr.Invalid("unknown change type")
	ErrNotAuthoritative = apperr.Invalid("only adjustments can be authoritative")
	ErrQuantityRange    = apperr.Invalid(fmt.Sprintf("quantity change must be within ±%d", model.MaxQuantity))
	ErrStockRange       = apperr.Invalid(fmt.Sprintf("stock cannot exceed %d", model.MaxQuantity))
	ErrConflict         = fmt.Errorf("ledger write kept conflicting: %w", apperr.ErrConflict)
)

// Store is the persistence the ledger needs.
type Store interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	store.LedgerStore
}

// NegativeStockError reports a change that would take stock below zero.
type NegativeStockError struct {
	ProductID string
	Stock     int
	Change    int
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("stock cannot go below zero (product %s: stock %d, change %d)", e.ProductID, e.Stock, e.Change)
}

func (e *NegativeStockError) Unwrap() error { return ErrNegativeStock }

type RecordInput struct {
	ProductID       string
	ChangeType      model.ChangeType
	QuantityChanged int
	Actor           string
	OrderID         string
	Authoritative   bool
	Remarks         string
}

type Ledger struct {
	store      Store
	locks      *keylock.Locker
	publisher  events.Publisher
	orders     OrderLookup
	maxRetries int
	pageSize   int
	backoff    time.Duration
	now        func() time.Time
}

type Option func(*Ledger)

func WithMaxRetries(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxRetries = n
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithOrderLookup lets History tell committed checkouts from in-flight ones.
func WithOrderLookup(o OrderLookup) Option {
	return func(l *Ledger) { l.orders = o }
}

func WithPageSize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(l *Ledger) { l.backoff = d }
}

func NewLedger(s Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:      s,
		locks:      keylock.New(),
		publisher:  events.NopPublisher{},
		maxRetries: DefaultMaxRetries,
		pageSize:   defaultPageSize,
		backoff:    defaultBackoff,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func validate(in RecordInput) error {
	if !in.ChangeType.Valid() {
		return ErrInvalidType
	}
	if in.Authoritative && in.ChangeType != model.ChangeAdjustment {
		return ErrNotAuthoritative
	}
	q := in.QuantityChanged
	if q > model.MaxQuantity || q < -model.MaxQuantity {
		return ErrQuantityRange
	}
	switch in.ChangeType {
	case model.ChangeSale:
		if q >= 0 {
			return ErrInvalidChange
		}
	case model.ChangeRestock, model.ChangeCancellation:
		if q <= 0 {
			return ErrInvalidChange
		}
	case model.ChangeAdjustment:
		if q == 0 {
			return ErrInvalidChange
		}
	}
	return nil
}

// nextEntry computes the entry that would follow the product's current state.
func (l *Ledger) nextEntry(p *model.Product, in RecordInput) (*model.InventoryLogEntry, error) {
	applied := in.QuantityChanged
	clamped := false
	if p.StockQuantity+applied < 0 {
		if !in.Authoritative {
			return nil, &NegativeStockError{ProductID: p.ID, Stock: p.StockQuantity, Change: in.QuantityChanged}
		}
		applied = -p.StockQuantity
		clamped = true
	}
	if p.StockQuantity+applied > model.MaxQuantity {
		return nil, ErrStockRange
	}

	return &model.InventoryLogEntry{
		ID:              uuid.New().String(),
		ProductID:       p.ID,
		ChangeType:      in.ChangeType,
		QuantityChanged: applied,
		RequestedChange: in.QuantityChanged,
		ResultingStock:  p.StockQuantity + applied,
		Sequence:        p.Version + 1,
		Timestamp:       l.now().UTC(),
		Actor:           in.Actor,
		OrderID:         in.OrderID,
		Authoritative:   in.Authoritative,
		Clamped:         clamped,
		Remarks:         in.Remarks,
	}, nil
}

// Record validates and applies one stock change. The product update and the
// entry append commit together through a version compare-and-swap; stale
// reads are retried up to the configured bound and then fail with ErrConflict.
func (l *Ledger) Record(ctx context.Context, in RecordInput) (*model.InventoryLogEntry, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	unlock, err := l.locks.Lock(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := zerolog.Ctx(ctx).With().
		Str("product_id", in.ProductID).
		Str("change_type", string(in.ChangeType)).
		Logger()

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		p, err := l.store.GetProduct(ctx, in.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", in.ProductID, err)
		}

		entry, err := l.nextEntry(p, in)
		if err != nil {
			return nil, err
		}

		err = l.store.AppendEntry(ctx, entry, p.Version)
		if err == nil {
			logger.Debug().
				Int("quantity_changed", entry.QuantityChanged).
				Int("resulting_stock", entry.ResultingStock).
				Int64("sequence", entry.Sequence).
				Msg("ledger entry recorded")
			events.Emit(ctx, l.publisher, events.TypeInventoryRecorded, entry.ProductID, events.InventoryRecorded{
				Entry:       *entry,
				ProductName: p.Name,
			})
			return entry, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, fmt.Errorf("append ledger entry: %w", err)
		}

		logger.Debug().Int("attempt", attempt).Msg("ledger version conflict")
		if attempt < l.maxRetries {
			if err := l.sleep(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	logger.Warn().Int("attempts", l.maxRetries).Msg("ledger retries exhausted")
	return nil, ErrConflict
}

func (l *Ledger) sleep(ctx context.Context, attempt int) error {
	if l.backoff <= 0 {
		return ctx.Err()
	}
	d := time.Duration(attempt)*l.backoff + rand.N(l.backoff)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restock records a positive stock receipt.
func (l *Ledger) Restock(ctx context.Context, productID string, quantity int, actor, remarks string) error {
	_, err := l.Record(ctx, RecordInput{
		ProductID:       productID,
		ChangeType:      model.ChangeRestock,
		QuantityChanged: quantity,
		Actor:           actor,
		Remarks:         remarks,
	})
	return err
}

// OrderEntries returns the entries of productID that were recorded for
// orderID, oldest first.
func (l *Ledger) OrderEntries(ctx context.Context, productID, orderID string) ([]model.InventoryLogEntry, error) {
	entries, err := l.store.OrderEntries(ctx, productID, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("list order entries: %w", err)
	}
	return entries, nil
}
