package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/apperr"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/inventory"
	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

const (
	DefaultStepTimeout         = 5 * time.Second
	DefaultCompensationTimeout = 10 * time.Second

	systemActor = "system:checkout"
)

var (
	ErrEmptyCart       = fmt.Errorf("checkout: %w", apperr.ErrEmptyCart)
	ErrDraftState      = fmt.Errorf("checkout draft is not in the required state: %w", apperr.ErrConflict)
	ErrPaymentMethod   = apperr.Invalid("payment method must be cod")
	ErrShippingDetails = apperr.Invalid("shipping details need full_name, address and contact_number")
)

type DraftState string

const (
	DraftOpen     DraftState = "Draft"
	DraftReserved DraftState = "Reserved"
	DraftPlaced   DraftState = "Placed"
	DraftAborted  DraftState = "Aborted"
)

// Draft is an in-flight checkout. It is owned by one goroutine.
type Draft struct {
	OrderID       string
	UserID        string
	Lines         []model.OrderLine
	TotalAmount   decimal.Decimal
	Shipping      *model.ShippingDetails
	PaymentMethod string
	State         DraftState

	reserved []restoreItem
}

type CheckoutOptions struct {
	Shipping      *model.ShippingDetails
	PaymentMethod string
}

func (o CheckoutOptions) normalize() (CheckoutOptions, error) {
	o.PaymentMethod = strings.ToLower(strings.TrimSpace(o.PaymentMethod))
	if o.PaymentMethod == "" {
		o.PaymentMethod = model.PaymentCOD
	}
	if o.PaymentMethod != model.PaymentCOD {
		return o, ErrPaymentMethod
	}
	if sh := o.Shipping; sh != nil {
		if strings.TrimSpace(sh.FullName) == "" || strings.TrimSpace(sh.Address) == "" || strings.TrimSpace(sh.ContactNumber) == "" {
			return o, ErrShippingDetails
		}
	}
	return o, nil
}

type Config struct {
	StepTimeout         time.Duration
	CompensationTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.StepTimeout <= 0 {
		c.StepTimeout = DefaultStepTimeout
	}
	if c.CompensationTimeout <= 0 {
		c.CompensationTimeout = DefaultCompensationTimeout
	}
	return c
}

// Orchestrator turns a cart into an order: snapshot, reserve stock through the
// ledger, persist, clear the cart. Any failure before the order is persisted
// reverses the reservations already made.
type Orchestrator struct {
	carts     *cart.Service
	ledger    StockLedger
	orders    store.OrderStore
	publisher events.Publisher
	cfg       Config
	now       func() time.Time
}

func NewOrchestrator(carts *cart.Service, ledger StockLedger, orders store.OrderStore, publisher events.Publisher, cfg Config) *Orchestrator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Orchestrator{
		carts:     carts,
		ledger:    ledger,
		orders:    orders,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// Checkout runs the whole saga while holding the user's cart lock, so the
// cart cannot change between the snapshot and its clearance.
func (o *Orchestrator) Checkout(ctx context.Context, userID string, opts CheckoutOptions) (*model.Order, error) {
	var placed *model.Order
	err := o.carts.WithLock(ctx, userID, func(c *cart.Locked) error {
		view, err := c.View(ctx)
		if err != nil {
			return err
		}
		d, err := o.newDraft(userID, opts, view)
		if err != nil {
			return err
		}
		if err := o.ReserveStock(ctx, d); err != nil {
			return err
		}
		placed, err = o.place(ctx, d, c.Clear)
		return err
	})
	if err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Str("user_id", userID).Msg("checkout failed")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("order_id", placed.ID).
		Str("total", placed.TotalAmount.StringFixed(2)).
		Msg("order placed")
	return placed, nil
}

// BeginCheckout snapshots the user's cart at current prices.
func (o *Orchestrator) BeginCheckout(ctx context.Context, userID string, opts CheckoutOptions) (*Draft, error) {
	view, err := o.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return o.newDraft(userID, opts, view)
}

func (o *Orchestrator) newDraft(userID string, opts CheckoutOptions, view *cart.View) (*Draft, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if len(view.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	d := &Draft{
		OrderID:       uuid.New().String(),
		UserID:        userID,
		Lines:         make([]model.OrderLine, 0, len(view.Lines)),
		TotalAmount:   decimal.Zero,
		Shipping:      opts.Shipping,
		PaymentMethod: opts.PaymentMethod,
		State:         DraftOpen,
	}
	for _, l := range view.Lines {
		line := model.OrderLine{
			ProductID:           l.ProductID,
			ProductName:         l.Name,
			Quantity:            l.Quantity,
			UnitPriceAtPurchase: l.UnitPrice,
		}
		d.Lines = append(d.Lines, line)
		d.TotalAmount = d.TotalAmount.Add(line.LineTotal())
	}
	// a global acquisition order keeps concurrent checkouts from interleaving
	// reservations in opposite directions
	sort.Slice(d.Lines, func(i, j int) bool { return d.Lines[i].ProductID < d.Lines[j].ProductID })
	return d, nil
}

// ReserveStock records a Sale for every line. If any line fails, the lines
// already reserved are released and the draft is aborted.
func (o *Orchestrator) ReserveStock(ctx context.Context, d *Draft) error {
	if d.State != DraftOpen {
		return ErrDraftState
	}

	for _, line := range d.Lines {
		if err := ctx.Err(); err != nil {
			o.abort(ctx, d, "checkout cancelled")
			return err
		}

		stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
		_, err := o.ledger.Record(stepCtx, inventory.RecordInput{
			ProductID:       line.ProductID,
			ChangeType:      model.ChangeSale,
			QuantityChanged: -line.Quantity,
			Actor:           d.UserID,
			OrderID:         d.OrderID,
			Remarks:         "checkout",
		})
		cancel()
		if err != nil {
			if outcomeUnknown(err) {
				o.recoverReservation(ctx, d, line, err)
			}
			o.abort(ctx, d, "reservation failed")
			return reserveError(line, err)
		}
		d.reserved = append(d.reserved, restoreItem{productID: line.ProductID, quantity: line.Quantity})
	}

	d.State = DraftReserved
	return nil
}

// outcomeUnknown reports whether a failed Record may still have committed.
// Validation and lookup failures are decided before anything is written.
func outcomeUnknown(err error) bool {
	return !errors.Is(err, apperr.ErrInvalidArgument) && !errors.Is(err, apperr.ErrNotFound)
}

// recoverReservation looks for a Sale the draft wrote for line even though
// Record reported an error, and adds it to the reservations to release.
func (o *Orchestrator) recoverReservation(ctx context.Context, d *Draft, line model.OrderLine, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.StepTimeout)
	defer cancel()

	logger := zerolog.Ctx(ctx).With().
		Str("order_id", d.OrderID).
		Str("product_id", line.ProductID).
		Logger()
	entries, err := o.ledger.OrderEntries(cctx, line.ProductID, d.OrderID)
	if err != nil {
		logger.Error().Err(err).AnErr("cause", cause).Int("quantity", line.Quantity).
			Msg("reservation outcome unknown")
		return
	}
	for _, e := range entries {
		if e.ChangeType == model.ChangeSale {
			logger.Warn().AnErr("cause", cause).Int64("sequence", e.Sequence).
				Msg("sale committed despite error")
			d.reserved = append(d.reserved, restoreItem{productID: line.ProductID, quantity: -e.QuantityChanged})
		}
	}
}

func reserveError(line model.OrderLine, err error) error {
	var neg *inventory.NegativeStockError
	if errors.As(err, &neg) {
		return &apperr.StockError{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Requested:   line.Quantity,
			Available:   neg.Stock,
		}
	}
	return fmt.Errorf("reserve %s: %w", line.ProductID, err)
}

// PlaceOrder persists a reserved draft as a Pending order and clears the
// user's cart.
func (o *Orchestrator) PlaceOrder(ctx context.Context, d *Draft) (*model.Order, error) {
	return o.place(ctx, d, func(ctx context.Context) error {
		return o.carts.Clear(ctx, d.UserID)
	})
}

func (o *Orchestrator) place(ctx context.Context, d *Draft, clearCart func(context.Context) error) (*model.Order, error) {
	if d.State != DraftReserved {
		return nil, ErrDraftState
	}
	if err := ctx.Err(); err != nil {
		o.abort(ctx, d, "checkout cancelled")
		return nil, err
	}

	now := o.now().UTC()
	ord := &model.Order{
		ID:            d.OrderID,
		UserID:        d.UserID,
		Lines:         d.Lines,
		TotalAmount:   d.TotalAmount,
		Status:        model.OrderPending,
		Shipping:      d.Shipping,
		PaymentMethod: d.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	err := o.orders.CreateOrder(stepCtx, ord)
	cancel()
	if err != nil && !o.orderCommitted(ctx, d.OrderID) {
		o.abort(ctx, d, "order not persisted")
		return nil, fmt.Errorf("persist order: %w", err)
	}
	d.State = DraftPlaced

	if err := clearCart(context.WithoutCancel(ctx)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("order_id", ord.ID).
			Str("user_id", ord.UserID).
			Msg("cart not cleared after order placement")
	}

	events.Emit(ctx, o.publisher, events.TypeOrderPlaced, ord.ID, events.OrderPlaced{
		OrderID:     ord.ID,
		UserID:      ord.UserID,
		Lines:       ord.Lines,
		TotalAmount: ord.TotalAmount,
		PlacedAt:    ord.CreatedAt,
	})
	return ord, nil
}

// orderCommitted checks whether a failed or timed-out create actually landed,
// so a committed order never loses its reservation.
func (o *Orchestrator) orderCommitted(ctx context.Context, orderID string) bool {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.StepTimeout)
	defer cancel()
	_, err := o.orders.GetOrder(cctx, orderID)
	return err == nil
}

// Abort releases the reservations of a draft that has not been placed.
func (o *Orchestrator) Abort(ctx context.Context, d *Draft) error {
	switch d.State {
	case DraftOpen, DraftReserved:
		o.abort(ctx, d, "checkout aborted")
		return nil
	case DraftAborted:
		return nil
	default:
		return ErrDraftState
	}
}

func (o *Orchestrator) abort(ctx context.Context, d *Draft, reason string) {
	if len(d.reserved) > 0 {
		failed := restoreStock(ctx, o.ledger, o.cfg.CompensationTimeout, d.OrderID, systemActor, reason, d.reserved)
		if len(failed) == 0 {
			zerolog.Ctx(ctx).Info().
				Str("order_id", d.OrderID).
				Int("lines", len(d.reserved)).
				Str("reason", reason).
				Msg("reservations released")
		}
		d.reserved = failed
	}
	d.State = DraftAborted
}
