package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/apperr"
	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/pkg/keylock"
)

var (
	ErrInvalidQuantity = apperr.Invalid(fmt.Sprintf("quantity must be between 1 and %d", model.MaxQuantity))
	ErrProductNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrLineNotFound    = fmt.Errorf("cart line %w", apperr.ErrNotFound)
)

// Products is the catalog lookup the cart needs for prices and stock.
type Products interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
}

// Line is a cart line priced at the product's current unit price.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	InStock   int             `json:"in_stock"`
}

type View struct {
	UserID    string          `json:"user_id"`
	Lines     []Line          `json:"lines"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// Service is the cart engine. Mutations of one user's cart are serialised;
// carts of different users are independent.
type Service struct {
	carts    store.CartStore
	products Products
	locks    *keylock.Locker
	now      func() time.Time
}

func NewService(carts store.CartStore, products Products) *Service {
	return &Service{
		carts:    carts,
		products: products,
		locks:    keylock.New(),
		now:      time.Now,
	}
}

func (s *Service) product(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	if p.Archived {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func validQuantity(q int) bool {
	return q >= 1 && q <= model.MaxQuantity
}

func (s *Service) line(ctx context.Context, userID, productID string) (*model.CartLine, error) {
	lines, err := s.carts.CartLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	for i := range lines {
		if lines[i].ProductID == productID {
			return &lines[i], nil
		}
	}
	return nil, nil
}

// checkStock is a soft check that held plus add units are in stock; the
// ledger makes the binding decision at checkout. Both operands are bounded by
// model.MaxQuantity, so the comparison is done without summing them.
func checkStock(p *model.Product, held, add int) error {
	if add > p.StockQuantity-held {
		return &apperr.StockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   held + add,
			Available:   p.StockQuantity,
		}
	}
	return nil
}

// AddItem adds quantity of productID, summing with any existing line.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if !validQuantity(quantity) {
		return nil, ErrInvalidQuantity
	}

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	existing, err := s.line(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	held := 0
	if existing != nil {
		held = existing.Quantity
	}
	if err := checkStock(p, held, quantity); err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Str("user_id", userID).Msg("add to cart refused")
		return nil, err
	}

	if err := s.carts.PutCartLine(ctx, model.CartLine{
		UserID:    userID,
		ProductID: productID,
		Quantity:  held + quantity,
		AddedAt:   s.now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("save cart line: %w", err)
	}

	return s.view(ctx, userID)
}

// UpdateQuantity replaces the quantity of an existing line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if !validQuantity(quantity) {
		return nil, ErrInvalidQuantity
	}

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.line(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrLineNotFound
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := checkStock(p, 0, quantity); err != nil {
		return nil, err
	}

	existing.Quantity = quantity
	if err := s.carts.PutCartLine(ctx, *existing); err != nil {
		return nil, fmt.Errorf("save cart line: %w", err)
	}

	return s.view(ctx, userID)
}

// RemoveItem deletes the line for productID. Removing an absent line is a no-op.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.carts.DeleteCartLine(ctx, userID, productID); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

// GetCart returns the cart priced at current catalog prices.
func (s *Service) GetCart(ctx context.Context, userID string) (*View, error) {
	return s.view(ctx, userID)
}

// GetTotal is the sum of quantity times current unit price over all lines.
func (s *Service) GetTotal(ctx context.Context, userID string) (decimal.Decimal, error) {
	v, err := s.view(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Total, nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.clear(ctx, userID)
}

func (s *Service) clear(ctx context.Context, userID string) error {
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Service) view(ctx context.Context, userID string) (*View, error) {
	lines, err := s.carts.CartLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	v := &View{UserID: userID, Lines: make([]Line, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		p, err := s.product(ctx, l.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			zerolog.Ctx(ctx).Warn().
				Str("user_id", userID).
				Str("product_id", l.ProductID).
				Msg("cart line references unavailable product")
			continue
		}
		if err != nil {
			return nil, err
		}
		total := p.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		v.Lines = append(v.Lines, Line{
			ProductID: l.ProductID,
			Name:      p.Name,
			Quantity:  l.Quantity,
			UnitPrice: p.UnitPrice,
			LineTotal: total,
			InStock:   p.StockQuantity,
		})
		v.ItemCount += l.Quantity
		v.Total = v.Total.Add(total)
	}
	return v, nil
}

// Locked is a cart handle whose operations run under the owner's cart lock.
type Locked struct {
	s      *Service
	userID string
}

func (l *Locked) View(ctx context.Context) (*View, error) { return l.s.view(ctx, l.userID) }
func (l *Locked) Clear(ctx context.Context) error        { return l.s.clear(ctx, l.userID) }

// WithLock runs fn while holding userID's cart lock, so no other cart
// mutation for that user interleaves with it.
func (s *Service) WithLock(ctx context.Context, userID string, fn func(c *Locked) error) error {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(&Locked{s: s, userID: userID})
}
