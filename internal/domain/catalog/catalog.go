package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/apperr"
	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

const (
	DefaultPageSize = 16
	MaxPageSize     = 100
)

var (
	ErrProductNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrInvalidName     = apperr.Invalid("product name is required")
	ErrInvalidCategory = apperr.Invalid("product category is required")
	ErrInvalidPrice    = apperr.Invalid("unit price must not be negative")
	ErrPriceScale      = apperr.Invalid("unit price must have at most 2 decimal places")
	ErrPriceRange      = apperr.Invalid("unit price must be below 10000000000")
	ErrInvalidStock    = apperr.Invalid(fmt.Sprintf("initial stock must be between 0 and %d", model.MaxQuantity))
)

// maxUnitPrice is the first value that no longer fits NUMERIC(12,2).
var maxUnitPrice = decimal.New(1, 10)

// StockRecorder records the opening stock of a new product.
type StockRecorder interface {
	Restock(ctx context.Context, productID string, quantity int, actor, remarks string) error
}

// Page is one slice of a filtered product listing.
type Page struct {
	Items      []model.Product `json:"items"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

type Service struct {
	products store.ProductStore
	stock    StockRecorder
	now      func() time.Time
}

func NewService(products store.ProductStore, stock StockRecorder) *Service {
	return &Service{products: products, stock: stock, now: time.Now}
}

// NormalizeFilter trims the search term, treats "all" as no category and
// swaps inverted price bounds.
func NormalizeFilter(f model.ProductFilter) (model.ProductFilter, error) {
	f.Search = strings.TrimSpace(f.Search)
	f.Category = strings.TrimSpace(f.Category)
	if strings.EqualFold(f.Category, "all") {
		f.Category = ""
	}
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return f, apperr.Invalid("min_price must not be negative")
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return f, apperr.Invalid("max_price must not be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		f.MinPrice, f.MaxPrice = f.MaxPrice, f.MinPrice
	}
	return f, nil
}

// ListProducts returns the requested page of products matching filter. The
// page number is clamped into [1, totalPages] after counting.
func (s *Service) ListProducts(ctx context.Context, filter model.ProductFilter, page, pageSize int) (*Page, error) {
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, apperr.Invalid(fmt.Sprintf("page_size must be between 1 and %d", MaxPageSize))
	}
	filter, err := NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	total, err := s.products.CountProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	totalPages := (total + pageSize - 1) / pageSize
	page = clampPage(page, totalPages)

	items, err := s.products.QueryProducts(ctx, filter, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	return &Page{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func clampPage(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// GetProduct returns a product that is on sale. Archived products are
// reported as not found.
func (s *Service) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.ViewProduct(ctx, id, false)
}

// ViewProduct is GetProduct for callers that may also see archived products.
func (s *Service) ViewProduct(ctx context.Context, id string, includeArchived bool) (*model.Product, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Archived && !includeArchived {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *Service) load(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// Facets lists the categories and the price range of the products on sale.
func (s *Service) Facets(ctx context.Context) (model.CatalogFacets, error) {
	return s.products.Facets(ctx)
}

type ProductInput struct {
	Name         string
	Description  string
	Category     string
	UnitPrice    decimal.Decimal
	InitialStock int
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrInvalidCategory
	}
	if in.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	if !in.UnitPrice.Equal(in.UnitPrice.Round(2)) {
		return ErrPriceScale
	}
	if in.UnitPrice.GreaterThanOrEqual(maxUnitPrice) {
		return ErrPriceRange
	}
	if in.InitialStock < 0 || in.InitialStock > model.MaxQuantity {
		return ErrInvalidStock
	}
	return nil
}

// CreateProduct adds a product with zero stock and records any initial
// stock as a restock so the ledger accounts for every unit.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput, actor string) (*model.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &model.Product{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		UnitPrice:   in.UnitPrice.Round(2),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	if in.InitialStock > 0 {
		if err := s.stock.Restock(ctx, p.ID, in.InitialStock, actor, "initial stock"); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("product_id", p.ID).Msg("initial stock not recorded")
			return nil, fmt.Errorf("record initial stock: %w", err)
		}
	}

	return s.load(ctx, p.ID)
}

// UpdateProduct changes descriptive fields and price. Stock and the archived
// flag are untouched.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	in.InitialStock = 0
	if err := in.validate(); err != nil {
		return nil, err
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	current.Name = strings.TrimSpace(in.Name)
	current.Description = in.Description
	current.Category = strings.TrimSpace(in.Category)
	current.UnitPrice = in.UnitPrice.Round(2)
	return s.save(ctx, current)
}

// SetArchived takes a product off sale or puts it back. Archived products
// keep their ledger and stay on past orders but leave listings, facets and
// carts.
func (s *Service) SetArchived(ctx context.Context, id string, archived bool) (*model.Product, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Archived == archived {
		return current, nil
	}
	current.Archived = archived
	p, err := s.save(ctx, current)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("product_id", id).Bool("archived", archived).Msg("product archive state changed")
	return p, nil
}

func (s *Service) save(ctx context.Context, p *model.Product) (*model.Product, error) {
	p.UpdatedAt = s.now().UTC()
	if err := s.products.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product %s: %w", p.ID, err)
	}
	return s.load(ctx, p.ID)
}
