package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-storefront/internal/domain/model"
)

var (
	ErrNotFound        = errors.New("store: record not found")
	ErrVersionConflict = errors.New("store: version conflict")
	ErrDuplicate       = errors.New("store: duplicate key")
)

// ProductStore holds catalog rows. UpdateProduct writes descriptive fields and
// the archived flag only; stock and version change exclusively through
// LedgerStore.AppendEntry. Facets ignores archived products.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	CountProducts(ctx context.Context, filter model.ProductFilter) (int, error)
	QueryProducts(ctx context.Context, filter model.ProductFilter, offset, limit int) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	Facets(ctx context.Context) (model.CatalogFacets, error)
}

// LedgerStore appends inventory entries.
//
// AppendEntry is a compare-and-swap: it succeeds only when the product's
// current version equals expectedVersion, and then atomically sets the
// product's stock to entry.ResultingStock, its version to entry.Sequence and
// appends the entry. A stale version yields ErrVersionConflict.
//
// OrderEntries returns the entries of one product that carry orderID, in
// sequence order.
type LedgerStore interface {
	AppendEntry(ctx context.Context, entry *model.InventoryLogEntry, expectedVersion int64) error
	ListEntries(ctx context.Context, productID string, afterSequence int64, limit int) ([]model.InventoryLogEntry, error)
	OrderEntries(ctx context.Context, productID, orderID string) ([]model.InventoryLogEntry, error)
}

// CartStore keeps cart lines keyed by (user, product). CartLines returns lines
// in the order they were first added. Deleting an absent line is not an error.
type CartStore interface {
	CartLines(ctx context.Context, userID string) ([]model.CartLine, error)
	PutCartLine(ctx context.Context, line model.CartLine) error
	DeleteCartLine(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

// OrderStore persists orders. UpdateOrderStatus is a compare-and-swap on the
// current status and returns ErrVersionConflict when it no longer equals from.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) error
}

// UserStore persists accounts. UpdateUser writes the full name and password
// hash; email and role are fixed at creation. ListUsers orders by creation.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
}

// Store is the full persistence surface of the storefront.
type Store interface {
	ProductStore
	LedgerStore
	CartStore
	OrderStore
	UserStore
}
