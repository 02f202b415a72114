package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/model"
)

// productRecord pairs a product with its ledger. mu serialises ledger appends
// for this product only.
type productRecord struct {
	mu      sync.Mutex
	product model.Product
	entries []model.InventoryLogEntry
}

type cartRecord struct {
	mu    sync.Mutex
	lines map[string]model.CartLine
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	productsMu sync.RWMutex
	products   map[string]*productRecord

	cartsMu sync.Mutex
	carts   map[string]*cartRecord

	ordersMu sync.RWMutex
	orders   map[string]*model.Order

	usersMu     sync.RWMutex
	users       map[string]*model.User
	usersByMail map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:    make(map[string]*productRecord),
		carts:       make(map[string]*cartRecord),
		orders:      make(map[string]*model.Order),
		users:       make(map[string]*model.User),
		usersByMail: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

// Products

func (s *MemoryStore) record(id string) (*productRecord, bool) {
	s.productsMu.RLock()
	defer s.productsMu.RUnlock()
	rec, ok := s.products[id]
	return rec, ok
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := s.record(id)
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	p := rec.product
	rec.mu.Unlock()
	return &p, nil
}

// snapshot copies all products in creation order.
func (s *MemoryStore) snapshot() []model.Product {
	s.productsMu.RLock()
	recs := make([]*productRecord, 0, len(s.products))
	for _, rec := range s.products {
		recs = append(recs, rec)
	}
	s.productsMu.RUnlock()

	out := make([]model.Product, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.product)
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) CountProducts(ctx context.Context, filter model.ProductFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, p := range s.snapshot() {
		if matchProduct(&p, filter) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) QueryProducts(ctx context.Context, filter model.ProductFilter, offset, limit int) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var matched []model.Product
	for _, p := range s.snapshot() {
		if matchProduct(&p, filter) {
			matched = append(matched, p)
		}
	}
	if offset >= len(matched) {
		return []model.Product{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p *model.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.productsMu.Lock()
	defer s.productsMu.Unlock()
	if _, exists := s.products[p.ID]; exists {
		return ErrDuplicate
	}
	s.products[p.ID] = &productRecord{product: *p}
	return nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := s.record(p.ID)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.product.Name = p.Name
	rec.product.Description = p.Description
	rec.product.Category = p.Category
	rec.product.UnitPrice = p.UnitPrice
	rec.product.Archived = p.Archived
	rec.product.UpdatedAt = p.UpdatedAt
	return nil
}

func (s *MemoryStore) Facets(ctx context.Context) (model.CatalogFacets, error) {
	if err := ctx.Err(); err != nil {
		return model.CatalogFacets{}, err
	}
	facets := model.CatalogFacets{Categories: []string{}}
	seen := make(map[string]bool)
	i := 0
	for _, p := range s.snapshot() {
		if p.Archived {
			continue
		}
		if !seen[p.Category] {
			seen[p.Category] = true
			facets.Categories = append(facets.Categories, p.Category)
		}
		if i == 0 || p.UnitPrice.LessThan(facets.MinPrice) {
			facets.MinPrice = p.UnitPrice
		}
		if i == 0 || p.UnitPrice.GreaterThan(facets.MaxPrice) {
			facets.MaxPrice = p.UnitPrice
		}
		i++
	}
	sort.Strings(facets.Categories)
	if len(seen) == 0 {
		facets.MinPrice, facets.MaxPrice = decimal.Zero, decimal.Zero
	}
	return facets, nil
}

// Ledger

func (s *MemoryStore) AppendEntry(ctx context.Context, entry *model.InventoryLogEntry, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := s.record(entry.ProductID)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.product.Version != expectedVersion {
		return ErrVersionConflict
	}
	rec.product.StockQuantity = entry.ResultingStock
	rec.product.Version = entry.Sequence
	rec.product.UpdatedAt = entry.Timestamp
	rec.entries = append(rec.entries, *entry)
	return nil
}

func (s *MemoryStore) ListEntries(ctx context.Context, productID string, afterSequence int64, limit int) ([]model.InventoryLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := s.record(productID)
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	start := sort.Search(len(rec.entries), func(i int) bool {
		return rec.entries[i].Sequence > afterSequence
	})
	if start >= len(rec.entries) {
		return []model.InventoryLogEntry{}, nil
	}
	end := start + limit
	if end > len(rec.entries) {
		end = len(rec.entries)
	}
	out := make([]model.InventoryLogEntry, end-start)
	copy(out, rec.entries[start:end])
	return out, nil
}

func (s *MemoryStore) OrderEntries(ctx context.Context, productID, orderID string) ([]model.InventoryLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := s.record(productID)
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	out := []model.InventoryLogEntry{}
	for _, e := range rec.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Carts

func (s *MemoryStore) cart(userID string) *cartRecord {
	s.cartsMu.Lock()
	defer s.cartsMu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		c = &cartRecord{lines: make(map[string]model.CartLine)}
		s.carts[userID] = c
	}
	return c
}

func (s *MemoryStore) CartLines(ctx context.Context, userID string) ([]model.CartLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := s.cart(userID)
	c.mu.Lock()
	lines := make([]model.CartLine, 0, len(c.lines))
	for _, l := range c.lines {
		lines = append(lines, l)
	}
	c.mu.Unlock()
	sortCartLines(lines)
	return lines, nil
}

func (s *MemoryStore) PutCartLine(ctx context.Context, line model.CartLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := s.cart(line.UserID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.lines[line.ProductID]; ok {
		line.AddedAt = existing.AddedAt
	}
	c.lines[line.ProductID] = line
	return nil
}

func (s *MemoryStore) DeleteCartLine(ctx context.Context, userID, productID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := s.cart(userID)
	c.mu.Lock()
	delete(c.lines, productID)
	c.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearCart(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := s.cart(userID)
	c.mu.Lock()
	c.lines = make(map[string]model.CartLine)
	c.mu.Unlock()
	return nil
}

func sortCartLines(lines []model.CartLine) {
	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].AddedAt.Before(lines[j].AddedAt)
		}
		return lines[i].ProductID < lines[j].ProductID
	})
}

// Orders

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Lines = append([]model.OrderLine(nil), o.Lines...)
	if o.Shipping != nil {
		sh := *o.Shipping
		c.Shipping = &sh
	}
	return &c
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o *model.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return ErrDuplicate
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.ordersMu.RLock()
	out := make([]model.Order, 0)
	for _, o := range s.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	s.ordersMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrVersionConflict
	}
	o.Status = to
	o.UpdatedAt = at
	return nil
}

// Users

func (s *MemoryStore) CreateUser(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	email := strings.ToLower(u.Email)
	if _, exists := s.usersByMail[email]; exists {
		return ErrDuplicate
	}
	if _, exists := s.users[u.ID]; exists {
		return ErrDuplicate
	}
	c := *u
	s.users[u.ID] = &c
	s.usersByMail[email] = u.ID
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	id, ok := s.usersByMail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s.users[id]
	return &c, nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.usersMu.RLock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	s.usersMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	existing.FullName = u.FullName
	existing.PasswordHash = u.PasswordHash
	return nil
}
