package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/inventory"
	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
)

type fixture struct {
	store  *mocks.MockStore
	ledger *inventory.Ledger
	carts  *cart.Service
	orch   *Orchestrator
	orders *Service
	events *events.Recorder
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	s := mocks.NewMockStore()
	rec := &events.Recorder{}
	ledger := inventory.NewLedger(s, inventory.WithBackoff(0), inventory.WithMaxRetries(20))
	carts := cart.NewService(s, s)
	return &fixture{
		store:  s,
		ledger: ledger,
		carts:  carts,
		orch:   NewOrchestrator(carts, ledger, s, rec, cfg),
		orders: NewService(s, ledger, rec, cfg),
		events: rec,
	}
}

func (f *fixture) product(t *testing.T, id, name, price string, stock int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateProduct(ctx, &model.Product{
		ID:        id,
		Name:      name,
		Category:  "test",
		UnitPrice: decimal.RequireFromString(price),
		CreatedAt: time.Now(),
	}))
	if stock > 0 {
		require.NoError(t, f.ledger.Restock(ctx, id, stock, "admin", "seed"))
	}
}

func (f *fixture) addToCart(t *testing.T, userID, productID string, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) ledgerSum(t *testing.T, productID string) int {
	t.Helper()
	entries, err := f.ledger.Entries(context.Background(), productID)
	require.NoError(t, err)
	sum := 0
	for _, e := range entries {
		sum += e.QuantityChanged
	}
	return sum
}

func (f *fixture) entriesOfType(t *testing.T, productID string, ct model.ChangeType) []model.InventoryLogEntry {
	t.Helper()
	entries, err := f.ledger.Entries(context.Background(), productID)
	require.NoError(t, err)
	var out []model.InventoryLogEntry
	for _, e := range entries {
		if e.ChangeType == ct {
			out = append(out, e)
		}
	}
	return out
}

func (f *fixture) cartQty(t *testing.T, userID string) map[string]int {
	t.Helper()
	view, err := f.carts.GetCart(context.Background(), userID)
	require.NoError(t, err)
	out := make(map[string]int)
	for _, l := range view.Lines {
		out[l.ProductID] = l.Quantity
	}
	return out
}
