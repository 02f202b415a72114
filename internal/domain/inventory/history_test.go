package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
)

func TestLedger_ListForProduct_PagedAndRestartable(t *testing.T) {
	l, _, id := newTestLedger(t, WithPageSize(2))
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, l.Restock(ctx, id, i, "admin", ""))
	}

	seq := l.ListForProduct(ctx, id)

	var first []int64
	for e, err := range seq {
		require.NoError(t, err)
		first = append(first, e.Sequence)
	}
	var second []int64
	for e, err := range seq {
		require.NoError(t, err)
		second = append(second, e.Sequence)
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, first)
	assert.Equal(t, first, second)
}

func TestLedger_ListForProduct_EarlyBreak(t *testing.T) {
	l, _, id := newTestLedger(t, WithPageSize(2))
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Restock(ctx, id, 1, "admin", ""))
	}

	var got []model.InventoryLogEntry
	for e, err := range l.ListForProduct(ctx, id) {
		require.NoError(t, err)
		got = append(got, e)
		if len(got) == 3 {
			break
		}
	}

	assert.Len(t, got, 3)
}

func TestLedger_ListForProduct_UnknownProduct(t *testing.T) {
	l, _, _ := newTestLedger(t)

	var errs []error
	for _, err := range l.ListForProduct(context.Background(), "missing") {
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrProductNotFound)
}

func TestLedger_Reconcile(t *testing.T) {
	l, _, id := newTestLedger(t, WithPageSize(3))
	ctx := context.Background()
	require.NoError(t, l.Restock(ctx, id, 10, "admin", ""))
	for i := 0; i < 4; i++ {
		_, err := l.Record(ctx, RecordInput{ProductID: id, ChangeType: model.ChangeSale, QuantityChanged: -2, Actor: "u"})
		require.NoError(t, err)
	}

	r, err := l.Reconcile(ctx, id)

	require.NoError(t, err)
	assert.True(t, r.Consistent)
	assert.Equal(t, 2, r.StockQuantity)
	assert.Equal(t, 2, r.LedgerSum)
	assert.Equal(t, 5, r.EntryCount)
	assert.Equal(t, int64(5), r.LastSequence)
}

func TestLedger_History_HidesInFlightSales(t *testing.T) {
	s := mocks.NewMockStore()
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, &model.Product{ID: "p-1", Name: "Widget", Category: "tools", CreatedAt: time.Now()}))
	l := NewLedger(s, WithBackoff(0), WithOrderLookup(s))

	require.NoError(t, l.Restock(ctx, "p-1", 10, "admin", ""))
	sale := func(orderID string, q int) {
		_, err := l.Record(ctx, RecordInput{ProductID: "p-1", ChangeType: model.ChangeSale, QuantityChanged: -q, Actor: "u", OrderID: orderID})
		require.NoError(t, err)
	}
	sale("placed", 1)
	require.NoError(t, s.CreateOrder(ctx, &model.Order{ID: "placed", UserID: "u", Status: model.OrderPending, CreatedAt: time.Now()}))
	sale("aborted", 2)
	_, err := l.Record(ctx, RecordInput{ProductID: "p-1", ChangeType: model.ChangeCancellation, QuantityChanged: 2, Actor: "u", OrderID: "aborted"})
	require.NoError(t, err)
	sale("in-flight", 3)

	history, err := l.History(ctx, "p-1")
	require.NoError(t, err)
	var orders []string
	for _, e := range history {
		orders = append(orders, e.OrderID)
	}
	assert.Equal(t, []string{"", "placed", "aborted", "aborted"}, orders)

	all, err := l.Entries(ctx, "p-1")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	// Once the order is stored its sale shows up.
	require.NoError(t, s.CreateOrder(ctx, &model.Order{ID: "in-flight", UserID: "u", Status: model.OrderPending, CreatedAt: time.Now()}))
	history, err = l.History(ctx, "p-1")
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestLedger_History_WithoutOrderLookup(t *testing.T) {
	l, _, id := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Restock(ctx, id, 5, "admin", ""))
	_, err := l.Record(ctx, RecordInput{ProductID: id, ChangeType: model.ChangeSale, QuantityChanged: -1, Actor: "u", OrderID: "unknown"})
	require.NoError(t, err)

	history, err := l.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
