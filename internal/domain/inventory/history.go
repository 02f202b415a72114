package inventory

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// ListForProduct yields the product's entries oldest first. Entries are
// fetched lazily page by page; each range over the sequence starts again from
// the first entry. A fetch error is yielded once and ends the sequence.
func (l *Ledger) ListForProduct(ctx context.Context, productID string) iter.Seq2[model.InventoryLogEntry, error] {
	return func(yield func(model.InventoryLogEntry, error) bool) {
		var after int64
		for {
			page, err := l.store.ListEntries(ctx, productID, after, l.pageSize)
			if errors.Is(err, store.ErrNotFound) {
				yield(model.InventoryLogEntry{}, ErrProductNotFound)
				return
			}
			if err != nil {
				yield(model.InventoryLogEntry{}, fmt.Errorf("list ledger entries: %w", err))
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
				after = e.Sequence
			}
			if len(page) < l.pageSize {
				return
			}
		}
	}
}

// Entries collects the full history of a product.
func (l *Ledger) Entries(ctx context.Context, productID string) ([]model.InventoryLogEntry, error) {
	out := make([]model.InventoryLogEntry, 0)
	for e, err := range l.ListForProduct(ctx, productID) {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// OrderLookup resolves the orders that ledger entries refer to.
type OrderLookup interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
}

// History is the operator view of a product's ledger. A Sale recorded by a
// checkout whose order has not been stored, and that has not been
// compensated either, is still in flight and is left out. Without an
// OrderLookup it returns every entry.
func (l *Ledger) History(ctx context.Context, productID string) ([]model.InventoryLogEntry, error) {
	entries, err := l.Entries(ctx, productID)
	if err != nil || l.orders == nil {
		return entries, err
	}

	compensated := make(map[string]bool)
	for _, e := range entries {
		if e.ChangeType == model.ChangeCancellation && e.OrderID != "" {
			compensated[e.OrderID] = true
		}
	}

	placed := make(map[string]bool)
	out := make([]model.InventoryLogEntry, 0, len(entries))
	for _, e := range entries {
		if e.ChangeType == model.ChangeSale && e.OrderID != "" && !compensated[e.OrderID] {
			ok, seen := placed[e.OrderID]
			if !seen {
				ok, err = l.orderStored(ctx, e.OrderID)
				if err != nil {
					return nil, err
				}
				placed[e.OrderID] = ok
			}
			if !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *Ledger) orderStored(ctx context.Context, orderID string) (bool, error) {
	_, err := l.orders.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load order %s: %w", orderID, err)
	}
	return true, nil
}

// Reconciliation compares a product's stock with the replayed ledger.
type Reconciliation struct {
	ProductID     string `json:"product_id"`
	StockQuantity int    `json:"stock_quantity"`
	LedgerSum     int    `json:"ledger_sum"`
	EntryCount    int    `json:"entry_count"`
	LastSequence  int64  `json:"last_sequence"`
	Consistent    bool   `json:"consistent"`
}

const reconcileRounds = 3

// Reconcile replays the ledger of productID and checks it against the stored
// stock. Entries appended while replaying are picked up by re-reading until
// the product version matches the last replayed sequence.
func (l *Ledger) Reconcile(ctx context.Context, productID string) (*Reconciliation, error) {
	r := &Reconciliation{ProductID: productID}

	for round := 0; round < reconcileRounds; round++ {
		for {
			page, err := l.store.ListEntries(ctx, productID, r.LastSequence, l.pageSize)
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrProductNotFound
			}
			if err != nil {
				return nil, fmt.Errorf("list ledger entries: %w", err)
			}
			for _, e := range page {
				r.LedgerSum += e.QuantityChanged
				r.EntryCount++
				r.LastSequence = e.Sequence
			}
			if len(page) < l.pageSize {
				break
			}
		}

		p, err := l.store.GetProduct(ctx, productID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", productID, err)
		}
		r.StockQuantity = p.StockQuantity
		if p.Version == r.LastSequence {
			break
		}
	}

	r.Consistent = r.StockQuantity == r.LedgerSum
	return r, nil
}
