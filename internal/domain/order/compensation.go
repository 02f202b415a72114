package order

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/ec-storefront/internal/domain/inventory"
	"github.com/example/ec-storefront/internal/domain/model"
)

const compensationAttempts = 3

// StockLedger is the part of the inventory ledger the order flow writes to.
type StockLedger interface {
	Record(ctx context.Context, in inventory.RecordInput) (*model.InventoryLogEntry, error)
	OrderEntries(ctx context.Context, productID, orderID string) ([]model.InventoryLogEntry, error)
}

type restoreItem struct {
	productID string
	quantity  int
}

// restoreStock writes a Cancellation entry for every item. It runs detached
// from the caller's cancellation so an aborted request still puts stock back.
// Before a retry it checks whether the failed write landed, so an item is
// never restored twice. Items that cannot be restored are logged and returned.
func restoreStock(ctx context.Context, ledger StockLedger, timeout time.Duration,
	orderID, actor, reason string, items []restoreItem) []restoreItem {

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	logger := zerolog.Ctx(ctx)
	var failed []restoreItem
	for _, it := range items {
		var err error
		for attempt := 0; attempt < compensationAttempts; attempt++ {
			if attempt > 0 {
				// the failed attempt may have committed
				done, lookupErr := restored(cctx, ledger, orderID, it.productID)
				if done {
					err = nil
					break
				}
				if lookupErr != nil {
					err = lookupErr
					if cctx.Err() != nil {
						break
					}
					continue
				}
			}
			_, err = ledger.Record(cctx, inventory.RecordInput{
				ProductID:       it.productID,
				ChangeType:      model.ChangeCancellation,
				QuantityChanged: it.quantity,
				Actor:           actor,
				OrderID:         orderID,
				Remarks:         reason,
			})
			if err == nil || cctx.Err() != nil {
				break
			}
		}
		if err != nil {
			logger.Error().Err(err).
				Str("order_id", orderID).
				Str("product_id", it.productID).
				Int("quantity", it.quantity).
				Msg("stock compensation failed")
			failed = append(failed, it)
		}
	}
	return failed
}

// restored reports whether orderID already has a Cancellation for productID.
func restored(ctx context.Context, ledger StockLedger, orderID, productID string) (bool, error) {
	entries, err := ledger.OrderEntries(ctx, productID, orderID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.ChangeType == model.ChangeCancellation {
			return true, nil
		}
	}
	return false, nil
}
