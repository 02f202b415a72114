package model

import (
	"math"
	"time"
)

// MaxQuantity bounds every stock level and quantity delta so values fit the
// INTEGER columns that hold them.
const MaxQuantity = math.MaxInt32

type ChangeType string

const (
	ChangeSale         ChangeType = "Sale"
	ChangeRestock      ChangeType = "Restock"
	ChangeAdjustment   ChangeType = "Adjustment"
	ChangeCancellation ChangeType = "Cancellation"
)

// Valid reports whether c is a known change type.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeSale, ChangeRestock, ChangeAdjustment, ChangeCancellation:
		return true
	}
	return false
}

// InventoryLogEntry is one immutable line of the stock ledger.
// QuantityChanged is the delta that was applied; RequestedChange differs from
// it only when an authoritative adjustment was clamped at zero.
type InventoryLogEntry struct {
	ID              string     `json:"id"`
	ProductID       string     `json:"product_id"`
	ChangeType      ChangeType `json:"change_type"`
	QuantityChanged int        `json:"quantity_changed"`
	RequestedChange int        `json:"requested_change"`
	ResultingStock  int        `json:"resulting_stock"`
	Sequence        int64      `json:"sequence"`
	Timestamp       time.Time  `json:"timestamp"`
	Actor           string     `json:"actor"`
	OrderID         string     `json:"order_id,omitempty"`
	Authoritative   bool       `json:"authoritative,omitempty"`
	Clamped         bool       `json:"clamped,omitempty"`
	Remarks         string     `json:"remarks,omitempty"`
}
