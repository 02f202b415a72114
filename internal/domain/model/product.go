package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. StockQuantity is only ever written through the
// inventory ledger; Version is the sequence number of the latest ledger entry.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity"`
	Version       int64           `json:"-"`
	Archived      bool            `json:"archived"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ProductFilter narrows catalog queries. Nil price bounds are open.
// Archived products only match when IncludeArchived is set.
type ProductFilter struct {
	Search          string
	Category        string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	IncludeArchived bool
}

// CatalogFacets summarises the values a filter can take.
type CatalogFacets struct {
	Categories []string        `json:"categories"`
	MinPrice   decimal.Decimal `json:"min_price"`
	MaxPrice   decimal.Decimal `json:"max_price"`
}
