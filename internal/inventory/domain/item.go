// Package domain holds the herb stock model and the rules that move it:
// transaction kinds, alert thresholds, the order state machine and the
// read-side aggregations. Nothing in here touches storage.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Upsert defaults for a newly stocked herb
const DefaultUnit = "g"

var (
	DefaultMinStockLevel = decimal.NewFromInt(100)
	DefaultReorderPoint  = decimal.NewFromInt(200)
)

// GenericHerbLabel stands in for the herb name when the catalog has none.
const GenericHerbLabel = "herb"

// Item is the current stock of one herb at one clinic location.
// Quantity is only ever written through a recorded transaction.
type Item struct {
	ID              string           `db:"id" json:"id"`
	LocationID      string           `db:"location_id" json:"location_id"`
	HerbID          string           `db:"herb_id" json:"herb_id"`
	HerbName        *string          `db:"herb_name" json:"herb_name,omitempty"`
	SupplierID      *string          `db:"supplier_id" json:"supplier_id,omitempty"`
	Quantity        decimal.Decimal  `db:"quantity" json:"quantity"`
	Unit            string           `db:"unit" json:"unit"`
	MinStockLevel   decimal.Decimal  `db:"min_stock_level" json:"min_stock_level"`
	ReorderPoint    decimal.Decimal  `db:"reorder_point" json:"reorder_point"`
	UnitPrice       *decimal.Decimal `db:"unit_price" json:"unit_price,omitempty"`
	CostBasis       decimal.Decimal  `db:"cost_basis" json:"cost_basis"`
	BatchNumber     *string          `db:"batch_number" json:"batch_number,omitempty"`
	StorageLocation *string          `db:"storage_location" json:"storage_location,omitempty"`
	ExpiryDate      *time.Time       `db:"expiry_date" json:"expiry_date,omitempty"`
	LastRestockDate *time.Time       `db:"last_restock_date" json:"last_restock_date,omitempty"`
	LastUsedDate    *time.Time       `db:"last_used_date" json:"last_used_date,omitempty"`
	AvgMonthlyUsage *decimal.Decimal `db:"avg_monthly_usage" json:"avg_monthly_usage,omitempty"`
	Version         int64            `db:"version" json:"version"`
	LedgerSeq       int64            `db:"ledger_seq" json:"-"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the herb name snapshot or the generic label.
func (i *Item) DisplayName() string {
	if i.HerbName != nil && *i.HerbName != "" {
		return *i.HerbName
	}
	return GenericHerbLabel
}

// Stock returns the part of the item a transaction reads and rewrites.
func (i *Item) Stock() StockState {
	return StockState{Quantity: i.Quantity, CostBasis: i.CostBasis}
}

// Value is quantity times the listed unit price.
func (i *Item) Value() decimal.Decimal {
	if i.UnitPrice == nil {
		return decimal.Zero
	}
	return i.Quantity.Mul(*i.UnitPrice)
}

// ItemAttributes are the non-quantity fields an upsert may change.
// Nil fields are left untouched on an existing item.
type ItemAttributes struct {
	HerbName        *string
	SupplierID      *string
	Unit            *string
	MinStockLevel   *decimal.Decimal
	ReorderPoint    *decimal.Decimal
	UnitPrice       *decimal.Decimal
	BatchNumber     *string
	StorageLocation *string
	ExpiryDate      *time.Time
}

// NewItem builds a fresh item for (location, herb) with upsert defaults.
// The cost basis starts at the listed unit price, or zero.
func NewItem(locationID, herbID string, attrs ItemAttributes) *Item {
	item := &Item{
		LocationID:    locationID,
		HerbID:        herbID,
		Quantity:      decimal.Zero,
		Unit:          DefaultUnit,
		MinStockLevel: DefaultMinStockLevel,
		ReorderPoint:  DefaultReorderPoint,
		CostBasis:     decimal.Zero,
	}
	item.Apply(attrs)
	if attrs.UnitPrice != nil {
		item.CostBasis = *attrs.UnitPrice
	}
	return item
}

// Apply copies every set attribute onto the item.
func (i *Item) Apply(a ItemAttributes) {
	if a.HerbName != nil {
		i.HerbName = a.HerbName
	}
	if a.SupplierID != nil {
		i.SupplierID = a.SupplierID
	}
	if a.Unit != nil && *a.Unit != "" {
		i.Unit = *a.Unit
	}
	if a.MinStockLevel != nil {
		i.MinStockLevel = *a.MinStockLevel
	}
	if a.ReorderPoint != nil {
		i.ReorderPoint = *a.ReorderPoint
	}
	if a.UnitPrice != nil {
		i.UnitPrice = a.UnitPrice
	}
	if a.BatchNumber != nil {
		i.BatchNumber = a.BatchNumber
	}
	if a.StorageLocation != nil {
		i.StorageLocation = a.StorageLocation
	}
	if a.ExpiryDate != nil {
		i.ExpiryDate = a.ExpiryDate
	}
}

// ItemFilter narrows listItems
type ItemFilter struct {
	Keyword      string
	LowStockOnly bool
	// ExpiringBefore, when set, keeps items whose expiry date is on or before it.
	ExpiringBefore *time.Time
	SupplierID     string
}
