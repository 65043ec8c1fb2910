package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/shopspring/decimal"
)

// FixtureFactory creates test data with unique herb names
type FixtureFactory struct {
	mu  sync.Mutex
	seq int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.seq
}

// Item builds an empty, unsaved item for locationID with upsert defaults.
// Quantity always starts at zero; stock it through the recorder.
func (f *FixtureFactory) Item(locationID string, opts ...func(*domain.Item)) *domain.Item {
	name := fmt.Sprintf("Test Herb %d", f.nextSeq())
	item := domain.NewItem(locationID, uuid.New().String(), domain.ItemAttributes{HerbName: &name})
	for _, opt := range opts {
		opt(item)
	}
	return item
}

// WithHerbName sets the herb display name
func WithHerbName(name string) func(*domain.Item) {
	return func(i *domain.Item) {
		i.HerbName = &name
	}
}

// WithThresholds sets minimum stock and reorder point
func WithThresholds(minStock, reorderPoint string) func(*domain.Item) {
	return func(i *domain.Item) {
		i.MinStockLevel = decimal.RequireFromString(minStock)
		i.ReorderPoint = decimal.RequireFromString(reorderPoint)
	}
}

// WithUnitPrice sets the listed unit price and the opening cost basis
func WithUnitPrice(price string) func(*domain.Item) {
	return func(i *domain.Item) {
		p := decimal.RequireFromString(price)
		i.UnitPrice = &p
		i.CostBasis = p
	}
}

// WithCostBasis overrides the opening cost basis
func WithCostBasis(cost string) func(*domain.Item) {
	return func(i *domain.Item) {
		i.CostBasis = decimal.RequireFromString(cost)
	}
}

// OrderLine builds a priced order line for a herb
func (f *FixtureFactory) OrderLine(herbID, quantity, unitPrice string) domain.OrderLine {
	name := fmt.Sprintf("Ordered Herb %d", f.nextSeq())
	return domain.OrderLine{
		HerbID:    herbID,
		HerbName:  &name,
		Quantity:  decimal.RequireFromString(quantity),
		UnitPrice: decimal.RequireFromString(unitPrice),
	}
}
