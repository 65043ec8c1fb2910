package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceHistoryDays is the default look-back of priceHistory.
const PriceHistoryDays = 90

// ComparisonDepth is how many recent points per supplier feed the average.
const ComparisonDepth = 10

// PriceRecord is one observed price of a herb, optionally per supplier.
type PriceRecord struct {
	ID            string           `db:"id" json:"id"`
	LocationID    string           `db:"location_id" json:"location_id"`
	HerbID        string           `db:"herb_id" json:"herb_id"`
	SupplierID    *string          `db:"supplier_id" json:"supplier_id,omitempty"`
	Price         decimal.Decimal  `db:"price" json:"price"`
	PreviousPrice *decimal.Decimal `db:"previous_price" json:"previous_price,omitempty"`
	ChangeRate    *decimal.Decimal `db:"change_rate" json:"change_rate,omitempty"`
	Source        *string          `db:"source" json:"source,omitempty"`
	RecordedAt    time.Time        `db:"recorded_at" json:"recorded_at"`
}

// ChangeRate is the percentage move from prev to cur, or nil when there
// is no usable previous price.
func ChangeRate(prev *decimal.Decimal, cur decimal.Decimal) *decimal.Decimal {
	if prev == nil || prev.IsZero() {
		return nil
	}
	rate := cur.Sub(*prev).Div(*prev).Mul(decimal.NewFromInt(100)).Round(MoneyPlaces)
	return &rate
}

// ExceedsThreshold reports whether |rate| reaches pct percent.
func ExceedsThreshold(rate *decimal.Decimal, pct float64) bool {
	if rate == nil || pct <= 0 {
		return false
	}
	return rate.Abs().GreaterThanOrEqual(decimal.NewFromFloat(pct))
}

// SupplierPrice is a supplier's current and recent average price.
type SupplierPrice struct {
	SupplierID   *string         `json:"supplier_id,omitempty"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	AveragePrice decimal.Decimal `json:"average_price"`
	History      []PriceRecord   `json:"history"`
}

// PriceComparison lines up suppliers for one herb.
type PriceComparison struct {
	HerbID        string          `json:"herb_id"`
	Prices        []SupplierPrice `json:"prices"`
	MarketAverage decimal.Decimal `json:"market_average"`
}

// ComparePrices groups records, newest first within each supplier, into a
// comparison. Records beyond ComparisonDepth per supplier are ignored.
func ComparePrices(herbID string, records []PriceRecord) PriceComparison {
	cmp := PriceComparison{HerbID: herbID, Prices: []SupplierPrice{}, MarketAverage: decimal.Zero}

	index := map[string]int{}
	for _, r := range records {
		key := ""
		if r.SupplierID != nil {
			key = *r.SupplierID
		}
		i, ok := index[key]
		if !ok {
			i = len(cmp.Prices)
			index[key] = i
			cmp.Prices = append(cmp.Prices, SupplierPrice{SupplierID: r.SupplierID, CurrentPrice: r.Price})
		}
		if len(cmp.Prices[i].History) < ComparisonDepth {
			cmp.Prices[i].History = append(cmp.Prices[i].History, r)
		}
	}

	if len(cmp.Prices) == 0 {
		return cmp
	}

	market := decimal.Zero
	for i := range cmp.Prices {
		p := &cmp.Prices[i]
		sum := decimal.Zero
		for _, h := range p.History {
			sum = sum.Add(h.Price)
		}
		p.AveragePrice = sum.DivRound(decimal.NewFromInt(int64(len(p.History))), MoneyPlaces)
		market = market.Add(p.CurrentPrice)
	}
	cmp.MarketAverage = market.DivRound(decimal.NewFromInt(int64(len(cmp.Prices))), MoneyPlaces)

	return cmp
}
