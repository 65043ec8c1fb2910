package domain

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// NoUsageDaysRemaining is reported when nothing was used in the range.
const NoUsageDaysRemaining = 999

// Summary is the stock overview of one location.
type Summary struct {
	TotalItems       int             `db:"total_items" json:"total_items"`
	TotalValue       decimal.Decimal `db:"total_value" json:"total_value"`
	LowStockCount    int             `db:"low_stock_count" json:"low_stock_count"`
	OutOfStockCount  int             `db:"out_of_stock_count" json:"out_of_stock_count"`
	ExpiringCount    int             `db:"expiring_count" json:"expiring_count"`
	UnresolvedAlerts int             `db:"-" json:"unresolved_alerts"`
}

// UsageTotal is the summed usage of one item over a range.
type UsageTotal struct {
	ItemID          string          `db:"item_id"`
	HerbID          string          `db:"herb_id"`
	HerbName        *string         `db:"herb_name"`
	TotalUsage      decimal.Decimal `db:"total_usage"`
	CurrentQuantity decimal.Decimal `db:"current_quantity"`
}

// UsageStat is one row of the usage analysis.
type UsageStat struct {
	ItemID                 string          `json:"item_id"`
	HerbID                 string          `json:"herb_id"`
	HerbName               string          `json:"herb_name"`
	TotalUsage             decimal.Decimal `json:"total_usage"`
	AvgDailyUsage          decimal.Decimal `json:"avg_daily_usage"`
	CurrentQuantity        decimal.Decimal `json:"current_quantity"`
	EstimatedDaysRemaining int64           `json:"estimated_days_remaining"`
}

// RangeDays is the length of [from, to] in days, partial days rounded up,
// never less than one.
func RangeDays(from, to time.Time) int {
	days := int(math.Ceil(to.Sub(from).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// AnalyzeUsage turns usage totals into daily rates and runway estimates,
// heaviest usage first.
func AnalyzeUsage(totals []UsageTotal, from, to time.Time) []UsageStat {
	days := decimal.NewFromInt(int64(RangeDays(from, to)))

	stats := make([]UsageStat, 0, len(totals))
	for _, t := range totals {
		if !t.TotalUsage.IsPositive() {
			continue
		}

		avg := t.TotalUsage.DivRound(days, QuantityPlaces)
		remaining := int64(NoUsageDaysRemaining)
		if avg.IsPositive() {
			remaining = t.CurrentQuantity.Div(avg).Floor().IntPart()
		}

		name := GenericHerbLabel
		if t.HerbName != nil && *t.HerbName != "" {
			name = *t.HerbName
		}

		stats = append(stats, UsageStat{
			ItemID:                 t.ItemID,
			HerbID:                 t.HerbID,
			HerbName:               name,
			TotalUsage:             t.TotalUsage,
			AvgDailyUsage:          avg,
			CurrentQuantity:        t.CurrentQuantity,
			EstimatedDaysRemaining: remaining,
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalUsage.GreaterThan(stats[j].TotalUsage)
	})
	return stats
}
