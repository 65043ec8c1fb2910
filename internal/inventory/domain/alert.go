package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// AlertType is the condition an alert reports.
type AlertType string

const (
	AlertOutOfStock   AlertType = "out_of_stock"
	AlertLowStock     AlertType = "low_stock"
	AlertReorderPoint AlertType = "reorder_point"
	AlertExpiringSoon AlertType = "expiring_soon"
	AlertPriceChange  AlertType = "price_change"
)

// StockAlertTypes are mutually exclusive: an item carries at most one of them.
var StockAlertTypes = []AlertType{AlertOutOfStock, AlertReorderPoint, AlertLowStock}

// IsStockLevel reports whether t is one of StockAlertTypes.
func (t AlertType) IsStockLevel() bool {
	return t == AlertOutOfStock || t == AlertReorderPoint || t == AlertLowStock
}

// Severity of an alert
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertPayload is the snapshot stored with an alert.
type AlertPayload struct {
	CurrentQuantity *decimal.Decimal `json:"currentQuantity,omitempty"`
	MinLevel        *decimal.Decimal `json:"minLevel,omitempty"`
	ExpiryDate      string           `json:"expiryDate,omitempty"`
	DaysUntilExpiry *int             `json:"daysUntilExpiry,omitempty"`
	PriceChange     *decimal.Decimal `json:"priceChange,omitempty"`
}

// Value implements driver.Valuer for the JSONB column.
func (p AlertPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for the JSONB column.
func (p *AlertPayload) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = AlertPayload{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("alert payload: unsupported type %T", src)
	}
}

// Alert is a derived warning about an item. Only the resolution fields
// ever change after insert.
type Alert struct {
	ID         string       `db:"id" json:"id"`
	LocationID string       `db:"location_id" json:"location_id"`
	ItemID     string       `db:"item_id" json:"item_id"`
	AlertType  AlertType    `db:"alert_type" json:"alert_type"`
	Severity   Severity     `db:"severity" json:"severity"`
	Message    string       `db:"message" json:"message"`
	Data       AlertPayload `db:"data" json:"data"`
	IsResolved bool         `db:"is_resolved" json:"is_resolved"`
	ResolvedBy *string      `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time   `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	HerbName   *string      `db:"herb_name" json:"herb_name,omitempty"`
}

// AlertCandidate is an alert the rules want to exist for an item.
type AlertCandidate struct {
	Type     AlertType
	Severity Severity
	Message  string
	Data     AlertPayload
}

// For materializes the candidate as an alert on item.
func (c AlertCandidate) For(item *Item) *Alert {
	return &Alert{
		LocationID: item.LocationID,
		ItemID:     item.ID,
		AlertType:  c.Type,
		Severity:   c.Severity,
		Message:    c.Message,
		Data:       c.Data,
	}
}

// ExpiryPolicy sets how far ahead expiry is flagged.
type ExpiryPolicy struct {
	WindowDays   int
	CriticalDays int
}

// DefaultExpiryPolicy flags 30 days ahead, critical inside a week.
var DefaultExpiryPolicy = ExpiryPolicy{WindowDays: 30, CriticalDays: 7}

// StockAlert applies the exclusive stock-level rules in order: out of stock,
// then reorder point, then minimum stock. It returns nil when stock is fine.
func StockAlert(item *Item) *AlertCandidate {
	qty := item.Quantity
	name := item.DisplayName()

	switch {
	case !qty.IsPositive():
		return &AlertCandidate{
			Type:     AlertOutOfStock,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%s is out of stock", name),
			Data:     AlertPayload{CurrentQuantity: &qty},
		}
	case qty.LessThanOrEqual(item.ReorderPoint):
		level := item.ReorderPoint
		return &AlertCandidate{
			Type:     AlertReorderPoint,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("%s has reached its reorder point (%s %s left)", name, qty.String(), item.Unit),
			Data:     AlertPayload{CurrentQuantity: &qty, MinLevel: &level},
		}
	case qty.LessThanOrEqual(item.MinStockLevel):
		level := item.MinStockLevel
		return &AlertCandidate{
			Type:     AlertLowStock,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("%s is running low (%s %s left)", name, qty.String(), item.Unit),
			Data:     AlertPayload{CurrentQuantity: &qty, MinLevel: &level},
		}
	}
	return nil
}

// DaysUntil counts whole days to expiry, rounding a partial day up.
func DaysUntil(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

// ExpiryAlert returns an expiring-soon candidate when the item expires
// inside the policy window, including items already past expiry.
func ExpiryAlert(item *Item, now time.Time, policy ExpiryPolicy) *AlertCandidate {
	if item.ExpiryDate == nil {
		return nil
	}

	days := DaysUntil(*item.ExpiryDate, now)
	if days > policy.WindowDays {
		return nil
	}

	severity := SeverityHigh
	if days <= policy.CriticalDays {
		severity = SeverityCritical
	}

	message := fmt.Sprintf("%s expires in %d days", item.DisplayName(), days)
	if days <= 0 {
		message = fmt.Sprintf("%s has expired", item.DisplayName())
	}

	return &AlertCandidate{
		Type:     AlertExpiringSoon,
		Severity: severity,
		Message:  message,
		Data: AlertPayload{
			ExpiryDate:      item.ExpiryDate.Format(time.DateOnly),
			DaysUntilExpiry: &days,
		},
	}
}

// PriceChangeAlert reports a supplier price move of changeRate percent.
func PriceChangeAlert(item *Item, changeRate decimal.Decimal) AlertCandidate {
	direction := "rose"
	if changeRate.IsNegative() {
		direction = "fell"
	}
	return AlertCandidate{
		Type:     AlertPriceChange,
		Severity: SeverityMedium,
		Message:  fmt.Sprintf("%s price %s by %s%%", item.DisplayName(), direction, changeRate.Abs().StringFixed(MoneyPlaces)),
		Data:     AlertPayload{PriceChange: &changeRate},
	}
}

// AlertFilter narrows listAlerts
type AlertFilter struct {
	UnresolvedOnly bool
	ItemID         string
	Type           AlertType
}
