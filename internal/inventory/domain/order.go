package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrderStatus is a purchase order's place in the workflow.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderSubmitted OrderStatus = "submitted"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderReceived  OrderStatus = "received"
	OrderCancelled OrderStatus = "cancelled"
)

// nextStatus is the single forward step out of each open status. Shipped
// has none here: received is reached only by receiving the order.
var nextStatus = map[OrderStatus]OrderStatus{
	OrderDraft:     OrderSubmitted,
	OrderSubmitted: OrderConfirmed,
	OrderConfirmed: OrderShipped,
}

// ParseOrderStatus accepts any letter case.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case OrderDraft, OrderSubmitted, OrderConfirmed, OrderShipped, OrderReceived, OrderCancelled:
		return st, nil
	}
	return "", errors.BadRequest(fmt.Sprintf("unknown order status %q", s))
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s == OrderReceived || s == OrderCancelled
}

// CanTransitionTo reports whether a plain status update may move s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == OrderCancelled {
		return true
	}
	return nextStatus[s] == next
}

// CanReceive reports whether the order may be received from s.
func (s OrderStatus) CanReceive() bool {
	return !s.Terminal()
}

// OrderLine is one herb on a purchase order.
type OrderLine struct {
	HerbID    string          `json:"herb_id"`
	HerbName  *string         `json:"herb_name,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderLines is stored as a JSONB array.
type OrderLines []OrderLine

// Value implements driver.Valuer
func (l OrderLines) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *OrderLines) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("order lines: unsupported type %T", src)
	}
}

// PurchaseOrder is a supplier order. Totals are fixed at creation.
type PurchaseOrder struct {
	ID                 string          `db:"id" json:"id"`
	LocationID         string          `db:"location_id" json:"location_id"`
	OrderNumber        string          `db:"order_number" json:"order_number"`
	SupplierID         *string         `db:"supplier_id" json:"supplier_id,omitempty"`
	OrderedBy          string          `db:"ordered_by" json:"ordered_by"`
	Lines              OrderLines      `db:"lines" json:"lines"`
	Subtotal           decimal.Decimal `db:"subtotal" json:"subtotal"`
	ShippingFee        decimal.Decimal `db:"shipping_fee" json:"shipping_fee"`
	Discount           decimal.Decimal `db:"discount" json:"discount"`
	FinalAmount        decimal.Decimal `db:"final_amount" json:"final_amount"`
	Status             OrderStatus     `db:"status" json:"status"`
	OrderDate          time.Time       `db:"order_date" json:"order_date"`
	ExpectedDate       *time.Time      `db:"expected_date" json:"expected_date,omitempty"`
	ActualDeliveryDate *time.Time      `db:"actual_delivery_date" json:"actual_delivery_date,omitempty"`
	ReceivedBy         *string         `db:"received_by" json:"received_by,omitempty"`
	Notes              *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// Totals are the computed amounts of an order.
type Totals struct {
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Discount    decimal.Decimal
	FinalAmount decimal.Decimal
}

// PriceLines fills in unit defaults and line totals and sums the order:
// subtotal is the sum of line totals, final is subtotal + shipping - discount.
func PriceLines(lines []OrderLine, shipping, discount decimal.Decimal) (OrderLines, Totals, error) {
	if len(lines) == 0 {
		return nil, Totals{}, errors.BadRequest("an order needs at least one line")
	}
	if shipping.IsNegative() || discount.IsNegative() {
		return nil, Totals{}, errors.BadRequest("shipping fee and discount must not be negative")
	}

	priced := make(OrderLines, len(lines))
	subtotal := decimal.Zero
	for i, line := range lines {
		if !line.Quantity.IsPositive() {
			return nil, Totals{}, errors.InvalidQuantity(fmt.Sprintf("line %d: quantity must be greater than zero", i+1))
		}
		if line.UnitPrice.IsNegative() {
			return nil, Totals{}, errors.BadRequest(fmt.Sprintf("line %d: unit price must not be negative", i+1))
		}
		if line.Unit == "" {
			line.Unit = DefaultUnit
		}
		line.Quantity = line.Quantity.Round(QuantityPlaces)
		line.LineTotal = line.Quantity.Mul(line.UnitPrice).Round(MoneyPlaces)
		subtotal = subtotal.Add(line.LineTotal)
		priced[i] = line
	}

	final := subtotal.Add(shipping).Sub(discount)
	if final.IsNegative() {
		return nil, Totals{}, errors.BadRequest("discount exceeds order total")
	}

	return priced, Totals{
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Discount:    discount,
		FinalAmount: final,
	}, nil
}

// BusinessDay truncates t to midnight of its calendar day in loc.
func BusinessDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// FormatOrderNumber renders PO-YYYYMMDD-NNNN.
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("PO-%s-%04d", day.Format("20060102"), seq)
}

// OrderFilter narrows listOrders
type OrderFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}
