package domain_test

import (
	"testing"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// STATUS MACHINE
// ============================================================================

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from domain.OrderStatus
		to   domain.OrderStatus
		want bool
	}{
		{domain.OrderDraft, domain.OrderSubmitted, true},
		{domain.OrderSubmitted, domain.OrderConfirmed, true},
		{domain.OrderConfirmed, domain.OrderShipped, true},
		{domain.OrderDraft, domain.OrderConfirmed, false},
		{domain.OrderShipped, domain.OrderConfirmed, false},
		{domain.OrderShipped, domain.OrderReceived, false},
		{domain.OrderDraft, domain.OrderCancelled, true},
		{domain.OrderShipped, domain.OrderCancelled, true},
		{domain.OrderReceived, domain.OrderCancelled, false},
		{domain.OrderCancelled, domain.OrderDraft, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatus_CanReceive(t *testing.T) {
	for _, s := range []domain.OrderStatus{domain.OrderDraft, domain.OrderSubmitted, domain.OrderConfirmed, domain.OrderShipped} {
		assert.True(t, s.CanReceive(), s)
	}
	assert.False(t, domain.OrderReceived.CanReceive())
	assert.False(t, domain.OrderCancelled.CanReceive())
}

func TestParseOrderStatus(t *testing.T) {
	s, err := domain.ParseOrderStatus("Shipped")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, s)

	_, err = domain.ParseOrderStatus("lost")
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

// ============================================================================
// TOTALS
// ============================================================================

func TestPriceLines(t *testing.T) {
	lines := []domain.OrderLine{
		{HerbID: "h1", Quantity: d("5"), UnitPrice: d("10")},
		{HerbID: "h2", Quantity: d("2"), UnitPrice: d("50"), Unit: "kg"},
	}

	priced, totals, err := domain.PriceLines(lines, d("10"), d("5"))
	require.NoError(t, err)

	assert.Equal(t, "150", totals.Subtotal.String())
	assert.Equal(t, "155", totals.FinalAmount.String())
	assert.Equal(t, "50", priced[0].LineTotal.String())
	assert.Equal(t, "g", priced[0].Unit)
	assert.Equal(t, "kg", priced[1].Unit)
}

func TestPriceLines_Rejections(t *testing.T) {
	ok := []domain.OrderLine{{HerbID: "h1", Quantity: d("1"), UnitPrice: d("10")}}

	tests := []struct {
		name     string
		lines    []domain.OrderLine
		shipping decimal.Decimal
		discount decimal.Decimal
	}{
		{"no lines", nil, decimal.Zero, decimal.Zero},
		{"zero quantity", []domain.OrderLine{{HerbID: "h1", Quantity: decimal.Zero, UnitPrice: d("1")}}, decimal.Zero, decimal.Zero},
		{"negative price", []domain.OrderLine{{HerbID: "h1", Quantity: d("1"), UnitPrice: d("-1")}}, decimal.Zero, decimal.Zero},
		{"negative shipping", ok, d("-1"), decimal.Zero},
		{"discount above total", ok, decimal.Zero, d("11")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := domain.PriceLines(tt.lines, tt.shipping, tt.discount)
			assert.Error(t, err)
		})
	}
}

func TestOrderLines_JSONB(t *testing.T) {
	in := domain.OrderLines{{HerbID: "h1", Quantity: d("1.5"), Unit: "g", UnitPrice: d("3"), LineTotal: d("4.5")}}

	v, err := in.Value()
	require.NoError(t, err)

	var out domain.OrderLines
	require.NoError(t, out.Scan(v))
	require.Len(t, out, 1)
	assert.Equal(t, "4.5", out[0].LineTotal.String())
}

// ============================================================================
// ORDER NUMBERS
// ============================================================================

func TestFormatOrderNumber(t *testing.T) {
	day := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "PO-20260704-0001", domain.FormatOrderNumber(day, 1))
	assert.Equal(t, "PO-20260704-0042", domain.FormatOrderNumber(day, 42))
	assert.Equal(t, "PO-20260704-12345", domain.FormatOrderNumber(day, 12345))
}

func TestBusinessDay_UsesLocation(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// 20:00 UTC on the 4th is already the 5th in Seoul
	instant := time.Date(2026, 7, 4, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "20260705", domain.BusinessDay(instant, seoul).Format("20060102"))
	assert.Equal(t, "20260704", domain.BusinessDay(instant, time.UTC).Format("20060102"))
}
