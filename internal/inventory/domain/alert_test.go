package domain_test

import (
	"testing"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stockItem(qty string) *domain.Item {
	name := "Ginseng"
	return &domain.Item{
		ID:            "item-1",
		LocationID:    "loc-1",
		HerbName:      &name,
		Quantity:      d(qty),
		Unit:          "g",
		MinStockLevel: d("20"),
		ReorderPoint:  d("50"),
	}
}

func TestStockAlert(t *testing.T) {
	tests := []struct {
		qty      string
		wantType domain.AlertType
		wantSev  domain.Severity
	}{
		{"0", domain.AlertOutOfStock, domain.SeverityCritical},
		{"10", domain.AlertReorderPoint, domain.SeverityHigh},
		{"50", domain.AlertReorderPoint, domain.SeverityHigh},
		{"50.001", "", ""},
		{"200", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.qty, func(t *testing.T) {
			c := domain.StockAlert(stockItem(tt.qty))
			if tt.wantType == "" {
				assert.Nil(t, c)
				return
			}
			require.NotNil(t, c)
			assert.Equal(t, tt.wantType, c.Type)
			assert.Equal(t, tt.wantSev, c.Severity)
		})
	}
}

func TestStockAlert_LowStockBelowMinimumOnly(t *testing.T) {
	item := stockItem("30")
	item.ReorderPoint = d("10")
	item.MinStockLevel = d("40")

	c := domain.StockAlert(item)
	require.NotNil(t, c)
	assert.Equal(t, domain.AlertLowStock, c.Type)
	assert.Equal(t, domain.SeverityMedium, c.Severity)
	assert.Equal(t, "40", c.Data.MinLevel.String())
	assert.Contains(t, c.Message, "Ginseng")
}

func TestStockAlert_GenericLabel(t *testing.T) {
	item := stockItem("0")
	item.HerbName = nil

	c := domain.StockAlert(item)
	require.NotNil(t, c)
	assert.Equal(t, "herb is out of stock", c.Message)
}

func TestExpiryAlert(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(days int) *time.Time {
		e := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
		return &e
	}

	tests := []struct {
		name    string
		expiry  *time.Time
		wantSev domain.Severity
		wantNil bool
	}{
		{"no expiry date", nil, "", true},
		{"far away", at(60), "", true},
		{"edge of window", at(30), domain.SeverityHigh, false},
		{"inside window", at(20), domain.SeverityHigh, false},
		{"critical", at(7), domain.SeverityCritical, false},
		{"already expired", at(-3), domain.SeverityCritical, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := stockItem("100")
			item.ExpiryDate = tt.expiry

			c := domain.ExpiryAlert(item, now, domain.DefaultExpiryPolicy)
			if tt.wantNil {
				assert.Nil(t, c)
				return
			}
			require.NotNil(t, c)
			assert.Equal(t, domain.AlertExpiringSoon, c.Type)
			assert.Equal(t, tt.wantSev, c.Severity)
			assert.Equal(t, tt.expiry.Format(time.DateOnly), c.Data.ExpiryDate)
		})
	}
}

func TestDaysUntil_RoundsUp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, domain.DaysUntil(now.Add(time.Hour), now))
	assert.Equal(t, 2, domain.DaysUntil(now.Add(36*time.Hour), now))
	assert.Equal(t, 0, domain.DaysUntil(now.Add(-time.Hour), now))
}

func TestAlertPayload_RoundTripsThroughJSONB(t *testing.T) {
	days := 5
	qty := d("12.5")
	in := domain.AlertPayload{CurrentQuantity: &qty, DaysUntilExpiry: &days, ExpiryDate: "2026-03-06"}

	v, err := in.Value()
	require.NoError(t, err)

	var out domain.AlertPayload
	require.NoError(t, out.Scan(v))
	assert.Equal(t, "12.5", out.CurrentQuantity.String())
	assert.Equal(t, 5, *out.DaysUntilExpiry)
	assert.Nil(t, out.MinLevel)
}

func TestPriceChangeAlert(t *testing.T) {
	c := domain.PriceChangeAlert(stockItem("100"), d("-12.5"))
	assert.Equal(t, domain.AlertPriceChange, c.Type)
	assert.Equal(t, domain.SeverityMedium, c.Severity)
	assert.Equal(t, "Ginseng price fell by 12.50%", c.Message)
}
