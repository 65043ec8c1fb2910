package domain_test

import (
	"testing"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// ============================================================================
// QUANTITY RULES
// ============================================================================

func TestApply_QuantityByKind(t *testing.T) {
	tests := []struct {
		name  string
		start string
		kind  domain.TransactionKind
		qty   string
		want  string
	}{
		{"purchase adds", "10", domain.KindPurchase, "5", "15"},
		{"usage subtracts", "10", domain.KindUsage, "4", "6"},
		{"usage may empty the item", "10", domain.KindUsage, "10", "0"},
		{"disposal subtracts", "10", domain.KindDisposal, "2.5", "7.5"},
		{"return adds", "10", domain.KindReturn, "1", "11"},
		{"adjustment sets absolute value", "10", domain.KindAdjustment, "3", "3"},
		{"adjustment to zero", "10", domain.KindAdjustment, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := domain.Apply(
				domain.StockState{Quantity: d(tt.start)},
				domain.Movement{Kind: tt.kind, Quantity: d(tt.qty)},
			)
			require.NoError(t, err)
			assert.Equal(t, tt.start, out.PreviousQuantity.String())
			assert.Equal(t, tt.want, out.NewQuantity.String())
		})
	}
}

func TestApply_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.TransactionKind
		qty     string
		price   *decimal.Decimal
		wantErr error
	}{
		{"usage beyond stock", domain.KindUsage, "1000", nil, errors.ErrInsufficientStock},
		{"disposal beyond stock", domain.KindDisposal, "40.001", nil, errors.ErrInsufficientStock},
		{"zero purchase", domain.KindPurchase, "0", nil, errors.ErrInvalidQuantity},
		{"negative usage", domain.KindUsage, "-3", nil, errors.ErrInvalidQuantity},
		{"negative adjustment", domain.KindAdjustment, "-1", nil, errors.ErrInvalidQuantity},
		{"negative price", domain.KindPurchase, "1", dp("-2"), errors.ErrBadRequest},
		{"unknown kind", domain.TransactionKind("theft"), "1", nil, errors.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.Apply(
				domain.StockState{Quantity: d("40")},
				domain.Movement{Kind: tt.kind, Quantity: d(tt.qty), UnitPrice: tt.price},
			)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestApply_InsufficientStockDetails(t *testing.T) {
	_, err := domain.Apply(
		domain.StockState{Quantity: d("40")},
		domain.Movement{Kind: domain.KindUsage, Quantity: d("1000")},
	)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "40", appErr.Details["on_hand"])
	assert.Equal(t, "1000", appErr.Details["requested"])
}

// ============================================================================
// COST BASIS
// ============================================================================

func TestApply_WeightedAverageCost(t *testing.T) {
	out, err := domain.Apply(
		domain.StockState{Quantity: d("10"), CostBasis: d("80")},
		domain.Movement{Kind: domain.KindPurchase, Quantity: d("10"), UnitPrice: dp("100")},
	)
	require.NoError(t, err)

	assert.Equal(t, "20", out.NewQuantity.String())
	assert.Equal(t, "90", out.CostBasis.String())
	require.NotNil(t, out.TotalAmount)
	assert.Equal(t, "1000", out.TotalAmount.String())
	assert.True(t, out.Restocked)
	assert.False(t, out.Consumed)
}

func TestApply_CostBasisUntouched(t *testing.T) {
	tests := []struct {
		name  string
		kind  domain.TransactionKind
		price *decimal.Decimal
	}{
		{"purchase without price", domain.KindPurchase, nil},
		{"return with price", domain.KindReturn, dp("500")},
		{"usage with price", domain.KindUsage, dp("500")},
		{"adjustment with price", domain.KindAdjustment, dp("500")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := domain.Apply(
				domain.StockState{Quantity: d("10"), CostBasis: d("80")},
				domain.Movement{Kind: tt.kind, Quantity: d("5"), UnitPrice: tt.price},
			)
			require.NoError(t, err)
			assert.Equal(t, "80", out.CostBasis.String())
		})
	}
}

func TestApply_CostBasisRounding(t *testing.T) {
	out, err := domain.Apply(
		domain.StockState{Quantity: d("3"), CostBasis: d("1")},
		domain.Movement{Kind: domain.KindPurchase, Quantity: d("3"), UnitPrice: dp("2")},
	)
	require.NoError(t, err)
	assert.Equal(t, "1.5", out.CostBasis.String())

	out, err = domain.Apply(
		domain.StockState{Quantity: d("1"), CostBasis: d("1")},
		domain.Movement{Kind: domain.KindPurchase, Quantity: d("2"), UnitPrice: dp("1.5")},
	)
	require.NoError(t, err)
	assert.Equal(t, "1.3333", out.CostBasis.String())
}

func TestApply_UnitPriceRoundedBeforeUse(t *testing.T) {
	out, err := domain.Apply(
		domain.StockState{Quantity: d("0"), CostBasis: d("0")},
		domain.Movement{Kind: domain.KindPurchase, Quantity: d("1000"), UnitPrice: dp("0.014")},
	)
	require.NoError(t, err)

	require.NotNil(t, out.UnitPrice)
	assert.Equal(t, "0.01", out.UnitPrice.String())
	require.NotNil(t, out.TotalAmount)
	assert.Equal(t, "10", out.TotalAmount.String(), "total follows the stored price")
	assert.True(t, out.UnitPrice.Mul(out.Quantity).Equal(*out.TotalAmount))
	assert.Equal(t, "0.01", out.CostBasis.String())
}

func TestParseTransactionKind(t *testing.T) {
	k, err := domain.ParseTransactionKind("PURCHASE")
	require.NoError(t, err)
	assert.Equal(t, domain.KindPurchase, k)

	_, err = domain.ParseTransactionKind("gift")
	assert.Error(t, err)
}

// ============================================================================
// LEDGER CHAIN
// ============================================================================

func entry(seq int64, kind domain.TransactionKind, qty, prev, next string) domain.LedgerEntry {
	return domain.LedgerEntry{
		Sequence:         seq,
		Kind:             kind,
		Quantity:         d(qty),
		PreviousQuantity: d(prev),
		NewQuantity:      d(next),
	}
}

func TestVerifyChain(t *testing.T) {
	valid := []domain.LedgerEntry{
		entry(1, domain.KindPurchase, "200", "0", "200"),
		entry(2, domain.KindUsage, "160", "200", "40"),
		entry(3, domain.KindAdjustment, "35", "40", "35"),
		entry(4, domain.KindReturn, "5", "35", "40"),
	}

	t.Run("consistent ledger", func(t *testing.T) {
		report := domain.VerifyChain("item-1", valid, d("40"))
		assert.True(t, report.Consistent)
		assert.Nil(t, report.Break)
		assert.Equal(t, 4, report.Entries)
		assert.Equal(t, "40", report.Replayed.String())
	})

	t.Run("empty ledger on empty item", func(t *testing.T) {
		report := domain.VerifyChain("item-1", nil, decimal.Zero)
		assert.True(t, report.Consistent)
	})

	t.Run("broken link", func(t *testing.T) {
		broken := append([]domain.LedgerEntry{}, valid...)
		broken[2] = entry(3, domain.KindAdjustment, "35", "41", "35")

		report := domain.VerifyChain("item-1", broken, d("40"))
		assert.False(t, report.Consistent)
		require.NotNil(t, report.Break)
		assert.Equal(t, int64(3), report.Break.Sequence)
		assert.Equal(t, "40", report.Break.Expected.String())
	})

	t.Run("sequence gap", func(t *testing.T) {
		gap := []domain.LedgerEntry{valid[0], valid[2]}
		report := domain.VerifyChain("item-1", gap, d("35"))
		require.NotNil(t, report.Break)
		assert.Equal(t, "sequence gap", report.Break.Reason)
	})

	t.Run("item drifted from ledger", func(t *testing.T) {
		report := domain.VerifyChain("item-1", valid, d("41"))
		assert.False(t, report.Consistent)
		require.NotNil(t, report.Break)
		assert.Equal(t, "40", report.Break.Expected.String())
		assert.Equal(t, "41", report.Break.Found.String())
	})
}
