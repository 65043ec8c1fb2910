package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/repository"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/herbstock/herbstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record applies a movement and appends the matching ledger entry in one transaction
func record(t *testing.T, ctx context.Context, itemID string, m domain.Movement) *domain.LedgerEntry {
	t.Helper()
	items := repository.NewItemRepository(suite.DB)
	ledger := repository.NewTransactionRepository(suite.DB)

	var entry *domain.LedgerEntry
	err := suite.DB.Transaction(ctx, func(ctx context.Context) error {
		item, err := items.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		out, err := domain.Apply(item.Stock(), m)
		if err != nil {
			return err
		}
		_, seq, err := items.ApplyMovement(ctx, item.ID, item.Version, out, time.Now())
		if err != nil {
			return err
		}
		entry = &domain.LedgerEntry{
			LocationID:       item.LocationID,
			ItemID:           item.ID,
			Sequence:         seq,
			Kind:             m.Kind,
			Quantity:         out.Quantity,
			UnitPrice:        m.UnitPrice,
			TotalAmount:      out.TotalAmount,
			PreviousQuantity: out.PreviousQuantity,
			NewQuantity:      out.NewQuantity,
			PerformedBy:      "tester",
		}
		return ledger.Insert(ctx, entry)
	})
	require.NoError(t, err)
	return entry
}

func TestTransactionRepository_ChainAndListing(t *testing.T) {
	testutil.SkipIfShort(t)
	locationID, ctx := suite.NewLocation(t)
	repo := repository.NewTransactionRepository(suite.DB)
	item := createItem(t, ctx, locationID, testutil.WithHerbName("Angelica"))

	record(t, ctx, item.ID, domain.Movement{Kind: domain.KindPurchase, Quantity: testutil.Dec("100"), UnitPrice: testutil.PtrDec("2")})
	record(t, ctx, item.ID, domain.Movement{Kind: domain.KindUsage, Quantity: testutil.Dec("30")})
	record(t, ctx, item.ID, domain.Movement{Kind: domain.KindDisposal, Quantity: testutil.Dec("5")})

	chain, err := repo.ListChain(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	for i, e := range chain {
		assert.Equal(t, int64(i+1), e.Sequence)
	}
	assert.Equal(t, "200", chain[0].TotalAmount.String())

	current, err := repository.NewItemRepository(suite.DB).GetByID(ctx, item.ID)
	require.NoError(t, err)
	report := domain.VerifyChain(item.ID, chain, current.Quantity)
	assert.True(t, report.Consistent)
	assert.Equal(t, "65", report.Replayed.String())

	listed, err := repo.List(ctx, domain.TransactionFilter{ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, domain.KindDisposal, listed[0].Kind, "newest first")
	assert.Equal(t, "Angelica", *listed[0].HerbName)

	usage, err := repo.List(ctx, domain.TransactionFilter{Kind: domain.KindUsage})
	require.NoError(t, err)
	assert.Len(t, usage, 1)

	paged, err := repo.List(ctx, domain.TransactionFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestTransactionRepository_AppendOnly(t *testing.T) {
	testutil.SkipIfShort(t)
	locationID, ctx := suite.NewLocation(t)
	item := createItem(t, ctx, locationID)
	entry := record(t, ctx, item.ID, domain.Movement{Kind: domain.KindPurchase, Quantity: testutil.Dec("10")})

	_, err := suite.DB.ExecContext(ctx, `UPDATE inventory_transactions SET quantity = 1 WHERE id = $1`, entry.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = suite.DB.ExecContext(ctx, `DELETE FROM inventory_transactions WHERE id = $1`, entry.ID)
	require.Error(t, err)
}

func TestTransactionRepository_DuplicateSequenceRejected(t *testing.T) {
	testutil.SkipIfShort(t)
	locationID, ctx := suite.NewLocation(t)
	repo := repository.NewTransactionRepository(suite.DB)
	item := createItem(t, ctx, locationID)
	entry := record(t, ctx, item.ID, domain.Movement{Kind: domain.KindPurchase, Quantity: testutil.Dec("10")})

	dup := *entry
	dup.ID = ""
	err := repo.Insert(ctx, &dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestTransactionRepository_UsageTotals(t *testing.T) {
	testutil.SkipIfShort(t)
	locationID, ctx := suite.NewLocation(t)
	repo := repository.NewTransactionRepository(suite.DB)

	busy := createItem(t, ctx, locationID)
	quiet := createItem(t, ctx, locationID)
	record(t, ctx, busy.ID, domain.Movement{Kind: domain.KindPurchase, Quantity: testutil.Dec("500")})
	record(t, ctx, quiet.ID, domain.Movement{Kind: domain.KindPurchase, Quantity: testutil.Dec("50")})
	record(t, ctx, busy.ID, domain.Movement{Kind: domain.KindUsage, Quantity: testutil.Dec("120")})
	record(t, ctx, busy.ID, domain.Movement{Kind: domain.KindUsage, Quantity: testutil.Dec("30")})
	record(t, ctx, quiet.ID, domain.Movement{Kind: domain.KindUsage, Quantity: testutil.Dec("10")})
	record(t, ctx, quiet.ID, domain.Movement{Kind: domain.KindDisposal, Quantity: testutil.Dec("10")})

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	totals, err := repo.UsageTotals(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, totals, 2)

	assert.Equal(t, busy.ID, totals[0].ItemID)
	assert.Equal(t, "150", totals[0].TotalUsage.String())
	assert.Equal(t, "350", totals[0].CurrentQuantity.String())
	assert.Equal(t, "10", totals[1].TotalUsage.String(), "disposals are not usage")
}
