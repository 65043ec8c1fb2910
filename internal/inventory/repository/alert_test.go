package repository_test

import (
	"context"
	"testing"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/repository"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/herbstock/herbstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertRepository_InsertIfAbsent_Conflict(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewAlertRepository(mockDB.DB)

	mockDB.ExpectQuery("INSERT INTO inventory_alerts").
		WillReturnRows(testutil.MockRows("id", "created_at"))

	inserted, err := repo.InsertIfAbsent(context.Background(), &domain.Alert{
		LocationID: "loc-1",
		ItemID:     "item-1",
		AlertType:  domain.AlertLowStock,
		Severity:   domain.SeverityMedium,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	mockDB.ExpectationsWereMet(t)
}

func TestAlertRepository_ResolveOpen_NoTypes(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewAlertRepository(mockDB.DB)

	n, err := repo.ResolveOpen(context.Background(), "item-1", nil, "tester")
	require.NoError(t, err)
	assert.Zero(t, n)
	mockDB.ExpectationsWereMet(t)
}

func newAlert(item *domain.Item, typ domain.AlertType, severity domain.Severity) *domain.Alert {
	return &domain.Alert{
		LocationID: item.LocationID,
		ItemID:     item.ID,
		AlertType:  typ,
		Severity:   severity,
		Message:    item.DisplayName() + " needs attention",
	}
}

func TestAlertRepository_Dedup(t *testing.T) {
	testutil.SkipIfShort(t)
	locationID, ctx := suite.NewLocation(t)
	repo := repository.NewAlertRepository(suite.DB)
	item := createItem(t, ctx, locationID)

	first := newAlert(item, domain.AlertOutOfStock, domain.SeverityCritical)
	first.Data.CurrentQuantity = testutil.PtrDec("0")
	inserted, err := repo.InsertIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(ctx, newAlert(item, domain.AlertOutOfStock, domain.SeverityCritical))
	require.NoError(t, err)
	assert.False(t, inserted, "one open alert per item and type")

	inserted, err = repo.InsertIfAbsent(ctx, newAlert(item, domain.AlertExpiringSoon, domain.SeverityHigh))
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Data.CurrentQuantity)
	assert.True(t, got.Data.CurrentQuantity.IsZero())

	t.Run("a resolved alert can be raised again", func(t *testing.T) {
		n, err := repo.ResolveOpen(ctx, item.ID, []domain.AlertType{domain.AlertOutOfStock, domain.AlertLowStock}, "tester")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		inserted, err := repo.InsertIfAbsent(ctx, newAlert(item, domain.AlertOutOfStock, domain.SeverityCritical))
		require.NoError(t, err)
		assert.True(t, inserted)
	})
}

func TestAlertRepository_ResolveIsIdempotent(t *testing.T) {
	testutil.SkipIfShort(t)
	locationID, ctx := suite.NewLocation(t)
	repo := repository.NewAlertRepository(suite.DB)
	item := createItem(t, ctx, locationID)

	alert := newAlert(item, domain.AlertLowStock, domain.SeverityMedium)
	_, err := repo.InsertIfAbsent(ctx, alert)
	require.NoError(t, err)

	resolved, err := repo.Resolve(ctx, alert.ID, "first")
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "first", *resolved.ResolvedBy)

	again, err := repo.Resolve(ctx, alert.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "first", *again.ResolvedBy)
	assert.Equal(t, resolved.ResolvedAt.Unix(), again.ResolvedAt.Unix())

	_, otherCtx := suite.NewLocation(t)
	_, err = repo.Resolve(otherCtx, alert.ID, "intruder")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAlertRepository_ListAndCount(t *testing.T) {
	testutil.SkipIfShort(t)
	locationID, ctx := suite.NewLocation(t)
	repo := repository.NewAlertRepository(suite.DB)
	a := createItem(t, ctx, locationID)
	b := createItem(t, ctx, locationID)

	low := newAlert(a, domain.AlertLowStock, domain.SeverityMedium)
	_, err := repo.InsertIfAbsent(ctx, low)
	require.NoError(t, err)
	_, err = repo.InsertIfAbsent(ctx, newAlert(b, domain.AlertOutOfStock, domain.SeverityCritical))
	require.NoError(t, err)
	_, err = repo.InsertIfAbsent(ctx, newAlert(a, domain.AlertExpiringSoon, domain.SeverityHigh))
	require.NoError(t, err)

	all, err := repo.List(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.SeverityCritical, all[0].Severity)
	assert.Equal(t, domain.SeverityHigh, all[1].Severity)
	assert.Equal(t, domain.SeverityMedium, all[2].Severity)

	_, err = repo.Resolve(ctx, low.ID, "tester")
	require.NoError(t, err)

	open, err := repo.List(ctx, domain.AlertFilter{UnresolvedOnly: true, ItemID: a.ID})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.AlertExpiringSoon, open[0].AlertType)

	count, err := repo.CountUnresolved(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
