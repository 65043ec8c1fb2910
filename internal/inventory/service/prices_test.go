package service_test

import (
	"testing"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/service"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/herbstock/herbstock-backend/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrices_ChangeRaisesAlertOnStockedHerb(t *testing.T) {
	testutil.SkipIfShort(t)
	e := newEngine(t)
	_, ctx := suite.NewLocation(t)
	item := e.stock(t, ctx, "Goji Berry", "0", "0")
	_, err := record(t, e, ctx, item.ID, domain.KindPurchase, "10")
	require.NoError(t, err)

	supplier := testutil.PtrString(uuid.NewString())

	first, err := e.prices.RecordPrice(ctx, service.RecordPriceRequest{HerbID: item.HerbID, SupplierID: supplier, Price: testutil.Dec("100")})
	require.NoError(t, err)
	assert.Nil(t, first.PreviousPrice)
	assert.Nil(t, first.ChangeRate)

	second, err := e.prices.RecordPrice(ctx, service.RecordPriceRequest{HerbID: item.HerbID, SupplierID: supplier, Price: testutil.Dec("120")})
	require.NoError(t, err)
	require.NotNil(t, second.ChangeRate)
	assert.Equal(t, "100", second.PreviousPrice.String())
	assert.Equal(t, "20", second.ChangeRate.String())

	open := e.openAlerts(t, ctx, item.ID)
	require.Contains(t, open, domain.AlertPriceChange)
	assert.Equal(t, "20", open[domain.AlertPriceChange].Data.PriceChange.String())

	t.Run("a small move stays quiet", func(t *testing.T) {
		rec, err := e.prices.RecordPrice(ctx, service.RecordPriceRequest{HerbID: item.HerbID, SupplierID: supplier, Price: testutil.Dec("125")})
		require.NoError(t, err)
		assert.Equal(t, "4.17", rec.ChangeRate.String())
	})
}

func TestPrices_UnstockedHerbRecordsWithoutAlert(t *testing.T) {
	testutil.SkipIfShort(t)
	e := newEngine(t)
	_, ctx := suite.NewLocation(t)
	herbID := uuid.NewString()

	_, err := e.prices.RecordPrice(ctx, service.RecordPriceRequest{HerbID: herbID, Price: testutil.Dec("10")})
	require.NoError(t, err)
	_, err = e.prices.RecordPrice(ctx, service.RecordPriceRequest{HerbID: herbID, Price: testutil.Dec("30")})
	require.NoError(t, err)

	alerts, err := e.alerts.List(ctx, domain.AlertFilter{Type: domain.AlertPriceChange})
	require.NoError(t, err)
	assert.Empty(t, alerts)

	_, err = e.prices.RecordPrice(ctx, service.RecordPriceRequest{HerbID: herbID, Price: testutil.Dec("0")})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestPrices_HistoryAndCompare(t *testing.T) {
	testutil.SkipIfShort(t)
	e := newEngine(t)
	_, ctx := suite.NewLocation(t)
	herbID := uuid.NewString()
	north := testutil.PtrString(uuid.NewString())
	south := testutil.PtrString(uuid.NewString())

	for _, p := range []string{"10", "12", "14"} {
		_, err := e.prices.RecordPrice(ctx, service.RecordPriceRequest{HerbID: herbID, SupplierID: north, Price: testutil.Dec(p)})
		require.NoError(t, err)
	}
	_, err := e.prices.RecordPrice(ctx, service.RecordPriceRequest{HerbID: herbID, SupplierID: south, Price: testutil.Dec("20")})
	require.NoError(t, err)

	history, err := e.prices.History(ctx, herbID, north, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "10", history[0].Price.String(), "oldest first")

	all, err := e.prices.History(ctx, herbID, nil, 30)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	cmp, err := e.prices.Compare(ctx, herbID)
	require.NoError(t, err)
	require.Len(t, cmp.Prices, 2)
	bySupplier := map[string]domain.SupplierPrice{}
	for _, p := range cmp.Prices {
		bySupplier[*p.SupplierID] = p
	}
	assert.Equal(t, "14", bySupplier[*north].CurrentPrice.String())
	assert.Equal(t, "12", bySupplier[*north].AveragePrice.String())
	assert.Equal(t, "20", bySupplier[*south].CurrentPrice.String())
	assert.Equal(t, "17", cmp.MarketAverage.String())
}
