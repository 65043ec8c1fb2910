package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/repository"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/herbstock/herbstock-backend/pkg/testutil"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepository_Create_DuplicateNumber(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewOrderRepository(mockDB.DB)
	ctx := testutil.LocationContext("loc-1", "tester")

	mockDB.ExpectQuery("INSERT INTO purchase_orders").
		WillReturnError(&pq.Error{Code: "23505", Constraint: repository.ConstraintOrderNumber})

	err := repo.Create(ctx, &domain.PurchaseOrder{OrderNumber: "PO-20260101-0001", Status: domain.OrderDraft})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateOrderNumber))
	mockDB.ExpectationsWereMet(t)
}

func TestOrderRepository_UpdateStatus_Stale(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewOrderRepository(mockDB.DB)

	mockDB.ExpectQuery("UPDATE purchase_orders SET status = $3").
		WithArgs("order-1", domain.OrderDraft, domain.OrderSubmitted).
		WillReturnRows(testutil.MockRows("updated_at"))

	order := &domain.PurchaseOrder{ID: "order-1", Status: domain.OrderDraft}
	err := repo.UpdateStatus(context.Background(), order, domain.OrderDraft, domain.OrderSubmitted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
	assert.Equal(t, domain.OrderDraft, order.Status)
	mockDB.ExpectationsWereMet(t)
}

func newOrder(t *testing.T, number string) *domain.PurchaseOrder {
	t.Helper()
	lines, totals, err := domain.PriceLines(domain.OrderLines{
		suite.Fixtures.OrderLine("8c7f2a52-27a5-4c1f-9d55-0d3f0a0f1b11", "100", "1.5"),
	}, testutil.Dec("5"), testutil.Dec("0"))
	require.NoError(t, err)
	return &domain.PurchaseOrder{
		OrderNumber: number,
		OrderedBy:   "tester",
		Lines:       lines,
		Subtotal:    totals.Subtotal,
		ShippingFee: totals.ShippingFee,
		Discount:    totals.Discount,
		FinalAmount: totals.FinalAmount,
		Status:      domain.OrderDraft,
	}
}

func TestOrderRepository_Lifecycle(t *testing.T) {
	testutil.SkipIfShort(t)
	_, ctx := suite.NewLocation(t)
	repo := repository.NewOrderRepository(suite.DB)

	number := "PO-20260101-" + time.Now().Format("150405")
	order := newOrder(t, number)
	require.NoError(t, repo.Create(ctx, order))
	assert.NotEmpty(t, order.ID)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, number, got.OrderNumber)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "150", got.Lines[0].LineTotal.String())
	assert.Equal(t, "155", got.FinalAmount.String())

	t.Run("order numbers are unique", func(t *testing.T) {
		_, otherCtx := suite.NewLocation(t)
		err := repo.Create(otherCtx, newOrder(t, number))
		assert.True(t, errors.Is(err, errors.ErrDuplicateOrderNumber))
	})

	require.NoError(t, repo.UpdateStatus(ctx, got, domain.OrderDraft, domain.OrderSubmitted))
	assert.Equal(t, domain.OrderSubmitted, got.Status)

	stale := *order
	err = repo.UpdateStatus(ctx, &stale, domain.OrderDraft, domain.OrderSubmitted)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))

	at := time.Now()
	require.NoError(t, repo.MarkReceived(ctx, got, "receiver", at))

	received, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderReceived, received.Status)
	require.NotNil(t, received.ReceivedBy)
	assert.Equal(t, "receiver", *received.ReceivedBy)

	err = repo.MarkReceived(ctx, received, "receiver", at)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestOrderRepository_List(t *testing.T) {
	testutil.SkipIfShort(t)
	_, ctx := suite.NewLocation(t)
	repo := repository.NewOrderRepository(suite.DB)

	suffix := time.Now().Format("150405.000")
	first := newOrder(t, "PO-20260102-A"+suffix)
	second := newOrder(t, "PO-20260102-B"+suffix)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.UpdateStatus(ctx, second, domain.OrderDraft, domain.OrderSubmitted))

	all, err := repo.List(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drafts, err := repo.List(ctx, domain.OrderFilter{Status: domain.OrderDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, first.ID, drafts[0].ID)

	page, err := repo.List(ctx, domain.OrderFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
