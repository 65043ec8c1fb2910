package service

import (
	"context"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/repository"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/herbstock/herbstock-backend/pkg/location"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// InventoryService handles item upkeep and the read-only reports
type InventoryService struct {
	items     *repository.ItemRepository
	ledger    *repository.TransactionRepository
	alerts    *repository.AlertRepository
	recorder  *Recorder
	evaluator Evaluator
	policy    domain.ExpiryPolicy
	now       func() time.Time
	logger    *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	items *repository.ItemRepository,
	ledger *repository.TransactionRepository,
	alerts *repository.AlertRepository,
	recorder *Recorder,
	evaluator Evaluator,
	policy domain.ExpiryPolicy,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		items:     items,
		ledger:    ledger,
		alerts:    alerts,
		recorder:  recorder,
		evaluator: evaluator,
		policy:    policy,
		now:       time.Now,
		logger:    log.WithComponent("inventory"),
	}
}

// UpsertItemRequest creates or updates the item stocking a herb.
// Quantity, when set, is an absolute target booked as an ADJUSTMENT.
type UpsertItemRequest struct {
	HerbID     string
	Attributes domain.ItemAttributes
	Quantity   *decimal.Decimal
}

// ItemQuery filters ListItems
type ItemQuery struct {
	Keyword      string
	LowStockOnly bool
	ExpiringOnly bool
	SupplierID   string
}

// UpsertItem creates the item on first use and updates its attributes
// afterwards. Quantity never changes here except through the recorder.
func (s *InventoryService) UpsertItem(ctx context.Context, req UpsertItemRequest) (*domain.Item, error) {
	locationID, err := location.LocationID(ctx)
	if err != nil {
		return nil, errors.Forbidden("location context required")
	}

	item, created, err := s.items.CreateIfAbsent(ctx, domain.NewItem(locationID, req.HerbID, req.Attributes))
	if err != nil {
		return nil, err
	}
	if !created {
		item.Apply(req.Attributes)
		if err := s.items.UpdateAttributes(ctx, item); err != nil {
			return nil, err
		}
	}

	if req.Quantity != nil && !req.Quantity.Equal(item.Quantity) {
		if _, err := s.recorder.Record(ctx, RecordRequest{
			ItemID:   item.ID,
			Kind:     domain.KindAdjustment,
			Quantity: *req.Quantity,
		}); err != nil {
			return nil, err
		}
		return s.items.GetByID(ctx, item.ID)
	}

	// Thresholds or expiry may have moved
	s.recorder.evaluate(ctx, item)

	s.logger.Info().
		Str("item_id", item.ID).
		Str("herb_id", item.HerbID).
		Bool("created", created).
		Msg("inventory item upserted")
	return item, nil
}

// GetItem gets an item of the current location
func (s *InventoryService) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return s.items.GetByID(ctx, id)
}

// ListItems lists the current location's items
func (s *InventoryService) ListItems(ctx context.Context, q ItemQuery) ([]*domain.Item, error) {
	filter := domain.ItemFilter{
		Keyword:      q.Keyword,
		LowStockOnly: q.LowStockOnly,
		SupplierID:   q.SupplierID,
	}
	if q.ExpiringOnly {
		cutoff := s.expiryCutoff()
		filter.ExpiringBefore = &cutoff
	}
	return s.items.List(ctx, filter)
}

// ListTransactions lists ledger entries, newest first
func (s *InventoryService) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.LedgerEntry, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, errors.BadRequest("date range ends before it starts")
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, errors.BadRequest("unknown transaction kind")
	}
	return s.ledger.List(ctx, filter)
}

// VerifyLedger replays an item's ledger and reports the first chain break
func (s *InventoryService) VerifyLedger(ctx context.Context, itemID string) (*domain.LedgerReport, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledger.ListChain(ctx, itemID)
	if err != nil {
		return nil, err
	}

	report := domain.VerifyChain(itemID, entries, item.Quantity)
	if !report.Consistent {
		s.logger.Error().
			Str("item_id", itemID).
			Str("reason", report.Break.Reason).
			Int64("sequence", report.Break.Sequence).
			Msg("ledger chain broken")
	}
	return &report, nil
}

// Summary aggregates the current location's stock and open alerts
func (s *InventoryService) Summary(ctx context.Context) (*domain.Summary, error) {
	summary, err := s.items.Summary(ctx, s.expiryCutoff())
	if err != nil {
		return nil, err
	}

	open, err := s.alerts.CountUnresolved(ctx)
	if err != nil {
		return nil, err
	}
	summary.UnresolvedAlerts = open

	return summary, nil
}

// UsageAnalysis reports usage per herb over [from, to]
func (s *InventoryService) UsageAnalysis(ctx context.Context, from, to time.Time) ([]domain.UsageStat, error) {
	if to.Before(from) {
		return nil, errors.BadRequest("date range ends before it starts")
	}

	totals, err := s.ledger.UsageTotals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return domain.AnalyzeUsage(totals, from, to), nil
}

func (s *InventoryService) expiryCutoff() time.Time {
	return s.now().AddDate(0, 0, s.policy.WindowDays)
}
