package service

import (
	"context"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/events"
	"github.com/herbstock/herbstock-backend/internal/inventory/repository"
	"github.com/herbstock/herbstock-backend/pkg/actor"
	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/herbstock/herbstock-backend/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Evaluator derives alerts from an item snapshot. It returns only the
// alerts it newly created.
type Evaluator interface {
	Evaluate(ctx context.Context, item *domain.Item) ([]*domain.Alert, error)
}

// RecordRequest describes one stock-affecting event
type RecordRequest struct {
	ItemID          string
	Kind            domain.TransactionKind
	Quantity        decimal.Decimal
	UnitPrice       *decimal.Decimal
	Note            *string
	PrescriptionID  *string
	PurchaseOrderID *string
	OrderLineIndex  *int
}

// Recorder is the only writer of item quantity and cost basis. Each call
// locks the item row, applies the movement, bumps the item version and
// appends the ledger entry in one database transaction.
type Recorder struct {
	db         *database.DB
	items      *repository.ItemRepository
	ledger     *repository.TransactionRepository
	evaluator  Evaluator
	publisher  *events.InventoryEventPublisher
	metrics    *metrics.Metrics
	maxRetries int
	now        func() time.Time
	logger     *logger.Logger
}

// NewRecorder creates a new transaction recorder
func NewRecorder(
	db *database.DB,
	items *repository.ItemRepository,
	ledger *repository.TransactionRepository,
	evaluator Evaluator,
	publisher *events.InventoryEventPublisher,
	m *metrics.Metrics,
	maxRetries int,
	log *logger.Logger,
) *Recorder {
	return &Recorder{
		db:         db,
		items:      items,
		ledger:     ledger,
		evaluator:  evaluator,
		publisher:  publisher,
		metrics:    m,
		maxRetries: maxRetries,
		now:        time.Now,
		logger:     log.WithComponent("recorder"),
	}
}

// Record applies req and returns the committed ledger entry. Alerts are
// evaluated after commit; their failures are logged, never returned.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) (*domain.LedgerEntry, error) {
	var (
		item  *domain.Item
		entry *domain.LedgerEntry
	)

	err := withRetry(ctx, r.maxRetries, r.metrics, r.logger, func(ctx context.Context) error {
		return r.db.Transaction(ctx, func(ctx context.Context) error {
			var err error
			item, entry, err = r.recordInTx(ctx, req)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, errors.ErrInsufficientStock) {
			r.metrics.StockShortfall()
		}
		return nil, err
	}

	r.afterCommit(ctx, item, entry)
	return entry, nil
}

// recordInTx does the locked read-modify-write. ctx must carry a transaction.
func (r *Recorder) recordInTx(ctx context.Context, req RecordRequest) (*domain.Item, *domain.LedgerEntry, error) {
	item, err := r.items.GetForUpdate(ctx, req.ItemID)
	if err != nil {
		return nil, nil, err
	}

	out, err := domain.Apply(item.Stock(), domain.Movement{
		Kind:      req.Kind,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
	})
	if err != nil {
		return nil, nil, err
	}

	at := r.now()
	version, seq, err := r.items.ApplyMovement(ctx, item.ID, item.Version, out, at)
	if err != nil {
		return nil, nil, err
	}

	item.Quantity = out.NewQuantity
	item.CostBasis = out.CostBasis
	item.Version = version
	item.LedgerSeq = seq
	if out.Restocked {
		item.LastRestockDate = &at
	}
	if out.Consumed {
		item.LastUsedDate = &at
	}

	entry := &domain.LedgerEntry{
		LocationID:       item.LocationID,
		ItemID:           item.ID,
		Sequence:         seq,
		Kind:             req.Kind,
		Quantity:         out.Quantity,
		UnitPrice:        out.UnitPrice,
		TotalAmount:      out.TotalAmount,
		PreviousQuantity: out.PreviousQuantity,
		NewQuantity:      out.NewQuantity,
		PrescriptionID:   req.PrescriptionID,
		PurchaseOrderID:  req.PurchaseOrderID,
		OrderLineIndex:   req.OrderLineIndex,
		Note:             req.Note,
		PerformedBy:      actor.IDFromContext(ctx),
		HerbName:         item.HerbName,
	}
	if err := r.ledger.Insert(ctx, entry); err != nil {
		return nil, nil, err
	}

	return item, entry, nil
}

func (r *Recorder) afterCommit(ctx context.Context, item *domain.Item, entry *domain.LedgerEntry) {
	r.metrics.TransactionRecorded(string(entry.Kind))
	r.publisher.PublishStockRecorded(ctx, item, entry)
	r.evaluate(ctx, item)
}

// evaluate runs the alert rules after commit, retrying once. A second
// failure is logged and left to the daily sweep.
func (r *Recorder) evaluate(ctx context.Context, item *domain.Item) {
	if r.evaluator == nil {
		return
	}

	_, err := r.evaluator.Evaluate(ctx, item)
	if err == nil {
		return
	}
	r.logger.Warn().Err(err).Str("item_id", item.ID).Msg("alert evaluation failed, retrying")

	if _, err := r.evaluator.Evaluate(ctx, item); err != nil {
		r.logger.Error().
			Err(err).
			Str("item_id", item.ID).
			Str("location_id", item.LocationID).
			Msg("alert evaluation failed after commit")
	}
}

// withRetry replays fn after lock conflicts, serialization failures and
// deadlocks. Once the budget is spent the caller sees ConcurrentModification.
func withRetry(ctx context.Context, maxRetries int, m *metrics.Metrics, log *logger.Logger, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || !isConflict(err) {
			return err
		}
		if attempt >= maxRetries {
			log.Warn().Err(err).Int("attempts", attempt+1).Msg("giving up after concurrent modifications")
			return errors.ConcurrentModification("inventory item")
		}
		m.RecordRetried()
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("retrying after conflict")
	}
}

func isConflict(err error) bool {
	return errors.Is(err, errors.ErrConcurrentModification) || database.IsRetryable(err)
}
