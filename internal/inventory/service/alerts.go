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
	"github.com/herbstock/herbstock-backend/pkg/location"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/herbstock/herbstock-backend/pkg/metrics"
	"github.com/shopspring/decimal"
)

// AlertService evaluates alert rules against items and manages the alerts
// they produce. The same Evaluate runs after every transaction and during
// the sweep.
type AlertService struct {
	db        *database.DB
	items     *repository.ItemRepository
	alerts    *repository.AlertRepository
	publisher *events.InventoryEventPublisher
	metrics   *metrics.Metrics
	policy    domain.ExpiryPolicy
	now       func() time.Time
	logger    *logger.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(
	db *database.DB,
	items *repository.ItemRepository,
	alerts *repository.AlertRepository,
	publisher *events.InventoryEventPublisher,
	m *metrics.Metrics,
	policy domain.ExpiryPolicy,
	log *logger.Logger,
) *AlertService {
	return &AlertService{
		db:        db,
		items:     items,
		alerts:    alerts,
		publisher: publisher,
		metrics:   m,
		policy:    policy,
		now:       time.Now,
		logger:    log.WithComponent("alerts"),
	}
}

// Evaluate raises the alerts item currently warrants and resolves the ones
// it no longer does. At most one stock-level alert stays open per item.
//
// The decision is made on the item row as stored, locked for the duration,
// so an evaluation that arrives late never undoes a newer one. The passed
// snapshot only identifies the item.
func (s *AlertService) Evaluate(ctx context.Context, snapshot *domain.Item) ([]*domain.Alert, error) {
	var (
		item    *domain.Item
		created []*domain.Alert
	)

	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.items.GetForUpdate(ctx, snapshot.ID)
		if err != nil {
			return err
		}

		var wanted []domain.AlertCandidate
		var clear []domain.AlertType

		stock := domain.StockAlert(item)
		for _, t := range domain.StockAlertTypes {
			if stock == nil || stock.Type != t {
				clear = append(clear, t)
			}
		}
		if stock != nil {
			wanted = append(wanted, *stock)
		}

		if expiry := domain.ExpiryAlert(item, s.now(), s.policy); expiry != nil {
			wanted = append(wanted, *expiry)
		} else {
			clear = append(clear, domain.AlertExpiringSoon)
		}

		if _, err := s.alerts.ResolveOpen(ctx, item.ID, clear, actor.SystemID); err != nil {
			return err
		}

		created, err = s.raise(ctx, item, wanted...)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, item, created)
	return created, nil
}

// raise inserts each candidate unless an open alert of its type exists
func (s *AlertService) raise(ctx context.Context, item *domain.Item, candidates ...domain.AlertCandidate) ([]*domain.Alert, error) {
	created := []*domain.Alert{}
	for _, c := range candidates {
		alert := c.For(item)
		alert.HerbName = item.HerbName

		inserted, err := s.alerts.InsertIfAbsent(ctx, alert)
		if err != nil {
			return nil, err
		}
		if inserted {
			created = append(created, alert)
		}
	}
	return created, nil
}

// announce reports alerts once they are committed
func (s *AlertService) announce(ctx context.Context, item *domain.Item, created []*domain.Alert) {
	for _, alert := range created {
		s.metrics.AlertRaised(string(alert.AlertType))
		s.publisher.PublishAlertRaised(ctx, alert)
		s.logger.Info().
			Str("alert_id", alert.ID).
			Str("item_id", item.ID).
			Str("alert_type", string(alert.AlertType)).
			Str("severity", string(alert.Severity)).
			Msg("alert raised")
	}
}

// RaisePriceChange flags a price move on the item stocking herbID at the
// current location. Herbs that are not stocked are ignored.
func (s *AlertService) RaisePriceChange(ctx context.Context, herbID string, changeRate decimal.Decimal) (*domain.Alert, error) {
	item, err := s.items.GetByHerb(ctx, herbID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	created, err := s.raise(ctx, item, domain.PriceChangeAlert(item, changeRate))
	if err != nil || len(created) == 0 {
		return nil, err
	}
	s.announce(ctx, item, created)
	return created[0], nil
}

// Resolve resolves an alert in the name of the caller. Resolving an alert
// twice returns it unchanged.
func (s *AlertService) Resolve(ctx context.Context, id string) (*domain.Alert, error) {
	return s.alerts.Resolve(ctx, id, actor.IDFromContext(ctx))
}

// List lists the current location's alerts
func (s *AlertService) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	return s.alerts.List(ctx, filter)
}

// SweepResult summarizes one sweep
type SweepResult struct {
	Items        int           `json:"items"`
	AlertsRaised int           `json:"alerts_raised"`
	Failures     int           `json:"failures"`
	Duration     time.Duration `json:"duration"`
}

// Sweep re-evaluates every item of every location. It catches conditions
// that arise with the passage of time, such as expiry countdowns.
func (s *AlertService) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()

	refs, err := s.items.ListAllRefs(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, ref := range refs {
		scoped := location.WithLocationID(ctx, ref.LocationID)
		scoped = actor.WithActor(scoped, actor.SystemActor())

		// Evaluate loads the row itself
		s.sweepItem(scoped, &domain.Item{ID: ref.ID, LocationID: ref.LocationID}, result)
	}

	result.Duration = time.Since(start)
	s.metrics.SweepFinished(result.Duration)
	return result, nil
}

// SweepLocation re-evaluates the items of the current location only
func (s *AlertService) SweepLocation(ctx context.Context) (*SweepResult, error) {
	start := time.Now()

	items, err := s.items.List(ctx, domain.ItemFilter{})
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, item := range items {
		s.sweepItem(ctx, item, result)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (s *AlertService) sweepItem(ctx context.Context, item *domain.Item, result *SweepResult) {
	result.Items++
	created, err := s.Evaluate(ctx, item)
	result.AlertsRaised += len(created)
	if err != nil {
		result.Failures++
		s.logger.Error().Err(err).Str("item_id", item.ID).Msg("sweep: evaluation failed")
	}
}
