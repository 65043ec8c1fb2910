package service

import (
	"context"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/repository"
	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// RecordPriceRequest carries one observed herb price
type RecordPriceRequest struct {
	HerbID     string
	SupplierID *string
	Price      decimal.Decimal
	Source     *string
}

// PriceService keeps the per-supplier price history of herbs
type PriceService struct {
	db           *database.DB
	prices       *repository.PriceRepository
	alerts       *AlertService
	thresholdPct float64
	now          func() time.Time
	logger       *logger.Logger
}

// NewPriceService creates a new price service. A move of at least
// thresholdPct percent raises a price change alert.
func NewPriceService(db *database.DB, prices *repository.PriceRepository, alerts *AlertService, thresholdPct float64, log *logger.Logger) *PriceService {
	return &PriceService{
		db:           db,
		prices:       prices,
		alerts:       alerts,
		thresholdPct: thresholdPct,
		now:          time.Now,
		logger:       log.WithComponent("prices"),
	}
}

// RecordPrice appends a price to its (herb, supplier) series, with the
// change against the previous point of the same series.
func (s *PriceService) RecordPrice(ctx context.Context, req RecordPriceRequest) (*domain.PriceRecord, error) {
	if !req.Price.IsPositive() {
		return nil, errors.BadRequest("price must be greater than zero")
	}

	rec := &domain.PriceRecord{
		HerbID:     req.HerbID,
		SupplierID: req.SupplierID,
		Price:      req.Price.Round(domain.MoneyPlaces),
		Source:     req.Source,
	}

	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		if err := s.prices.LockSeries(ctx, req.HerbID, req.SupplierID); err != nil {
			return err
		}

		prev, err := s.prices.Latest(ctx, req.HerbID, req.SupplierID)
		if err != nil {
			return err
		}
		if prev != nil {
			rec.PreviousPrice = &prev.Price
			rec.ChangeRate = domain.ChangeRate(&prev.Price, rec.Price)
		}

		return s.prices.Insert(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	if domain.ExceedsThreshold(rec.ChangeRate, s.thresholdPct) {
		if _, err := s.alerts.RaisePriceChange(ctx, rec.HerbID, *rec.ChangeRate); err != nil {
			s.logger.Error().Err(err).Str("herb_id", rec.HerbID).Msg("failed to raise price change alert")
		}
	}

	return rec, nil
}

// History returns the herb's prices over the last days, oldest first.
// days <= 0 means the default look-back.
func (s *PriceService) History(ctx context.Context, herbID string, supplierID *string, days int) ([]domain.PriceRecord, error) {
	if days <= 0 {
		days = domain.PriceHistoryDays
	}
	return s.prices.History(ctx, herbID, supplierID, s.now().AddDate(0, 0, -days))
}

// Compare lines up the current and average price of every supplier of a herb
func (s *PriceService) Compare(ctx context.Context, herbID string) (*domain.PriceComparison, error) {
	records, err := s.prices.RecentBySupplier(ctx, herbID, domain.ComparisonDepth)
	if err != nil {
		return nil, err
	}
	cmp := domain.ComparePrices(herbID, records)
	return &cmp, nil
}
