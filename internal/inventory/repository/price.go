package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/herbstock/herbstock-backend/pkg/errors"
)

const priceColumns = `id, location_id, herb_id, supplier_id, price, previous_price, change_rate, source, recorded_at`

// PriceRepository stores the observed price history of herbs
type PriceRepository struct {
	db *database.DB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *database.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// LockSeries serializes writers of one (herb, supplier) price series until
// the surrounding transaction ends.
func (r *PriceRepository) LockSeries(ctx context.Context, herbID string, supplierID *string) error {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return err
	}

	key := locationID + "|" + herbID + "|"
	if supplierID != nil {
		key += *supplierID
	}

	_, err = r.db.Conn(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

// Latest returns the newest price of the series, or nil when there is none
func (r *PriceRepository) Latest(ctx context.Context, herbID string, supplierID *string) (*domain.PriceRecord, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + priceColumns + ` FROM herb_prices
		WHERE location_id = $1 AND herb_id = $2 AND supplier_id IS NOT DISTINCT FROM $3
		ORDER BY recorded_at DESC LIMIT 1`

	var rec domain.PriceRecord
	err = r.db.Conn(ctx).GetContext(ctx, &rec, query, locationID, herbID, supplierID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Insert stores rec and fills in its ID and timestamp
func (r *PriceRepository) Insert(ctx context.Context, rec *domain.PriceRecord) error {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return err
	}
	rec.LocationID = locationID

	query := `
		INSERT INTO herb_prices (location_id, herb_id, supplier_id, price, previous_price, change_rate, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, recorded_at
	`

	err = r.db.Conn(ctx).QueryRowxContext(ctx, query,
		rec.LocationID, rec.HerbID, rec.SupplierID, rec.Price, rec.PreviousPrice, rec.ChangeRate, rec.Source,
	).Scan(&rec.ID, &rec.RecordedAt)
	return translate(err, "price record")
}

// History returns the herb's prices since the given time, oldest first.
// A nil supplierID returns every supplier.
func (r *PriceRepository) History(ctx context.Context, herbID string, supplierID *string, since time.Time) ([]domain.PriceRecord, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	w := newWhere("location_id = ?", locationID).
		and("herb_id = ?", herbID).
		and("recorded_at >= ?", since)
	if supplierID != nil {
		w.and("supplier_id = ?", *supplierID)
	}

	query := `SELECT ` + priceColumns + ` FROM herb_prices` + w.String() + ` ORDER BY recorded_at ASC`

	records := []domain.PriceRecord{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &records, query, w.args...); err != nil {
		return nil, err
	}
	return records, nil
}

// RecentBySupplier returns up to depth newest prices per supplier, grouped
// by supplier and newest first within each group.
func (r *PriceRepository) RecentBySupplier(ctx context.Context, herbID string, depth int) ([]domain.PriceRecord, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + priceColumns + ` FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY supplier_id ORDER BY recorded_at DESC) AS rn
			FROM herb_prices
			WHERE location_id = $1 AND herb_id = $2
		) ranked
		WHERE rn <= $3
		ORDER BY supplier_id NULLS LAST, recorded_at DESC
	`

	records := []domain.PriceRecord{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &records, query, locationID, herbID, depth); err != nil {
		return nil, err
	}
	return records, nil
}
