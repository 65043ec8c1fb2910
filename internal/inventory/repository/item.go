package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/herbstock/herbstock-backend/pkg/errors"
)

const itemColumns = `id, location_id, herb_id, herb_name, supplier_id, quantity, unit,
	min_stock_level, reorder_point, unit_price, cost_basis, batch_number, storage_location,
	expiry_date, last_restock_date, last_used_date, avg_monthly_usage, version, ledger_seq,
	created_at, updated_at`

// ItemRef identifies an item across locations
type ItemRef struct {
	ID         string `db:"id"`
	LocationID string `db:"location_id"`
}

// ItemRepository handles inventory item persistence.
// Quantity and cost basis change only through ApplyMovement.
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// GetByID gets an item of the current location by ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate reads the item and locks its row until the surrounding
// transaction ends. Concurrent writers to the same item queue up here.
func (r *ItemRepository) GetForUpdate(ctx context.Context, id string) (*domain.Item, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *ItemRepository) get(ctx context.Context, id, lock string) (*domain.Item, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	var item domain.Item
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = $1 AND location_id = $2` + lock
	if err := r.db.Conn(ctx).GetContext(ctx, &item, query, id, locationID); err != nil {
		return nil, translate(err, "inventory item")
	}
	return &item, nil
}

// GetByHerb gets the item stocking herbID at the current location
func (r *ItemRepository) GetByHerb(ctx context.Context, herbID string) (*domain.Item, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	var item domain.Item
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE location_id = $1 AND herb_id = $2`
	if err := r.db.Conn(ctx).GetContext(ctx, &item, query, locationID, herbID); err != nil {
		return nil, translate(err, "inventory item")
	}
	return &item, nil
}

// CreateIfAbsent inserts item with zero quantity unless the location already
// stocks the herb. It returns the stored row and whether it was created.
func (r *ItemRepository) CreateIfAbsent(ctx context.Context, item *domain.Item) (*domain.Item, bool, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, false, err
	}

	query := `
		INSERT INTO inventory_items (
			location_id, herb_id, herb_name, supplier_id, quantity, unit, min_stock_level,
			reorder_point, unit_price, cost_basis, batch_number, storage_location, expiry_date
		) VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (location_id, herb_id) DO NOTHING
		RETURNING ` + itemColumns

	var created domain.Item
	err = r.db.Conn(ctx).GetContext(ctx, &created, query,
		locationID, item.HerbID, item.HerbName, item.SupplierID, item.Unit, item.MinStockLevel,
		item.ReorderPoint, item.UnitPrice, item.CostBasis, item.BatchNumber, item.StorageLocation,
		item.ExpiryDate,
	)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, translate(err, "inventory item")
	}

	existing, err := r.GetByHerb(ctx, item.HerbID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// UpdateAttributes writes every non-stock field of item
func (r *ItemRepository) UpdateAttributes(ctx context.Context, item *domain.Item) error {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE inventory_items SET
			herb_name = $3, supplier_id = $4, unit = $5, min_stock_level = $6, reorder_point = $7,
			unit_price = $8, batch_number = $9, storage_location = $10, expiry_date = $11,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND location_id = $2
		RETURNING version, updated_at
	`

	err = r.db.Conn(ctx).QueryRowxContext(ctx, query,
		item.ID, locationID, item.HerbName, item.SupplierID, item.Unit, item.MinStockLevel,
		item.ReorderPoint, item.UnitPrice, item.BatchNumber, item.StorageLocation, item.ExpiryDate,
	).Scan(&item.Version, &item.UpdatedAt)
	return translate(err, "inventory item")
}

// ApplyMovement stores the outcome of a transaction if the item is still at
// expectedVersion, and hands out the next ledger sequence number. A stale
// version yields ConcurrentModification.
func (r *ItemRepository) ApplyMovement(ctx context.Context, itemID string, expectedVersion int64, out domain.Outcome, at time.Time) (version, sequence int64, err error) {
	query := `
		UPDATE inventory_items SET
			quantity = $3,
			cost_basis = $4,
			last_restock_date = CASE WHEN $5::boolean THEN $7 ELSE last_restock_date END,
			last_used_date = CASE WHEN $6::boolean THEN $7 ELSE last_used_date END,
			version = version + 1,
			ledger_seq = ledger_seq + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, ledger_seq
	`

	err = r.db.Conn(ctx).QueryRowxContext(ctx, query,
		itemID, expectedVersion, out.NewQuantity, out.CostBasis, out.Restocked, out.Consumed, at,
	).Scan(&version, &sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, errors.ConcurrentModification("inventory item")
	}
	if err != nil {
		return 0, 0, translate(err, "inventory item")
	}
	return version, sequence, nil
}

// List lists the current location's items, ordered by herb name
func (r *ItemRepository) List(ctx context.Context, filter domain.ItemFilter) ([]*domain.Item, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	w := newWhere("location_id = ?", locationID)
	if filter.Keyword != "" {
		w.and("herb_name ILIKE ?", "%"+filter.Keyword+"%")
	}
	if filter.LowStockOnly {
		w.raw("quantity <= reorder_point")
	}
	if filter.ExpiringBefore != nil {
		w.and("expiry_date <= ?", *filter.ExpiringBefore)
	}
	if filter.SupplierID != "" {
		w.and("supplier_id = ?", filter.SupplierID)
	}

	query := `SELECT ` + itemColumns + ` FROM inventory_items` + w.String() + ` ORDER BY herb_name ASC NULLS LAST, id`

	items := []*domain.Item{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &items, query, w.args...); err != nil {
		return nil, translate(err, "inventory items")
	}
	return items, nil
}

// ListAllRefs returns every item of every location, for the daily sweep
func (r *ItemRepository) ListAllRefs(ctx context.Context) ([]ItemRef, error) {
	var refs []ItemRef
	query := `SELECT id, location_id FROM inventory_items ORDER BY location_id, id`
	if err := r.db.Conn(ctx).SelectContext(ctx, &refs, query); err != nil {
		return nil, err
	}
	return refs, nil
}

// UpdateHerbName refreshes the herb name snapshot wherever the herb is stocked
func (r *ItemRepository) UpdateHerbName(ctx context.Context, herbID, name string) (int64, error) {
	query := `
		UPDATE inventory_items SET herb_name = $2, updated_at = NOW()
		WHERE herb_id = $1 AND herb_name IS DISTINCT FROM $2
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, herbID, name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Summary aggregates the current location's stock. Items expiring on or
// before expiringBefore count as expiring.
func (r *ItemRepository) Summary(ctx context.Context, expiringBefore time.Time) (*domain.Summary, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			COUNT(*) AS total_items,
			COALESCE(SUM(quantity * COALESCE(unit_price, 0)), 0) AS total_value,
			COUNT(*) FILTER (WHERE quantity > 0 AND quantity <= min_stock_level) AS low_stock_count,
			COUNT(*) FILTER (WHERE quantity <= 0) AS out_of_stock_count,
			COUNT(*) FILTER (WHERE expiry_date IS NOT NULL AND expiry_date <= $2) AS expiring_count
		FROM inventory_items
		WHERE location_id = $1
	`

	var summary domain.Summary
	if err := r.db.Conn(ctx).GetContext(ctx, &summary, query, locationID, expiringBefore); err != nil {
		return nil, err
	}
	return &summary, nil
}
