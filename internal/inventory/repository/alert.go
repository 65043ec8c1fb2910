package repository

import (
	"context"
	"database/sql"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/lib/pq"
)

const alertColumns = `a.id, a.location_id, a.item_id, a.alert_type, a.severity, a.message, a.data,
	a.is_resolved, a.resolved_by, a.resolved_at, a.created_at`

// AlertRepository handles alert persistence. The partial unique index
// inventory_alerts_open_key keeps one open alert per (item, type).
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// InsertIfAbsent stores alert unless an open alert of the same type exists
// for the item. It reports whether a row was inserted.
func (r *AlertRepository) InsertIfAbsent(ctx context.Context, alert *domain.Alert) (bool, error) {
	query := `
		INSERT INTO inventory_alerts (location_id, item_id, alert_type, severity, message, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id, alert_type) WHERE is_resolved = false DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		alert.LocationID, alert.ItemID, alert.AlertType, alert.Severity, alert.Message, alert.Data,
	).Scan(&alert.ID, &alert.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, translate(err, "alert")
	}
	return true, nil
}

// ResolveOpen resolves the item's open alerts of the given types
func (r *AlertRepository) ResolveOpen(ctx context.Context, itemID string, types []domain.AlertType, resolvedBy string) (int64, error) {
	if len(types) == 0 {
		return 0, nil
	}

	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	query := `
		UPDATE inventory_alerts
		SET is_resolved = true, resolved_by = $3, resolved_at = NOW()
		WHERE item_id = $1 AND alert_type = ANY($2) AND is_resolved = false
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, itemID, pq.Array(names), resolvedBy)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// GetByID gets an alert of the current location by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	var alert domain.Alert
	query := `SELECT ` + alertColumns + `, i.herb_name
		FROM inventory_alerts a JOIN inventory_items i ON i.id = a.item_id
		WHERE a.id = $1 AND a.location_id = $2`
	if err := r.db.Conn(ctx).GetContext(ctx, &alert, query, id, locationID); err != nil {
		return nil, translate(err, "alert")
	}
	return &alert, nil
}

// Resolve marks an open alert resolved. Resolving an already resolved alert
// returns it unchanged, with its original resolver.
func (r *AlertRepository) Resolve(ctx context.Context, id, resolvedBy string) (*domain.Alert, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE inventory_alerts
		SET is_resolved = true, resolved_by = $3, resolved_at = NOW()
		WHERE id = $1 AND location_id = $2 AND is_resolved = false
	`

	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, id, locationID, resolvedBy); err != nil {
		return nil, translate(err, "alert")
	}
	return r.GetByID(ctx, id)
}

// List lists the current location's alerts, critical first, then newest
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	w := newWhere("a.location_id = ?", locationID)
	if filter.UnresolvedOnly {
		w.raw("a.is_resolved = false")
	}
	if filter.ItemID != "" {
		w.and("a.item_id = ?", filter.ItemID)
	}
	if filter.Type != "" {
		w.and("a.alert_type = ?", filter.Type)
	}

	query := `SELECT ` + alertColumns + `, i.herb_name
		FROM inventory_alerts a JOIN inventory_items i ON i.id = a.item_id` + w.String() + `
		ORDER BY CASE a.severity WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
			a.created_at DESC`

	alerts := []*domain.Alert{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &alerts, query, w.args...); err != nil {
		return nil, err
	}
	return alerts, nil
}

// CountUnresolved counts the current location's open alerts
func (r *AlertRepository) CountUnresolved(ctx context.Context) (int, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	query := `SELECT COUNT(*) FROM inventory_alerts WHERE location_id = $1 AND is_resolved = false`
	if err := r.db.Conn(ctx).GetContext(ctx, &count, query, locationID); err != nil {
		return 0, err
	}
	return count, nil
}
