package repository

import (
	"context"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/pkg/database"
)

const ledgerColumns = `t.id, t.location_id, t.item_id, t.sequence, t.kind, t.quantity, t.unit_price,
	t.total_amount, t.previous_quantity, t.new_quantity, t.prescription_id, t.purchase_order_id,
	t.order_line_index, t.note, t.performed_by, t.created_at`

// TransactionRepository appends to and reads the stock ledger.
// The table rejects UPDATE and DELETE.
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Insert appends entry and fills in its ID and timestamp
func (r *TransactionRepository) Insert(ctx context.Context, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO inventory_transactions (
			location_id, item_id, sequence, kind, quantity, unit_price, total_amount,
			previous_quantity, new_quantity, prescription_id, purchase_order_id, order_line_index,
			note, performed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		entry.LocationID, entry.ItemID, entry.Sequence, entry.Kind, entry.Quantity, entry.UnitPrice,
		entry.TotalAmount, entry.PreviousQuantity, entry.NewQuantity, entry.PrescriptionID,
		entry.PurchaseOrderID, entry.OrderLineIndex, entry.Note, entry.PerformedBy,
	).Scan(&entry.ID, &entry.CreatedAt)
	return translate(err, "ledger entry")
}

// List lists the current location's entries, newest first
func (r *TransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.LedgerEntry, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	w := newWhere("t.location_id = ?", locationID)
	if filter.ItemID != "" {
		w.and("t.item_id = ?", filter.ItemID)
	}
	if filter.Kind != "" {
		w.and("t.kind = ?", filter.Kind)
	}
	if filter.From != nil {
		w.and("t.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		w.and("t.created_at <= ?", *filter.To)
	}

	query := `SELECT ` + ledgerColumns + `, i.herb_name
		FROM inventory_transactions t
		JOIN inventory_items i ON i.id = t.item_id` + w.String() +
		` ORDER BY t.created_at DESC, t.sequence DESC` + w.page(filter.Limit, filter.Offset)

	entries := []*domain.LedgerEntry{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &entries, query, w.args...); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListChain returns an item's full ledger in sequence order
func (r *TransactionRepository) ListChain(ctx context.Context, itemID string) ([]domain.LedgerEntry, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + ledgerColumns + `
		FROM inventory_transactions t
		WHERE t.item_id = $1 AND t.location_id = $2
		ORDER BY t.sequence ASC`

	var entries []domain.LedgerEntry
	if err := r.db.Conn(ctx).SelectContext(ctx, &entries, query, itemID, locationID); err != nil {
		return nil, err
	}
	return entries, nil
}

// UsageTotals sums usage per item in [from, to] for the current location
func (r *TransactionRepository) UsageTotals(ctx context.Context, from, to time.Time) ([]domain.UsageTotal, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT t.item_id, i.herb_id, i.herb_name,
			SUM(t.quantity) AS total_usage, i.quantity AS current_quantity
		FROM inventory_transactions t
		JOIN inventory_items i ON i.id = t.item_id
		WHERE t.location_id = $1 AND t.kind = $2 AND t.created_at BETWEEN $3 AND $4
		GROUP BY t.item_id, i.herb_id, i.herb_name, i.quantity
		ORDER BY total_usage DESC
	`

	var totals []domain.UsageTotal
	if err := r.db.Conn(ctx).SelectContext(ctx, &totals, query, locationID, domain.KindUsage, from, to); err != nil {
		return nil, err
	}
	return totals, nil
}
