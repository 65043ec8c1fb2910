package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/herbstock/herbstock-backend/pkg/errors"
)

const orderColumns = `id, location_id, order_number, supplier_id, ordered_by, lines, subtotal,
	shipping_fee, discount, final_amount, status, order_date, expected_date, actual_delivery_date,
	received_by, notes, created_at, updated_at`

// ConstraintOrderNumber is the unique constraint on purchase order numbers
const ConstraintOrderNumber = "purchase_orders_order_number_key"

// OrderRepository handles purchase order persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts order. A taken order number surfaces as DuplicateOrderNumber.
func (r *OrderRepository) Create(ctx context.Context, order *domain.PurchaseOrder) error {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return err
	}
	order.LocationID = locationID

	query := `
		INSERT INTO purchase_orders (
			location_id, order_number, supplier_id, ordered_by, lines, subtotal, shipping_fee,
			discount, final_amount, status, expected_date, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, order_date, created_at, updated_at
	`

	err = r.db.Conn(ctx).QueryRowxContext(ctx, query,
		order.LocationID, order.OrderNumber, order.SupplierID, order.OrderedBy, order.Lines,
		order.Subtotal, order.ShippingFee, order.Discount, order.FinalAmount, order.Status,
		order.ExpectedDate, order.Notes,
	).Scan(&order.ID, &order.OrderDate, &order.CreatedAt, &order.UpdatedAt)
	if database.IsUniqueViolation(err, ConstraintOrderNumber) {
		return errors.DuplicateOrderNumber(order.OrderNumber)
	}
	return translate(err, "purchase order")
}

// GetByID gets an order of the current location by ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate reads the order and locks its row for the transaction
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *OrderRepository) get(ctx context.Context, id, lock string) (*domain.PurchaseOrder, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	var order domain.PurchaseOrder
	query := `SELECT ` + orderColumns + ` FROM purchase_orders WHERE id = $1 AND location_id = $2` + lock
	if err := r.db.Conn(ctx).GetContext(ctx, &order, query, id, locationID); err != nil {
		return nil, translate(err, "purchase order")
	}
	return &order, nil
}

// List lists the current location's orders, newest first
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.PurchaseOrder, error) {
	locationID, err := scopedLocation(ctx)
	if err != nil {
		return nil, err
	}

	w := newWhere("location_id = ?", locationID)
	if filter.Status != "" {
		w.and("status = ?", filter.Status)
	}

	query := `SELECT ` + orderColumns + ` FROM purchase_orders` + w.String() +
		` ORDER BY created_at DESC, order_number DESC` + w.page(filter.Limit, filter.Offset)

	orders := []*domain.PurchaseOrder{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &orders, query, w.args...); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus moves the order to status only if it is still in from,
// so two racing updates cannot both succeed.
func (r *OrderRepository) UpdateStatus(ctx context.Context, order *domain.PurchaseOrder, from, to domain.OrderStatus) error {
	query := `
		UPDATE purchase_orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query, order.ID, from, to).Scan(&order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.InvalidTransition(string(from), string(to))
	}
	if err != nil {
		return translate(err, "purchase order")
	}
	order.Status = to
	return nil
}

// MarkReceived closes the order as received by receivedBy at the given time
func (r *OrderRepository) MarkReceived(ctx context.Context, order *domain.PurchaseOrder, receivedBy string, at time.Time) error {
	query := `
		UPDATE purchase_orders
		SET status = $2, actual_delivery_date = $3, received_by = $4, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('received', 'cancelled')
		RETURNING updated_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query, order.ID, domain.OrderReceived, at, receivedBy).Scan(&order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.InvalidTransition(string(order.Status), string(domain.OrderReceived))
	}
	if err != nil {
		return translate(err, "purchase order")
	}

	order.Status = domain.OrderReceived
	order.ActualDeliveryDate = &at
	order.ReceivedBy = &receivedBy
	return nil
}
