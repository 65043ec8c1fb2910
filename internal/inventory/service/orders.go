package service

import (
	"context"
	"fmt"
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

// CreateOrderRequest carries a new purchase order
type CreateOrderRequest struct {
	SupplierID   *string
	Lines        []domain.OrderLine
	ShippingFee  decimal.Decimal
	Discount     decimal.Decimal
	ExpectedDate *time.Time
	Notes        *string
}

// OrderService drives the purchase order workflow
type OrderService struct {
	db         *database.DB
	orders     *repository.OrderRepository
	items      *repository.ItemRepository
	sequence   repository.OrderSequence
	recorder   *Recorder
	publisher  *events.InventoryEventPublisher
	metrics    *metrics.Metrics
	zone       *time.Location
	maxRetries int
	now        func() time.Time
	logger     *logger.Logger
}

// NewOrderService creates a new order service. zone is the business
// timezone that decides the date segment of order numbers.
func NewOrderService(
	db *database.DB,
	orders *repository.OrderRepository,
	items *repository.ItemRepository,
	sequence repository.OrderSequence,
	recorder *Recorder,
	publisher *events.InventoryEventPublisher,
	m *metrics.Metrics,
	zone *time.Location,
	maxRetries int,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		db:         db,
		orders:     orders,
		items:      items,
		sequence:   sequence,
		recorder:   recorder,
		publisher:  publisher,
		metrics:    m,
		zone:       zone,
		maxRetries: maxRetries,
		now:        time.Now,
		logger:     log.WithComponent("orders"),
	}
}

// Create prices the lines and stores a draft order under the next order
// number of the business day. A number lost to a concurrent writer is
// replaced by a fresh one.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*domain.PurchaseOrder, error) {
	lines, totals, err := domain.PriceLines(req.Lines, req.ShippingFee, req.Discount)
	if err != nil {
		return nil, err
	}

	day := domain.BusinessDay(s.now(), s.zone)

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		seq, err := s.sequence.Next(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate order number: %w", err)
		}

		order := &domain.PurchaseOrder{
			OrderNumber:  domain.FormatOrderNumber(day, seq),
			SupplierID:   req.SupplierID,
			OrderedBy:    actor.IDFromContext(ctx),
			Lines:        lines,
			Subtotal:     totals.Subtotal,
			ShippingFee:  totals.ShippingFee,
			Discount:     totals.Discount,
			FinalAmount:  totals.FinalAmount,
			Status:       domain.OrderDraft,
			ExpectedDate: req.ExpectedDate,
			Notes:        req.Notes,
		}

		err = s.orders.Create(ctx, order)
		if err == nil {
			s.logger.Info().
				Str("order_id", order.ID).
				Str("order_number", order.OrderNumber).
				Int("lines", len(order.Lines)).
				Msg("purchase order created")
			return order, nil
		}
		if !errors.Is(err, errors.ErrDuplicateOrderNumber) {
			return nil, err
		}
		s.logger.Warn().Str("order_number", order.OrderNumber).Msg("order number taken, drawing another")
	}

	return nil, errors.Internal("could not allocate a unique order number")
}

// Get gets an order of the current location
func (s *OrderService) Get(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return s.orders.GetByID(ctx, id)
}

// List lists the current location's orders
func (s *OrderService) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.PurchaseOrder, error) {
	return s.orders.List(ctx, filter)
}

// UpdateStatus moves an order one step forward or cancels it. Receipt has
// side effects and goes through Receive instead.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.PurchaseOrder, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if status == domain.OrderReceived || !order.Status.CanTransitionTo(status) {
		return nil, errors.InvalidTransition(string(order.Status), string(status))
	}

	from := order.Status
	if err := s.orders.UpdateStatus(ctx, order, from, status); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("from", string(from)).
		Str("to", string(status)).
		Msg("purchase order status changed")
	return order, nil
}

type receivedLine struct {
	item  *domain.Item
	entry *domain.LedgerEntry
}

// Receive books every line of the order into stock as a PURCHASE and marks
// the order received. All lines commit together or none do.
func (s *OrderService) Receive(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	var (
		order    *domain.PurchaseOrder
		received []receivedLine
	)

	err := withRetry(ctx, s.maxRetries, s.metrics, s.logger, func(ctx context.Context) error {
		received = received[:0]
		return s.db.Transaction(ctx, func(ctx context.Context) error {
			var err error
			order, err = s.orders.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !order.Status.CanReceive() {
				return errors.InvalidTransition(string(order.Status), string(domain.OrderReceived))
			}

			for i, line := range order.Lines {
				rl, err := s.receiveLine(ctx, order, i, line)
				if err != nil {
					return fmt.Errorf("line %d (%s): %w", i+1, line.HerbID, err)
				}
				received = append(received, rl)
			}

			return s.orders.MarkReceived(ctx, order, actor.IDFromContext(ctx), s.now())
		})
	})
	if err != nil {
		return nil, err
	}

	// Only the last snapshot of an item that appears on several lines
	// is worth evaluating.
	last := map[string]int{}
	for i, rl := range received {
		last[rl.item.ID] = i
	}
	for i, rl := range received {
		s.metrics.TransactionRecorded(string(rl.entry.Kind))
		s.publisher.PublishStockRecorded(ctx, rl.item, rl.entry)
		if last[rl.item.ID] == i {
			s.recorder.evaluate(ctx, rl.item)
		}
	}

	s.metrics.OrderReceived()
	s.publisher.PublishOrderReceived(ctx, order)
	s.logger.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int("lines", len(received)).
		Msg("purchase order received")

	return order, nil
}

func (s *OrderService) receiveLine(ctx context.Context, order *domain.PurchaseOrder, index int, line domain.OrderLine) (receivedLine, error) {
	locationID, err := location.LocationID(ctx)
	if err != nil {
		return receivedLine{}, errors.Forbidden("location context required")
	}

	unitPrice := line.UnitPrice
	unit := line.Unit
	stub := domain.NewItem(locationID, line.HerbID, domain.ItemAttributes{
		HerbName:   line.HerbName,
		SupplierID: order.SupplierID,
		Unit:       &unit,
		UnitPrice:  &unitPrice,
	})

	item, _, err := s.items.CreateIfAbsent(ctx, stub)
	if err != nil {
		return receivedLine{}, err
	}

	note := fmt.Sprintf("order %s received", order.OrderNumber)
	orderID := order.ID
	lineIndex := index

	item, entry, err := s.recorder.recordInTx(ctx, RecordRequest{
		ItemID:          item.ID,
		Kind:            domain.KindPurchase,
		Quantity:        line.Quantity,
		UnitPrice:       &unitPrice,
		Note:            &note,
		PurchaseOrderID: &orderID,
		OrderLineIndex:  &lineIndex,
	})
	if err != nil {
		return receivedLine{}, err
	}
	return receivedLine{item: item, entry: entry}, nil
}
