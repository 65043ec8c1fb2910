package events

import (
	"context"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/herbstock/herbstock-backend/pkg/messaging"
)

// EventPublisher is the transport the inventory publisher writes to
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// InventoryEventPublisher publishes inventory-related events.
// Publishing is best effort: failures are logged and never reach the caller,
// and a nil publisher is a no-op.
type InventoryEventPublisher struct {
	publisher EventPublisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a publisher on the inventory exchange
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher creates an inventory publisher over any transport
func NewWithPublisher(publisher EventPublisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{publisher: publisher, logger: log}
}

// PublishStockRecorded announces a committed ledger entry
func (p *InventoryEventPublisher) PublishStockRecorded(ctx context.Context, item *domain.Item, entry *domain.LedgerEntry) {
	if p == nil {
		return
	}

	data := messaging.StockRecordedEvent{
		LocationID:       entry.LocationID,
		ItemID:           entry.ItemID,
		HerbID:           item.HerbID,
		TransactionID:    entry.ID,
		Kind:             string(entry.Kind),
		Quantity:         entry.Quantity,
		PreviousQuantity: entry.PreviousQuantity,
		NewQuantity:      entry.NewQuantity,
		CostBasis:        item.CostBasis,
		PerformedBy:      entry.PerformedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", entry.ItemID).Msg("failed to publish stock recorded event")
	}
}

// PublishAlertRaised announces a newly created alert
func (p *InventoryEventPublisher) PublishAlertRaised(ctx context.Context, alert *domain.Alert) {
	if p == nil {
		return
	}

	data := messaging.AlertRaisedEvent{
		LocationID: alert.LocationID,
		AlertID:    alert.ID,
		ItemID:     alert.ItemID,
		AlertType:  string(alert.AlertType),
		Severity:   string(alert.Severity),
		Message:    alert.Message,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertRaised, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert raised event")
	}
}

// PublishOrderReceived announces a committed purchase order receipt
func (p *InventoryEventPublisher) PublishOrderReceived(ctx context.Context, order *domain.PurchaseOrder) {
	if p == nil {
		return
	}

	data := messaging.OrderReceivedEvent{
		LocationID:  order.LocationID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		LineCount:   len(order.Lines),
		FinalAmount: order.FinalAmount,
	}
	if order.SupplierID != nil {
		data.SupplierID = *order.SupplierID
	}
	if order.ReceivedBy != nil {
		data.ReceivedBy = *order.ReceivedBy
	}

	if err := p.publisher.Publish(ctx, messaging.EventOrderReceived, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to publish order received event")
	}
}
