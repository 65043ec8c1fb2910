package consumers

import (
	"context"
	"strings"

	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/herbstock/herbstock-backend/pkg/messaging"
)

// HerbNameUpdater refreshes the herb name snapshot held by stock items
type HerbNameUpdater interface {
	UpdateHerbName(ctx context.Context, herbID, name string) (int64, error)
}

// HerbEventHandler applies herb catalog events to the inventory
type HerbEventHandler struct {
	items  HerbNameUpdater
	logger *logger.Logger
}

// NewHerbEventHandler creates a new herb event handler
func NewHerbEventHandler(items HerbNameUpdater, log *logger.Logger) *HerbEventHandler {
	return &HerbEventHandler{items: items, logger: log}
}

// HandleHerbChanged handles both herb.created and herb.updated.
// Events without a herb ID or name are acknowledged and dropped.
func (h *HerbEventHandler) HandleHerbChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.HerbChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	name := strings.TrimSpace(data.Name)
	if data.HerbID == "" || name == "" {
		h.logger.Warn().Str("event_id", event.ID).Msg("herb event without id or name, skipping")
		return nil
	}

	updated, err := h.items.UpdateHerbName(ctx, data.HerbID, name)
	if err != nil {
		return err
	}

	h.logger.Info().
		Str("herb_id", data.HerbID).
		Int64("items_updated", updated).
		Msg("herb name synchronized")
	return nil
}

// HerbEventConsumer consumes herb catalog events
type HerbEventConsumer struct {
	consumer *messaging.Consumer
}

// NewHerbEventConsumer creates a new herb event consumer
func NewHerbEventConsumer(rmq *messaging.RabbitMQ, handler *HerbEventHandler, log *logger.Logger) (*HerbEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "inventory-service.herb-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeHerbEvents, "herb.#"); err != nil {
		return nil, err
	}

	consumer.RegisterHandler(messaging.EventHerbCreated, handler.HandleHerbChanged)
	consumer.RegisterHandler(messaging.EventHerbUpdated, handler.HandleHerbChanged)

	return &HerbEventConsumer{consumer: consumer}, nil
}

// Start starts consuming messages
func (c *HerbEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}
