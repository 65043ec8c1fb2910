package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// Published by the inventory service
	EventStockRecorded = "inventory.stock.recorded"
	EventAlertRaised   = "inventory.alert.raised"
	EventOrderReceived = "inventory.order.received"

	// Herb reference catalog
	EventHerbCreated = "herb.created"
	EventHerbUpdated = "herb.updated"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeHerbEvents      = "herb.events"
)

// Event is the envelope every message travels in
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData decodes the event payload into v
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// StockRecordedEvent is published after a ledger entry commits
type StockRecordedEvent struct {
	LocationID       string          `json:"location_id"`
	ItemID           string          `json:"item_id"`
	HerbID           string          `json:"herb_id"`
	TransactionID    string          `json:"transaction_id"`
	Kind             string          `json:"kind"`
	Quantity         decimal.Decimal `json:"quantity"`
	PreviousQuantity decimal.Decimal `json:"previous_quantity"`
	NewQuantity      decimal.Decimal `json:"new_quantity"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	PerformedBy      string          `json:"performed_by"`
}

// AlertRaisedEvent is published for every newly created alert
type AlertRaisedEvent struct {
	LocationID string `json:"location_id"`
	AlertID    string `json:"alert_id"`
	ItemID     string `json:"item_id"`
	AlertType  string `json:"alert_type"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
}

// OrderReceivedEvent is published once a purchase order receipt commits
type OrderReceivedEvent struct {
	LocationID  string          `json:"location_id"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	SupplierID  string          `json:"supplier_id,omitempty"`
	LineCount   int             `json:"line_count"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	ReceivedBy  string          `json:"received_by"`
}

// HerbChangedEvent is emitted by the herb catalog on create and update
type HerbChangedEvent struct {
	HerbID string `json:"herb_id"`
	Name   string `json:"name"`
}
