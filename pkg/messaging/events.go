package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Movement events
	EventMovementRecorded = "inventory.movement.recorded"
	EventMovementReversed = "inventory.movement.reversed"
	EventStockAdjusted    = "inventory.stock.adjusted"
	EventStockTransferred = "inventory.stock.transferred"

	// Alert events
	EventAlertRaised   = "inventory.alert.raised"
	EventAlertResolved = "inventory.alert.resolved"

	// Catalog events (consumed; published by the backend)
	EventItemCreated = "catalog.item.created"
	EventItemUpdated = "catalog.item.updated"
	EventItemDeleted = "catalog.item.deleted"

	// Sync events
	EventOperationDeferred = "inventory.sync.deferred"
	EventOperationReplayed = "inventory.sync.replayed"
	EventOperationDropped  = "inventory.sync.dropped"
)

// Exchange names
const (
	ExchangeInventoryEvents = "farmdash.inventory.events"
	ExchangeCatalogEvents   = "farmdash.catalog.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// GenerateEventID returns a unique event identifier
func GenerateEventID() string {
	return uuid.New().String()
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Movement events

// MovementRecordedEvent is published when a movement completes
type MovementRecordedEvent struct {
	MovementID   string  `json:"movement_id"`
	Sequence     int64   `json:"sequence"`
	ItemID       string  `json:"item_id"`
	BatchID      string  `json:"batch_id,omitempty"`
	MovementType string  `json:"movement_type"`
	Reason       string  `json:"reason,omitempty"`
	Quantity     int     `json:"quantity"`
	UnitCost     float64 `json:"unit_cost"`
	FromLocation string  `json:"from_location,omitempty"`
	ToLocation   string  `json:"to_location,omitempty"`
	PerformedBy  string  `json:"performed_by"`
}

// MovementReversedEvent is published when a movement is reversed
type MovementReversedEvent struct {
	MovementID string `json:"movement_id"`
	ReversalID string `json:"reversal_id"`
	ItemID     string `json:"item_id"`
	Reason     string `json:"reason"`
}

// StockAdjustedEvent is published on direct stock adjustments
type StockAdjustedEvent struct {
	ItemID      string `json:"item_id"`
	LocationID  string `json:"location_id"`
	Delta       int    `json:"delta"`
	NewQuantity int    `json:"new_quantity"`
	Reason      string `json:"reason,omitempty"`
	PerformedBy string `json:"performed_by"`
}

// StockTransferredEvent is published when stock moves between locations
type StockTransferredEvent struct {
	MovementID   string `json:"movement_id"`
	ItemID       string `json:"item_id"`
	Quantity     int    `json:"quantity"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
	PerformedBy  string `json:"performed_by"`
}

// Alert events

// AlertRaisedEvent is published when the alert engine creates an alert
type AlertRaisedEvent struct {
	AlertID      string  `json:"alert_id"`
	AlertType    string  `json:"alert_type"`
	Priority     string  `json:"priority"`
	ItemID       string  `json:"item_id"`
	Message      string  `json:"message"`
	CurrentValue float64 `json:"current_value"`
	Threshold    float64 `json:"threshold"`
}

// AlertResolvedEvent is published when an alert leaves the active set
type AlertResolvedEvent struct {
	AlertID    string `json:"alert_id"`
	AlertType  string `json:"alert_type"`
	ItemID     string `json:"item_id"`
	ResolvedBy string `json:"resolved_by"`
}

// Sync events

// OperationReplayedEvent is published when a queued operation syncs to the
// backend after connectivity returns
type OperationReplayedEvent struct {
	OperationID   string `json:"operation_id"`
	OperationType string `json:"operation_type"`
}

// OperationDroppedEvent is published when a queued operation is moved to the
// dead letter list instead of being retried
type OperationDroppedEvent struct {
	OperationID   string `json:"operation_id"`
	OperationType string `json:"operation_type"`
	Error         string `json:"error"`
}

// Catalog events

// ItemChangedEvent is consumed when the backend's item catalog changes.
// The engine refreshes its local catalog copy and clears the read cache.
type ItemChangedEvent struct {
	ItemID string `json:"item_id"`
}
