package domain

import (
	"encoding/json"
	"time"
)

// DefaultLocation is the location assigned to stock when a movement does not
// name one. Single-site farms never see another value.
const DefaultLocation = "main"

// MovementType classifies a stock-affecting event
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementReceipt    MovementType = "receipt"
	MovementUsage      MovementType = "usage"
	MovementSale       MovementType = "sale"
	MovementDisposal   MovementType = "disposal"
	MovementTransfer   MovementType = "transfer"
	MovementAdjustment MovementType = "adjustment"
	MovementReversal   MovementType = "reversal"
)

// Valid reports whether t is a known movement type
func (t MovementType) Valid() bool {
	switch t {
	case MovementPurchase, MovementReceipt, MovementUsage, MovementSale,
		MovementDisposal, MovementTransfer, MovementAdjustment, MovementReversal:
		return true
	}
	return false
}

// Inbound reports whether the type appends stock
func (t MovementType) Inbound() bool {
	return t == MovementPurchase || t == MovementReceipt
}

// Outbound reports whether the type consumes stock in FIFO order
func (t MovementType) Outbound() bool {
	return t == MovementUsage || t == MovementSale || t == MovementDisposal
}

// MovementStatus is the lifecycle state of a movement
type MovementStatus string

const (
	MovementStatusPending   MovementStatus = "pending"
	MovementStatusCompleted MovementStatus = "completed"
	MovementStatusCancelled MovementStatus = "cancelled"
	MovementStatusReversed  MovementStatus = "reversed"
)

// BatchStatus is the lifecycle state of a received lot
type BatchStatus string

const (
	BatchActive      BatchStatus = "active"
	BatchExpired     BatchStatus = "expired"
	BatchRecalled    BatchStatus = "recalled"
	BatchQuarantined BatchStatus = "quarantined"
)

// StockStatus is derived from current stock relative to the item thresholds
type StockStatus string

const (
	StockInStock     StockStatus = "in_stock"
	StockLow         StockStatus = "low_stock"
	StockOut         StockStatus = "out_of_stock"
	StockOverstocked StockStatus = "overstocked"
)

// AlertType names a rule the alert engine evaluates
type AlertType string

const (
	AlertLowStock      AlertType = "low_stock"
	AlertExpiringSoon  AlertType = "expiring_soon"
	AlertNegativeStock AlertType = "negative_stock"
	AlertSlowMoving    AlertType = "slow_moving"
)

// AlertPriority orders alerts for the dashboard
type AlertPriority string

const (
	PriorityLow      AlertPriority = "low"
	PriorityMedium   AlertPriority = "medium"
	PriorityHigh     AlertPriority = "high"
	PriorityCritical AlertPriority = "critical"
)

// PriorityForPercentage maps a percentage-of-threshold to the shared
// priority bands used by low-stock alerts, expiring-soon alerts, and reorder
// suggestions. Boundary inclusivity matters: exactly 25.0% is critical.
func PriorityForPercentage(pct float64) AlertPriority {
	switch {
	case pct <= 25:
		return PriorityCritical
	case pct <= 50:
		return PriorityHigh
	case pct <= 75:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// AlertStatus is the lifecycle state of an alert
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertSuppressed   AlertStatus = "suppressed"
)

// OperationType names a mutating call the offline queue can buffer
type OperationType string

const (
	OpCreateItem          OperationType = "create_item"
	OpRecordMovement      OperationType = "record_movement"
	OpUpdateStockLevel    OperationType = "update_stock_level"
	OpCreatePurchaseOrder OperationType = "create_purchase_order"
	OpReceiveStock        OperationType = "receive_stock"
	// OpSyncMovement replays backend persistence for a movement that was
	// already applied to the local ledger when connectivity dropped mid-call.
	OpSyncMovement OperationType = "sync_movement"
)

// Valid reports whether t is a known operation type
func (t OperationType) Valid() bool {
	switch t {
	case OpCreateItem, OpRecordMovement, OpUpdateStockLevel,
		OpCreatePurchaseOrder, OpReceiveStock, OpSyncMovement:
		return true
	}
	return false
}

// Item is master data for a trackable good. Owned by the backend catalog;
// the engine keeps a read-through copy.
type Item struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Barcode      string    `json:"barcode,omitempty"`
	Category     string    `json:"category"`
	Unit         string    `json:"unit"`
	MinimumStock int       `json:"minimum_stock"`
	MaximumStock int       `json:"maximum_stock"`
	ReorderPoint int       `json:"reorder_point"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Batch is one received lot of an item at one location
type Batch struct {
	ID             string      `json:"id"`
	ItemID         string      `json:"item_id"`
	LocationID     string      `json:"location_id"`
	BatchNumber    string      `json:"batch_number,omitempty"`
	Quantity       int         `json:"quantity"`
	Available      int         `json:"available_quantity"`
	UnitCost       float64     `json:"unit_cost"`
	ReceivedDate   time.Time   `json:"received_date"`
	ExpirationDate *time.Time  `json:"expiration_date,omitempty"`
	Status         BatchStatus `json:"status"`
}

// Expired reports whether the batch's expiration date has passed at now
func (b *Batch) Expired(now time.Time) bool {
	return b.ExpirationDate != nil && b.ExpirationDate.Before(now)
}

// StockRecord is the aggregate stock state for one item at one location
type StockRecord struct {
	ItemID         string      `json:"item_id"`
	LocationID     string      `json:"location_id"`
	CurrentStock   int         `json:"current_stock"`
	AvailableStock int         `json:"available_stock"`
	ReservedStock  int         `json:"reserved_stock"`
	InTransitStock int         `json:"in_transit_stock"`
	MinimumStock   int         `json:"minimum_stock"`
	MaximumStock   int         `json:"maximum_stock"`
	ReorderPoint   int         `json:"reorder_point"`
	Status         StockStatus `json:"status"`
	AverageCost    float64     `json:"average_cost"`
	TotalValue     float64     `json:"total_value"`
	Batches        []*Batch    `json:"batches"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// GeoFix is a location sample attached to a mutation by the geolocation
// collaborator. Best-effort: mutations proceed without one.
type GeoFix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Movement is an immutable ledger entry of a stock-affecting event
type Movement struct {
	ID       string       `json:"id"`
	Sequence int64        `json:"sequence"`
	ItemID   string       `json:"item_id"`
	BatchID  *string      `json:"batch_id,omitempty"`
	Type     MovementType `json:"type"`
	// ReversedType carries the original movement's type on reversal entries
	// so the ledger can invert the effect.
	ReversedType MovementType   `json:"reversed_type,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Quantity     int            `json:"quantity"`
	UnitCost     float64        `json:"unit_cost"`
	TotalCost    float64        `json:"total_cost"`
	FromLocation string         `json:"from_location,omitempty"`
	ToLocation   string         `json:"to_location,omitempty"`
	Status       MovementStatus `json:"status"`
	IsReversed   bool           `json:"is_reversed"`
	ReversalOf   *string        `json:"reversal_of,omitempty"`
	// BatchNumber and ExpirationDate carry received-lot metadata on inbound
	// movements; the ledger copies them onto the batch it appends.
	BatchNumber    string     `json:"batch_number,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	PerformedBy    string     `json:"performed_by,omitempty"`
	Location       *GeoFix    `json:"location,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// MovementDraft is a proposed movement before validation and sequencing
type MovementDraft struct {
	ItemID   string       `json:"item_id" validate:"required"`
	BatchID  *string      `json:"batch_id,omitempty"`
	Type     MovementType `json:"type" validate:"required"`
	Reason   string       `json:"reason,omitempty"`
	Quantity int          `json:"quantity"`
	// CountedQuantity reconciles a physical count: the adjustment delta is
	// derived from the difference to current stock. Adjustment only.
	CountedQuantity *int    `json:"counted_quantity,omitempty"`
	UnitCost        float64 `json:"unit_cost"`
	FromLocation    string  `json:"from_location,omitempty"`
	ToLocation      string  `json:"to_location,omitempty"`
	ExpirationDate  *time.Time `json:"expiration_date,omitempty"`
	BatchNumber     string     `json:"batch_number,omitempty"`
	PerformedBy     string     `json:"performed_by,omitempty"`
	Location        *GeoFix    `json:"location,omitempty"`
}

// InventoryAlert is a derived notice that a rule threshold was crossed
type InventoryAlert struct {
	ID             string        `json:"id"`
	ItemID         string        `json:"item_id"`
	ItemName       string        `json:"item_name,omitempty"`
	LocationID     string        `json:"location_id,omitempty"`
	BatchID        *string       `json:"batch_id,omitempty"`
	AlertType      AlertType     `json:"alert_type"`
	Priority       AlertPriority `json:"priority"`
	Status         AlertStatus   `json:"status"`
	Message        string        `json:"message"`
	CurrentValue   float64       `json:"current_value"`
	Threshold      float64       `json:"threshold"`
	CreatedAt      time.Time     `json:"created_at"`
	AcknowledgedBy string        `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	ResolvedBy     string        `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
}

// PendingOperation is a queued mutating call awaiting connectivity
type PendingOperation struct {
	ID         string          `json:"id"`
	Type       OperationType   `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// UnmarshalPayload decodes the operation payload into v
func (op *PendingOperation) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(op.Payload, v)
}

// ReorderSuggestion is a purchase recommendation from the reorder advisor
type ReorderSuggestion struct {
	ItemID            string        `json:"item_id"`
	ItemName          string        `json:"item_name"`
	CurrentStock      int           `json:"current_stock"`
	ReorderPoint      int           `json:"reorder_point"`
	MaximumStock      int           `json:"maximum_stock"`
	DailyConsumption  float64       `json:"daily_consumption"`
	SuggestedQuantity int           `json:"suggested_quantity"`
	Priority          AlertPriority `json:"priority"`
}
