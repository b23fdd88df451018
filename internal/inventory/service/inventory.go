// Package service is the engine facade. It composes the ledger, journal,
// cache, offline queue, alert engine, and reorder advisor behind one API,
// and owns the sync policy: mutations apply locally first, then push
// upstream, deferring the push when connectivity is gone.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/advisor"
	"github.com/farmdash/farmdash-backend/internal/inventory/alerts"
	"github.com/farmdash/farmdash-backend/internal/inventory/backend"
	"github.com/farmdash/farmdash-backend/internal/inventory/cache"
	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/events"
	"github.com/farmdash/farmdash-backend/internal/inventory/geo"
	"github.com/farmdash/farmdash-backend/internal/inventory/journal"
	"github.com/farmdash/farmdash-backend/internal/inventory/ledger"
	"github.com/farmdash/farmdash-backend/internal/inventory/offline"
	"github.com/farmdash/farmdash-backend/pkg/errors"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/google/uuid"
)

// MutationStatus reports how a mutating call concluded
type MutationStatus string

const (
	// MutationCompleted means the change is applied locally and synced
	MutationCompleted MutationStatus = "completed"
	// MutationDeferred means the change is applied locally but the upstream
	// sync is queued for replay
	MutationDeferred MutationStatus = "deferred"
)

// MutationResult is the outcome of a mutating operation
type MutationResult struct {
	Status      MutationStatus           `json:"status"`
	Movement    *domain.Movement         `json:"movement,omitempty"`
	Item        *domain.Item             `json:"item,omitempty"`
	StockRecord *domain.StockRecord      `json:"stock_record,omitempty"`
	Pending     *domain.PendingOperation `json:"pending_operation,omitempty"`
}

// Deferred reports whether the upstream sync is still pending
func (r *MutationResult) Deferred() bool {
	return r.Status == MutationDeferred
}

// InventoryService handles inventory business logic
type InventoryService struct {
	catalog   *Catalog
	ledger    *ledger.Ledger
	journal   *journal.Journal
	cache     *cache.Cache
	queue     *offline.Queue
	backend   *backend.Client
	locator   geo.Locator
	alerts    *alerts.Engine
	advisor   *advisor.Advisor
	publisher *events.InventoryEventPublisher
	logger    *logger.Logger
}

// NewInventoryService creates a new inventory service. locator and
// publisher may be nil.
func NewInventoryService(
	catalog *Catalog,
	led *ledger.Ledger,
	jnl *journal.Journal,
	readCache *cache.Cache,
	queue *offline.Queue,
	client *backend.Client,
	locator geo.Locator,
	alertEngine *alerts.Engine,
	reorderAdvisor *advisor.Advisor,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *InventoryService {
	s := &InventoryService{
		catalog:   catalog,
		ledger:    led,
		journal:   jnl,
		cache:     readCache,
		queue:     queue,
		backend:   client,
		locator:   locator,
		alerts:    alertEngine,
		advisor:   reorderAdvisor,
		publisher: publisher,
		logger:    log.WithComponent("inventory-service"),
	}
	s.registerReplayHandlers()
	return s
}

// Bootstrap pulls the item catalog from the backend. A network failure is
// not fatal; the engine starts with whatever catalog it has.
func (s *InventoryService) Bootstrap(ctx context.Context) error {
	items, err := s.backend.Items(ctx)
	if err != nil {
		if errors.IsNetwork(err) {
			s.logger.Warn().Err(err).Msg("backend unreachable during bootstrap, starting with empty catalog")
			return nil
		}
		return err
	}

	for _, item := range items {
		s.catalog.Upsert(item)
	}
	s.logger.Info().Int("items", len(items)).Msg("catalog bootstrapped")
	return nil
}

// Item operations

// CreateItem registers a new catalog item. The item exists locally right
// away; backend registration defers when offline.
func (s *InventoryService) CreateItem(ctx context.Context, item *domain.Item) (*MutationResult, error) {
	details := make(map[string]string)
	if item.Name == "" {
		details["name"] = "this field is required"
	}
	if item.Unit == "" {
		details["unit"] = "this field is required"
	}
	if item.MinimumStock < 0 || item.MaximumStock < 0 {
		details["minimum_stock"] = "thresholds cannot be negative"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.IsActive = true
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	s.catalog.Upsert(item)
	defer s.cache.Clear()

	if !s.backend.Online() {
		return s.deferOp(ctx, domain.OpCreateItem, item, &MutationResult{Item: item})
	}

	created, err := s.backend.CreateItem(ctx, item)
	if err != nil {
		if errors.IsNetwork(err) {
			return s.deferOp(ctx, domain.OpCreateItem, item, &MutationResult{Item: item})
		}
		return nil, err
	}

	s.catalog.Upsert(created)
	return &MutationResult{Status: MutationCompleted, Item: created}, nil
}

// GetItems lists the item catalog
func (s *InventoryService) GetItems(ctx context.Context) ([]*domain.Item, error) {
	if v, ok := s.cache.Get("items"); ok {
		return v.([]*domain.Item), nil
	}

	items := s.catalog.Items()
	s.cache.Set("items", items)
	return items, nil
}

// GetItemByBarcode resolves a scanned barcode to its item
func (s *InventoryService) GetItemByBarcode(ctx context.Context, barcode string) (*domain.Item, error) {
	if barcode == "" {
		return nil, errors.BadRequest("barcode is required")
	}
	return s.catalog.ItemByBarcode(barcode)
}

// Stock operations

// GetStockLevels returns the per-item, per-location stock records
func (s *InventoryService) GetStockLevels(ctx context.Context) ([]*domain.StockRecord, error) {
	if v, ok := s.cache.Get("stock_levels"); ok {
		return v.([]*domain.StockRecord), nil
	}

	records := s.ledger.Records()
	s.cache.Set("stock_levels", records)
	return records, nil
}

// GetStockLevel returns one item's stock record at a location
func (s *InventoryService) GetStockLevel(ctx context.Context, itemID, locationID string) (*domain.StockRecord, error) {
	if locationID == "" {
		locationID = domain.DefaultLocation
	}

	key := "stock:" + itemID + ":" + locationID
	if v, ok := s.cache.Get(key); ok {
		return v.(*domain.StockRecord), nil
	}

	rec, err := s.ledger.GetStockRecord(itemID, locationID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, rec)
	return rec, nil
}

// UpdateStockLevel reconciles a physical count. The adjustment delta is
// derived from the counted quantity.
func (s *InventoryService) UpdateStockLevel(ctx context.Context, itemID string, counted int, reason, performedBy string) (*MutationResult, error) {
	return s.recordMovement(ctx, &domain.MovementDraft{
		ItemID:          itemID,
		Type:            domain.MovementAdjustment,
		CountedQuantity: &counted,
		Reason:          reason,
		PerformedBy:     performedBy,
	}, domain.OpUpdateStockLevel)
}

// Movement operations

// RecordMovement validates and records an arbitrary stock movement
func (s *InventoryService) RecordMovement(ctx context.Context, draft *domain.MovementDraft) (*MutationResult, error) {
	return s.recordMovement(ctx, draft, domain.OpRecordMovement)
}

// UseItemForTreatment draws stock for an animal treatment
func (s *InventoryService) UseItemForTreatment(ctx context.Context, itemID string, quantity int, treatmentID, performedBy string) (*MutationResult, error) {
	return s.recordMovement(ctx, &domain.MovementDraft{
		ItemID:      itemID,
		Type:        domain.MovementUsage,
		Quantity:    quantity,
		Reason:      "treatment " + treatmentID,
		PerformedBy: performedBy,
	}, domain.OpRecordMovement)
}

// UseItemForVaccination draws stock for a vaccination round
func (s *InventoryService) UseItemForVaccination(ctx context.Context, itemID string, quantity int, vaccinationID, performedBy string) (*MutationResult, error) {
	return s.recordMovement(ctx, &domain.MovementDraft{
		ItemID:      itemID,
		Type:        domain.MovementUsage,
		Quantity:    quantity,
		Reason:      "vaccination " + vaccinationID,
		PerformedBy: performedBy,
	}, domain.OpRecordMovement)
}

// TransferStock moves stock between locations, preserving batch identity
func (s *InventoryService) TransferStock(ctx context.Context, itemID string, quantity int, fromLocation, toLocation, performedBy string) (*MutationResult, error) {
	if fromLocation == toLocation {
		return nil, errors.BadRequest("transfer requires two distinct locations")
	}
	return s.recordMovement(ctx, &domain.MovementDraft{
		ItemID:       itemID,
		Type:         domain.MovementTransfer,
		Quantity:     quantity,
		FromLocation: fromLocation,
		ToLocation:   toLocation,
		PerformedBy:  performedBy,
	}, domain.OpRecordMovement)
}

// ReceiveStock records an incoming lot
func (s *InventoryService) ReceiveStock(ctx context.Context, draft *domain.MovementDraft) (*MutationResult, error) {
	draft.Type = domain.MovementReceipt
	return s.recordMovement(ctx, draft, domain.OpReceiveStock)
}

// ReverseMovement creates a compensating movement for a completed entry
func (s *InventoryService) ReverseMovement(ctx context.Context, movementID, reason string) (*MutationResult, error) {
	original, err := s.journal.Get(movementID)
	if err != nil {
		return nil, err
	}

	reversal, err := s.journal.Reverse(ctx, movementID, reason)
	if err != nil {
		return nil, err
	}
	s.cache.Clear()

	s.publisher.PublishMovementReversed(ctx, original, reversal)

	return s.syncMovement(ctx, reversal)
}

// GetMovements lists the movement journal in recording order
func (s *InventoryService) GetMovements(ctx context.Context) ([]*domain.Movement, error) {
	if v, ok := s.cache.Get("movements"); ok {
		return v.([]*domain.Movement), nil
	}

	movements := s.journal.Movements()
	s.cache.Set("movements", movements)
	return movements, nil
}

// Expiry operations

// GetExpiringItems lists active batches expiring within the window
func (s *InventoryService) GetExpiringItems(ctx context.Context, withinDays int) ([]*domain.Batch, error) {
	key := fmt.Sprintf("expiring:%d", withinDays)
	if v, ok := s.cache.Get(key); ok {
		return v.([]*domain.Batch), nil
	}

	batches := s.ledger.ExpiringBatches(withinDays)
	s.cache.Set(key, batches)
	return batches, nil
}

// HandleExpiredBatch disposes of or quarantines an expired lot
func (s *InventoryService) HandleExpiredBatch(ctx context.Context, itemID, locationID, batchID, action, performedBy string) (*MutationResult, error) {
	if locationID == "" {
		locationID = domain.DefaultLocation
	}

	switch action {
	case "dispose":
		rec, err := s.ledger.GetStockRecord(itemID, locationID)
		if err != nil {
			return nil, err
		}
		var qty int
		for _, b := range rec.Batches {
			if b.ID == batchID {
				qty = b.Available
			}
		}
		if qty == 0 {
			return nil, errors.NotFound("batch")
		}
		bid := batchID
		return s.recordMovement(ctx, &domain.MovementDraft{
			ItemID:       itemID,
			BatchID:      &bid,
			Type:         domain.MovementDisposal,
			Quantity:     qty,
			Reason:       "expired",
			FromLocation: locationID,
			PerformedBy:  performedBy,
		}, domain.OpRecordMovement)
	case "quarantine":
		if err := s.ledger.QuarantineBatch(itemID, locationID, batchID); err != nil {
			return nil, err
		}
		s.cache.Clear()
		return &MutationResult{Status: MutationCompleted}, nil
	default:
		return nil, errors.BadRequest("action must be dispose or quarantine")
	}
}

// Reorder operations

// GenerateAutoReorderSuggestions returns reorder recommendations
func (s *InventoryService) GenerateAutoReorderSuggestions(ctx context.Context) ([]*domain.ReorderSuggestion, error) {
	if v, ok := s.cache.Get("reorder_suggestions"); ok {
		return v.([]*domain.ReorderSuggestion), nil
	}

	suggestions := s.advisor.Suggestions(ctx)
	s.cache.Set("reorder_suggestions", suggestions)
	return suggestions, nil
}

// CreatePurchaseOrder submits a purchase order for a suggestion
func (s *InventoryService) CreatePurchaseOrder(ctx context.Context, suggestion *domain.ReorderSuggestion) (*MutationResult, error) {
	if suggestion.ItemID == "" || suggestion.SuggestedQuantity <= 0 {
		return nil, errors.BadRequest("purchase order requires an item and a positive quantity")
	}

	defer s.cache.Clear()

	if !s.backend.Online() {
		return s.deferOp(ctx, domain.OpCreatePurchaseOrder, suggestion, &MutationResult{})
	}

	if err := s.backend.CreatePurchaseOrder(ctx, suggestion); err != nil {
		if errors.IsNetwork(err) {
			return s.deferOp(ctx, domain.OpCreatePurchaseOrder, suggestion, &MutationResult{})
		}
		return nil, err
	}

	return &MutationResult{Status: MutationCompleted}, nil
}

// Alert operations

// GetActiveAlerts lists active alerts, most urgent first
func (s *InventoryService) GetActiveAlerts(ctx context.Context) ([]*domain.InventoryAlert, error) {
	return s.alerts.Active(), nil
}

// ResolveAlert resolves an alert by ID
func (s *InventoryService) ResolveAlert(ctx context.Context, alertID, resolvedBy string) (*domain.InventoryAlert, error) {
	return s.alerts.Resolve(ctx, alertID, resolvedBy)
}

// AcknowledgeAlert marks an alert as seen
func (s *InventoryService) AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy string) (*domain.InventoryAlert, error) {
	return s.alerts.Acknowledge(ctx, alertID, acknowledgedBy)
}

// Catalog refresh (consumed from backend events)

// RefreshItem re-fetches one item from the backend catalog
func (s *InventoryService) RefreshItem(ctx context.Context, itemID string) error {
	item, err := s.backend.Item(ctx, itemID)
	if err != nil {
		return err
	}
	s.catalog.Upsert(item)
	s.cache.Clear()
	return nil
}

// RemoveItem drops an item from the local catalog
func (s *InventoryService) RemoveItem(ctx context.Context, itemID string) {
	s.catalog.Remove(itemID)
	s.cache.Clear()
}

// recordMovement is the shared mutation pipeline: best-effort geo fix,
// journal record (local, authoritative), synchronous cache clear, event
// publish, then upstream sync that defers on connectivity loss.
func (s *InventoryService) recordMovement(ctx context.Context, draft *domain.MovementDraft, opType domain.OperationType) (*MutationResult, error) {
	s.attachGeoFix(ctx, draft)

	m, err := s.journal.Record(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.cache.Clear()

	s.publisher.PublishMovementRecorded(ctx, m)
	if m.Type == domain.MovementAdjustment {
		loc := m.ToLocation
		if loc == "" {
			loc = domain.DefaultLocation
		}
		if rec, rerr := s.ledger.GetStockRecord(m.ItemID, loc); rerr == nil {
			s.publisher.PublishStockAdjusted(ctx, m, rec.CurrentStock)
		}
	}
	if m.Type == domain.MovementTransfer {
		s.publisher.PublishStockTransferred(ctx, m)
	}

	result, err := s.syncWith(ctx, m, opType)
	if err != nil {
		return nil, err
	}

	if s.alerts != nil {
		// Surface threshold crossings right away instead of waiting for the
		// next scheduled scan.
		go func() {
			if serr := s.alerts.Scan(context.Background()); serr != nil {
				s.logger.Error().Err(serr).Msg("post-mutation alert scan failed")
			}
		}()
	}

	return result, nil
}

// syncMovement pushes an already-recorded movement upstream
func (s *InventoryService) syncMovement(ctx context.Context, m *domain.Movement) (*MutationResult, error) {
	return s.syncWith(ctx, m, domain.OpSyncMovement)
}

func (s *InventoryService) syncWith(ctx context.Context, m *domain.Movement, opType domain.OperationType) (*MutationResult, error) {
	result := &MutationResult{Movement: m}

	if !s.backend.Online() {
		return s.deferOp(ctx, opType, m, result)
	}

	if err := s.backend.SaveMovement(ctx, m); err != nil {
		if errors.IsNetwork(err) {
			// The ledger already holds the change; only the upstream copy is
			// pending. Queue a sync instead of rolling back.
			return s.deferOp(ctx, domain.OpSyncMovement, m, result)
		}
		return nil, err
	}

	result.Status = MutationCompleted
	return result, nil
}

// deferOp enqueues an operation for replay and marks the result deferred
func (s *InventoryService) deferOp(ctx context.Context, opType domain.OperationType, payload interface{}, result *MutationResult) (*MutationResult, error) {
	op, err := s.queue.Enqueue(ctx, opType, payload)
	if err != nil {
		return nil, err
	}
	s.publisher.PublishOperationDeferred(ctx, op)

	result.Status = MutationDeferred
	result.Pending = op
	return result, nil
}

func (s *InventoryService) attachGeoFix(ctx context.Context, draft *domain.MovementDraft) {
	if s.locator == nil || draft.Location != nil {
		return
	}

	fix, err := s.locator.Locate(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("no position fix for movement")
		return
	}
	draft.Location = fix
}

// registerReplayHandlers binds queued operation types to their upstream
// calls. Replay is upstream-only: the local ledger already reflects every
// queued mutation.
func (s *InventoryService) registerReplayHandlers() {
	replayMovement := func(ctx context.Context, op *domain.PendingOperation) error {
		var m domain.Movement
		if err := op.UnmarshalPayload(&m); err != nil {
			return errors.BadRequest("undecodable movement payload: " + err.Error())
		}
		return s.backend.SaveMovement(ctx, &m)
	}

	s.queue.RegisterHandler(domain.OpRecordMovement, replayMovement)
	s.queue.RegisterHandler(domain.OpReceiveStock, replayMovement)
	s.queue.RegisterHandler(domain.OpUpdateStockLevel, replayMovement)
	s.queue.RegisterHandler(domain.OpSyncMovement, replayMovement)

	s.queue.RegisterHandler(domain.OpCreateItem, func(ctx context.Context, op *domain.PendingOperation) error {
		var item domain.Item
		if err := op.UnmarshalPayload(&item); err != nil {
			return errors.BadRequest("undecodable item payload: " + err.Error())
		}
		created, err := s.backend.CreateItem(ctx, &item)
		if err != nil {
			return err
		}
		s.catalog.Upsert(created)
		return nil
	})

	s.queue.RegisterHandler(domain.OpCreatePurchaseOrder, func(ctx context.Context, op *domain.PendingOperation) error {
		var suggestion domain.ReorderSuggestion
		if err := op.UnmarshalPayload(&suggestion); err != nil {
			return errors.BadRequest("undecodable purchase order payload: " + err.Error())
		}
		return s.backend.CreatePurchaseOrder(ctx, &suggestion)
	})
}
