// Package journal is the gatekeeper for all stock mutations. It validates a
// proposed movement, assigns it a sequence-ordered identifier, delegates to
// the ledger, and keeps the completed entries. Entries are never edited; a
// correction is a new compensating movement.
package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/ledger"
	"github.com/farmdash/farmdash-backend/pkg/errors"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/google/uuid"
)

// Catalog resolves item master data. Satisfied by the service's catalog copy.
type Catalog interface {
	Item(ctx context.Context, itemID string) (*domain.Item, error)
}

// Journal validates and records movements against the ledger
type Journal struct {
	mu        sync.Mutex
	ledger    *ledger.Ledger
	catalog   Catalog
	seq       int64
	movements map[string]*domain.Movement
	order     []string
	lastMove  map[string]time.Time
	now       func() time.Time
	logger    *logger.Logger
}

// New creates a journal over the given ledger
func New(led *ledger.Ledger, catalog Catalog, log *logger.Logger) *Journal {
	return NewWithClock(led, catalog, log, time.Now)
}

// NewWithClock creates a journal with an injected clock. Intended for tests.
func NewWithClock(led *ledger.Ledger, catalog Catalog, log *logger.Logger, now func() time.Time) *Journal {
	return &Journal{
		ledger:    led,
		catalog:   catalog,
		movements: make(map[string]*domain.Movement),
		lastMove:  make(map[string]time.Time),
		now:       now,
		logger:    log.WithComponent("journal"),
	}
}

// Record validates the draft, applies it to the ledger, and persists the
// completed entry. Atomic per call: on any error the ledger is untouched and
// no entry is kept.
func (j *Journal) Record(ctx context.Context, draft *domain.MovementDraft) (*domain.Movement, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.validate(ctx, draft); err != nil {
		return nil, err
	}

	quantity := draft.Quantity
	if draft.Type == domain.MovementAdjustment && draft.CountedQuantity != nil {
		loc := draft.ToLocation
		if loc == "" {
			loc = domain.DefaultLocation
		}
		current := 0
		if rec, err := j.ledger.GetStockRecord(draft.ItemID, loc); err == nil {
			current = rec.CurrentStock
		}
		quantity = *draft.CountedQuantity - current
	}

	m := &domain.Movement{
		ID:             uuid.New().String(),
		Sequence:       j.seq + 1,
		ItemID:         draft.ItemID,
		BatchID:        draft.BatchID,
		Type:           draft.Type,
		Reason:         draft.Reason,
		Quantity:       quantity,
		UnitCost:       draft.UnitCost,
		FromLocation:   draft.FromLocation,
		ToLocation:     draft.ToLocation,
		BatchNumber:    draft.BatchNumber,
		ExpirationDate: draft.ExpirationDate,
		Status:         domain.MovementStatusPending,
		PerformedBy:    draft.PerformedBy,
		Location:       draft.Location,
		Timestamp:      j.now(),
	}

	if _, err := j.ledger.ApplyMovement(m); err != nil {
		return nil, err
	}

	j.seq++
	m.Status = domain.MovementStatusCompleted
	j.movements[m.ID] = m
	j.order = append(j.order, m.ID)
	j.lastMove[m.ItemID] = m.Timestamp

	j.logger.WithItemID(m.ItemID).Info().
		Str("movement_id", m.ID).
		Int64("sequence", m.Sequence).
		Str("type", string(m.Type)).
		Int("quantity", m.Quantity).
		Msg("movement recorded")

	c := *m
	return &c, nil
}

// Reverse creates a compensating movement for a completed entry. The
// original is tagged, never edited beyond the reversal markers.
func (j *Journal) Reverse(ctx context.Context, movementID, reason string) (*domain.Movement, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	orig, ok := j.movements[movementID]
	if !ok {
		return nil, errors.NotFound("movement")
	}
	if orig.IsReversed {
		return nil, errors.Conflict(fmt.Sprintf("movement %s already reversed", movementID))
	}
	if orig.Status != domain.MovementStatusCompleted {
		return nil, errors.Conflict(fmt.Sprintf("movement %s is %s, only completed movements can be reversed", movementID, orig.Status))
	}

	rev := &domain.Movement{
		ID:           uuid.New().String(),
		Sequence:     j.seq + 1,
		ItemID:       orig.ItemID,
		Type:         domain.MovementReversal,
		ReversedType: orig.Type,
		Reason:       reason,
		Quantity:     orig.Quantity,
		UnitCost:     orig.UnitCost,
		FromLocation: orig.FromLocation,
		ToLocation:   orig.ToLocation,
		Status:       domain.MovementStatusPending,
		ReversalOf:   &orig.ID,
		PerformedBy:  orig.PerformedBy,
		Timestamp:    j.now(),
	}

	switch orig.Type {
	case domain.MovementTransfer:
		rev.FromLocation, rev.ToLocation = orig.ToLocation, orig.FromLocation
	case domain.MovementAdjustment:
		rev.Quantity = -orig.Quantity
	case domain.MovementPurchase, domain.MovementReceipt:
		// Drain the exact lot the original created.
		rev.BatchID = orig.BatchID
	}

	if _, err := j.ledger.ApplyMovement(rev); err != nil {
		return nil, err
	}

	j.seq++
	rev.Status = domain.MovementStatusCompleted
	orig.IsReversed = true
	orig.Status = domain.MovementStatusReversed
	j.movements[rev.ID] = rev
	j.order = append(j.order, rev.ID)
	j.lastMove[rev.ItemID] = rev.Timestamp

	j.logger.WithItemID(rev.ItemID).Info().
		Str("movement_id", rev.ID).
		Str("reversal_of", orig.ID).
		Msg("movement reversed")

	c := *rev
	return &c, nil
}

// Get returns a copy of one movement
func (j *Journal) Get(movementID string) (*domain.Movement, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	m, ok := j.movements[movementID]
	if !ok {
		return nil, errors.NotFound("movement")
	}
	c := *m
	return &c, nil
}

// Movements returns copies of all entries in recording order
func (j *Journal) Movements() []*domain.Movement {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*domain.Movement, 0, len(j.order))
	for _, id := range j.order {
		c := *j.movements[id]
		out = append(out, &c)
	}
	return out
}

// LastMovementAt returns the timestamp of the item's most recent movement
func (j *Journal) LastMovementAt(itemID string) (time.Time, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	t, ok := j.lastMove[itemID]
	return t, ok
}

// ConsumedSince sums the quantities drawn by outbound movements for an item
// on or after the cutoff. Feeds velocity calculations.
func (j *Journal) ConsumedSince(itemID string, since time.Time) int {
	j.mu.Lock()
	defer j.mu.Unlock()

	total := 0
	for _, id := range j.order {
		m := j.movements[id]
		if m.ItemID != itemID || m.Status != domain.MovementStatusCompleted {
			continue
		}
		if m.Type.Outbound() && !m.Timestamp.Before(since) {
			total += m.Quantity
		}
	}
	return total
}

func (j *Journal) validate(ctx context.Context, draft *domain.MovementDraft) error {
	details := make(map[string]string)

	if !draft.Type.Valid() {
		details["type"] = fmt.Sprintf("unknown movement type %q", draft.Type)
	}
	if draft.Type == domain.MovementReversal {
		details["type"] = "reversals are created through Reverse, not Record"
	}

	switch {
	case draft.Type == domain.MovementAdjustment:
		if draft.CountedQuantity == nil && draft.Quantity == 0 {
			details["quantity"] = "adjustment requires a non-zero delta or a counted quantity"
		}
		if draft.CountedQuantity != nil && *draft.CountedQuantity < 0 {
			details["counted_quantity"] = "counted quantity cannot be negative"
		}
	default:
		if draft.Quantity <= 0 {
			details["quantity"] = "quantity must be positive"
		}
	}

	if draft.UnitCost < 0 {
		details["unit_cost"] = "unit cost cannot be negative"
	}

	if draft.ItemID == "" {
		details["item_id"] = "this field is required"
	} else if _, err := j.catalog.Item(ctx, draft.ItemID); err != nil {
		details["item_id"] = fmt.Sprintf("unknown item %s", draft.ItemID)
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}
