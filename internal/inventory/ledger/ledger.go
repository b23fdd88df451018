// Package ledger is the single source of truth for stock state. All
// mutations flow through ApplyMovement; nothing else touches the records.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/pkg/errors"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/google/uuid"
)

// Ledger holds per item/location stock aggregates and the batches backing
// them. One mutation executes to completion before the next is accepted.
type Ledger struct {
	mu      sync.Mutex
	records map[string]*domain.StockRecord
	// offsets tracks divergence introduced by count adjustments that could
	// not be matched to batches (the source of negative stock).
	offsets    map[string]int
	thresholds map[string]domain.Item
	now        func() time.Time
	logger     *logger.Logger
}

// New creates an empty ledger
func New(log *logger.Logger) *Ledger {
	return NewWithClock(log, time.Now)
}

// NewWithClock creates a ledger with an injected clock. Intended for tests.
func NewWithClock(log *logger.Logger, now func() time.Time) *Ledger {
	return &Ledger{
		records:    make(map[string]*domain.StockRecord),
		offsets:    make(map[string]int),
		thresholds: make(map[string]domain.Item),
		now:        now,
		logger:     log.WithComponent("ledger"),
	}
}

func key(itemID, locationID string) string {
	return itemID + "|" + locationID
}

// SetItemThresholds copies reorder thresholds from catalog master data onto
// the ledger. New stock records pick them up; existing ones are updated.
func (l *Ledger) SetItemThresholds(item *domain.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.thresholds[item.ID] = *item
	for _, rec := range l.records {
		if rec.ItemID == item.ID {
			rec.MinimumStock = item.MinimumStock
			rec.MaximumStock = item.MaximumStock
			rec.ReorderPoint = item.ReorderPoint
			l.recompute(rec)
		}
	}
}

// GetStockRecord returns a copy of the aggregate state for one item at one
// location. Callers never see live ledger internals.
func (l *Ledger) GetStockRecord(itemID, locationID string) (*domain.StockRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key(itemID, locationID)]
	if !ok {
		return nil, errors.NotFound("stock record")
	}
	return copyRecord(rec), nil
}

// Records returns copies of all stock records
func (l *Ledger) Records() []*domain.StockRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.StockRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out
}

// ApplyMovement applies a validated movement to the ledger and returns the
// updated record at the movement's primary location. All-or-nothing: on
// error no batch or aggregate is changed.
func (l *Ledger) ApplyMovement(m *domain.Movement) (*domain.StockRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch m.Type {
	case domain.MovementPurchase, domain.MovementReceipt:
		return l.applyInbound(m)
	case domain.MovementUsage, domain.MovementSale, domain.MovementDisposal:
		return l.applyOutbound(m)
	case domain.MovementTransfer:
		return l.applyTransfer(m)
	case domain.MovementAdjustment:
		return l.applyAdjustment(m)
	case domain.MovementReversal:
		return l.applyReversal(m)
	default:
		return nil, errors.BadRequest(fmt.Sprintf("unknown movement type %q", m.Type))
	}
}

func (l *Ledger) applyInbound(m *domain.Movement) (*domain.StockRecord, error) {
	loc := m.ToLocation
	if loc == "" {
		loc = domain.DefaultLocation
	}
	rec := l.ensure(m.ItemID, loc)

	batchID := uuid.New().String()
	if m.BatchID != nil && *m.BatchID != "" {
		batchID = *m.BatchID
	} else {
		m.BatchID = &batchID
	}

	rec.Batches = append(rec.Batches, &domain.Batch{
		ID:             batchID,
		ItemID:         m.ItemID,
		LocationID:     loc,
		BatchNumber:    m.BatchNumber,
		Quantity:       m.Quantity,
		Available:      m.Quantity,
		UnitCost:       m.UnitCost,
		ReceivedDate:   m.Timestamp,
		ExpirationDate: m.ExpirationDate,
		Status:         domain.BatchActive,
	})
	m.TotalCost = float64(m.Quantity) * m.UnitCost

	l.recompute(rec)
	return copyRecord(rec), nil
}

func (l *Ledger) applyOutbound(m *domain.Movement) (*domain.StockRecord, error) {
	loc := m.FromLocation
	if loc == "" {
		loc = domain.DefaultLocation
	}
	rec := l.ensure(m.ItemID, loc)

	// Disposal may target a specific, possibly non-active batch (expired,
	// quarantined, recalled workflows). Everything else draws active stock.
	var pool []*domain.Batch
	if m.BatchID != nil {
		b := findBatch(rec, *m.BatchID)
		if b == nil {
			return nil, errors.NotFound("batch")
		}
		if m.Type != domain.MovementDisposal && b.Status != domain.BatchActive {
			return nil, errors.Conflict(fmt.Sprintf("batch %s is %s", b.ID, b.Status))
		}
		pool = []*domain.Batch{b}
	} else {
		pool = activeBatchesFIFO(rec)
	}

	available := 0
	for _, b := range pool {
		available += b.Available
	}
	if m.Quantity > available {
		return nil, errors.InsufficientStock(m.ItemID, m.Quantity, available)
	}

	total := consumeFIFO(pool, m.Quantity)
	m.TotalCost = total
	if m.Quantity > 0 {
		m.UnitCost = total / float64(m.Quantity)
	}

	l.recompute(rec)
	return copyRecord(rec), nil
}

func (l *Ledger) applyTransfer(m *domain.Movement) (*domain.StockRecord, error) {
	from := m.FromLocation
	if from == "" {
		from = domain.DefaultLocation
	}
	if m.ToLocation == "" || m.ToLocation == from {
		return nil, errors.BadRequest("transfer requires a distinct destination location")
	}

	src := l.ensure(m.ItemID, from)
	pool := activeBatchesFIFO(src)

	available := 0
	for _, b := range pool {
		available += b.Available
	}
	if m.Quantity > available {
		return nil, errors.InsufficientStock(m.ItemID, m.Quantity, available)
	}

	dst := l.ensure(m.ItemID, m.ToLocation)

	remaining := m.Quantity
	total := 0.0
	for _, b := range pool {
		if remaining == 0 {
			break
		}
		take := b.Available
		if take > remaining {
			take = remaining
		}
		total += float64(take) * b.UnitCost

		if take == b.Available && b.Available == b.Quantity {
			// Whole untouched lot: relocate the batch itself.
			removeBatch(src, b.ID)
			b.LocationID = m.ToLocation
			dst.Batches = append(dst.Batches, b)
		} else {
			// Partial draw: the lot keeps its identity on both sides.
			b.Available -= take
			b.Quantity -= take
			dst.Batches = append(dst.Batches, &domain.Batch{
				ID:             b.ID,
				ItemID:         b.ItemID,
				LocationID:     m.ToLocation,
				BatchNumber:    b.BatchNumber,
				Quantity:       take,
				Available:      take,
				UnitCost:       b.UnitCost,
				ReceivedDate:   b.ReceivedDate,
				ExpirationDate: b.ExpirationDate,
				Status:         b.Status,
			})
		}
		remaining -= take
	}
	m.TotalCost = total

	l.recompute(src)
	l.recompute(dst)
	return copyRecord(src), nil
}

// applyAdjustment reconciles physical counts. Positive deltas first pay down
// any negative offset, the remainder lands in a synthetic count batch at the
// running average cost. Negative deltas drain batches FIFO; a shortfall
// beyond the batch total pushes current stock negative via the offset.
func (l *Ledger) applyAdjustment(m *domain.Movement) (*domain.StockRecord, error) {
	loc := m.ToLocation
	if loc == "" {
		loc = m.FromLocation
	}
	if loc == "" {
		loc = domain.DefaultLocation
	}
	rec := l.ensure(m.ItemID, loc)
	k := key(m.ItemID, loc)

	delta := m.Quantity
	switch {
	case delta > 0:
		if off := l.offsets[k]; off < 0 {
			repay := -off
			if repay > delta {
				repay = delta
			}
			l.offsets[k] += repay
			delta -= repay
		}
		if delta > 0 {
			cost := m.UnitCost
			if cost == 0 {
				cost = rec.AverageCost
			}
			rec.Batches = append(rec.Batches, &domain.Batch{
				ID:           uuid.New().String(),
				ItemID:       m.ItemID,
				LocationID:   loc,
				BatchNumber:  "COUNT-" + m.Timestamp.Format("20060102"),
				Quantity:     delta,
				Available:    delta,
				UnitCost:     cost,
				ReceivedDate: m.Timestamp,
				Status:       domain.BatchActive,
			})
		}
	case delta < 0:
		need := -delta
		pool := activeBatchesFIFO(rec)
		available := 0
		for _, b := range pool {
			available += b.Available
		}
		drain := need
		if drain > available {
			drain = available
		}
		consumeFIFO(pool, drain)
		if short := need - drain; short > 0 {
			l.offsets[k] -= short
			l.logger.Warn().
				Str("item_id", m.ItemID).
				Str("location_id", loc).
				Int("shortfall", short).
				Msg("count adjustment exceeds batch stock, record going negative")
		}
	}

	l.recompute(rec)
	return copyRecord(rec), nil
}

// applyReversal inverts the effect of the original movement, whose type the
// journal stored on the compensating entry.
func (l *Ledger) applyReversal(m *domain.Movement) (*domain.StockRecord, error) {
	switch m.ReversedType {
	case domain.MovementUsage, domain.MovementSale, domain.MovementDisposal:
		// Restore the consumed quantity as a new lot at the charged cost.
		restore := *m
		restore.Type = domain.MovementReceipt
		restore.ToLocation = m.FromLocation
		if restore.BatchNumber == "" {
			restore.BatchNumber = "REV-" + m.Timestamp.Format("20060102")
		}
		restore.BatchID = nil
		rec, err := l.applyInbound(&restore)
		m.BatchID = restore.BatchID
		m.TotalCost = restore.TotalCost
		return rec, err
	case domain.MovementPurchase, domain.MovementReceipt:
		drawdown := *m
		drawdown.Type = domain.MovementDisposal
		drawdown.FromLocation = m.ToLocation
		rec, err := l.applyOutbound(&drawdown)
		m.TotalCost = drawdown.TotalCost
		return rec, err
	case domain.MovementTransfer:
		// Journal already swapped from/to on the compensating entry.
		return l.applyTransfer(m)
	case domain.MovementAdjustment:
		// Journal negated the original delta.
		return l.applyAdjustment(m)
	default:
		return nil, errors.BadRequest(fmt.Sprintf("cannot reverse movement type %q", m.ReversedType))
	}
}

// ExpiringBatches returns copies of active batches whose expiration date
// falls within the window.
func (l *Ledger) ExpiringBatches(withinDays int) []*domain.Batch {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().AddDate(0, 0, withinDays)
	var out []*domain.Batch
	for _, rec := range l.records {
		for _, b := range rec.Batches {
			if b.Status != domain.BatchActive || b.Available == 0 || b.ExpirationDate == nil {
				continue
			}
			if b.ExpirationDate.Before(cutoff) {
				c := *b
				out = append(out, &c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpirationDate.Before(*out[j].ExpirationDate)
	})
	return out
}

// MarkExpiredBatches is the daily sweep: active batches past their
// expiration date transition to expired and leave the live aggregates.
// Returns the batches that transitioned.
func (l *Ledger) MarkExpiredBatches() []*domain.Batch {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var expired []*domain.Batch
	for _, rec := range l.records {
		changed := false
		for _, b := range rec.Batches {
			if b.Status == domain.BatchActive && b.Expired(now) {
				b.Status = domain.BatchExpired
				changed = true
				c := *b
				expired = append(expired, &c)
			}
		}
		if changed {
			l.recompute(rec)
		}
	}
	return expired
}

// QuarantineBatch moves a batch out of the live aggregates pending a
// disposal workflow.
func (l *Ledger) QuarantineBatch(itemID, locationID, batchID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key(itemID, locationID)]
	if !ok {
		return errors.NotFound("stock record")
	}
	b := findBatch(rec, batchID)
	if b == nil {
		return errors.NotFound("batch")
	}
	if b.Status == domain.BatchQuarantined {
		return errors.Conflict("batch already quarantined")
	}
	b.Status = domain.BatchQuarantined
	l.recompute(rec)
	return nil
}

// ensure returns the record for item/location, creating it with catalog
// thresholds when absent. Caller holds the mutex.
func (l *Ledger) ensure(itemID, locationID string) *domain.StockRecord {
	k := key(itemID, locationID)
	if rec, ok := l.records[k]; ok {
		return rec
	}

	rec := &domain.StockRecord{
		ItemID:     itemID,
		LocationID: locationID,
		Status:     domain.StockOut,
	}
	if item, ok := l.thresholds[itemID]; ok {
		rec.MinimumStock = item.MinimumStock
		rec.MaximumStock = item.MaximumStock
		rec.ReorderPoint = item.ReorderPoint
	}
	l.records[k] = rec
	return rec
}

// recompute rebuilds aggregates from the batch collection. Caller holds the
// mutex.
func (l *Ledger) recompute(rec *domain.StockRecord) {
	availSum := 0
	value := 0.0
	for _, b := range rec.Batches {
		if b.Status != domain.BatchActive {
			continue
		}
		availSum += b.Available
		value += float64(b.Available) * b.UnitCost
	}

	current := availSum + l.offsets[key(rec.ItemID, rec.LocationID)]

	rec.CurrentStock = current
	rec.AvailableStock = current - rec.ReservedStock - rec.InTransitStock
	rec.TotalValue = value
	// When the item drains to zero the last computed average is kept, not
	// reset. Count adjustments without a unit cost value their repayment
	// batches at this average, so it must survive a drain.
	if availSum > 0 {
		rec.AverageCost = value / float64(availSum)
	}

	switch {
	case current <= 0:
		rec.Status = domain.StockOut
	case current < rec.MinimumStock:
		rec.Status = domain.StockLow
	case rec.MaximumStock > 0 && current > rec.MaximumStock:
		rec.Status = domain.StockOverstocked
	default:
		rec.Status = domain.StockInStock
	}
	rec.UpdatedAt = l.now()
}

// activeBatchesFIFO returns active batches in receipt order. Receipt order is
// the sole tie-break: a batch nearer expiry that arrived later still waits.
func activeBatchesFIFO(rec *domain.StockRecord) []*domain.Batch {
	out := make([]*domain.Batch, 0, len(rec.Batches))
	for _, b := range rec.Batches {
		if b.Status == domain.BatchActive {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedDate.Before(out[j].ReceivedDate)
	})
	return out
}

// consumeFIFO drains qty from the pool in order and returns the total cost
// charged. Callers have already checked availability.
func consumeFIFO(pool []*domain.Batch, qty int) float64 {
	total := 0.0
	remaining := qty
	for _, b := range pool {
		if remaining == 0 {
			break
		}
		take := b.Available
		if take > remaining {
			take = remaining
		}
		b.Available -= take
		total += float64(take) * b.UnitCost
		remaining -= take
	}
	return total
}

func findBatch(rec *domain.StockRecord, batchID string) *domain.Batch {
	for _, b := range rec.Batches {
		if b.ID == batchID {
			return b
		}
	}
	return nil
}

func removeBatch(rec *domain.StockRecord, batchID string) {
	for i, b := range rec.Batches {
		if b.ID == batchID {
			rec.Batches = append(rec.Batches[:i], rec.Batches[i+1:]...)
			return
		}
	}
}

func copyRecord(rec *domain.StockRecord) *domain.StockRecord {
	c := *rec
	c.Batches = make([]*domain.Batch, len(rec.Batches))
	for i, b := range rec.Batches {
		bc := *b
		c.Batches[i] = &bc
	}
	return &c
}
