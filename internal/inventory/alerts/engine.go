// Package alerts evaluates stock, expiration, and velocity rules over
// ledger state and emits deduplicated alerts.
package alerts

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/bus"
	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/journal"
	"github.com/farmdash/farmdash-backend/internal/inventory/ledger"
	"github.com/farmdash/farmdash-backend/pkg/actor"
	"github.com/farmdash/farmdash-backend/pkg/errors"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/google/uuid"
)

// Notifier publishes alert transitions to the outside world. Optional.
type Notifier interface {
	AlertRaised(ctx context.Context, alert *domain.InventoryAlert)
	AlertResolved(ctx context.Context, alert *domain.InventoryAlert)
}

// Persister records alerts with the backend. Failures must never block the
// ledger path; the engine logs and moves on. Optional.
type Persister interface {
	CreateAlert(ctx context.Context, alert *domain.InventoryAlert) error
	ResolveAlert(ctx context.Context, alertID string) error
}

// Config holds the rule windows
type Config struct {
	// ExpiryWarningDays is the expiring-soon window
	ExpiryWarningDays int
	// SlowMovingDays is the inactivity window
	SlowMovingDays int
}

// Engine owns the alert state machine: none -> active -> acknowledged,
// resolved, or suppressed. At most one active alert exists per
// (item, alert type) pair.
type Engine struct {
	mu       sync.Mutex
	ledger   *ledger.Ledger
	journal  *journal.Journal
	catalog  journal.Catalog
	cfg      Config
	active   map[string]*domain.InventoryAlert
	all      map[string]*domain.InventoryAlert
	notifier Notifier
	persist  Persister
	bus      *bus.Bus
	now      func() time.Time
	logger   *logger.Logger
}

// New creates an alert engine. notifier, persister, and b may be nil.
func New(led *ledger.Ledger, jnl *journal.Journal, catalog journal.Catalog, cfg Config, notifier Notifier, persister Persister, b *bus.Bus, log *logger.Logger) *Engine {
	if cfg.ExpiryWarningDays <= 0 {
		cfg.ExpiryWarningDays = 30
	}
	if cfg.SlowMovingDays <= 0 {
		cfg.SlowMovingDays = 180
	}
	return &Engine{
		ledger:   led,
		journal:  jnl,
		catalog:  catalog,
		cfg:      cfg,
		active:   make(map[string]*domain.InventoryAlert),
		all:      make(map[string]*domain.InventoryAlert),
		notifier: notifier,
		persist:  persister,
		bus:      b,
		now:      time.Now,
		logger:   log.WithComponent("alert-engine"),
	}
}

func dedupKey(itemID string, alertType domain.AlertType) string {
	return itemID + "|" + string(alertType)
}

// Scan runs all rules once. Rule failures never abort the remaining rules.
func (e *Engine) Scan(ctx context.Context) error {
	// Daily-sweep semantics: expired lots leave the live aggregates before
	// rules read them. Idempotent, so running every tick is fine.
	if expired := e.ledger.MarkExpiredBatches(); len(expired) > 0 {
		e.logger.Info().Int("count", len(expired)).Msg("batches transitioned to expired")
	}

	e.scanNegativeStock(ctx)
	e.scanLowStock(ctx)
	e.scanExpiring(ctx)
	e.scanSlowMoving(ctx)
	e.resolveCleared(ctx)
	return nil
}

// itemTotals aggregates current stock per item across locations
func (e *Engine) itemTotals() map[string]*domain.StockRecord {
	totals := make(map[string]*domain.StockRecord)
	for _, rec := range e.ledger.Records() {
		agg, ok := totals[rec.ItemID]
		if !ok {
			c := *rec
			totals[rec.ItemID] = &c
			continue
		}
		agg.CurrentStock += rec.CurrentStock
		agg.AvailableStock += rec.AvailableStock
		agg.TotalValue += rec.TotalValue
	}
	return totals
}

func (e *Engine) scanNegativeStock(ctx context.Context) {
	for itemID, rec := range e.itemTotals() {
		if rec.CurrentStock >= 0 {
			continue
		}
		e.raise(ctx, &domain.InventoryAlert{
			ItemID:       itemID,
			AlertType:    domain.AlertNegativeStock,
			Priority:     domain.PriorityCritical,
			Message:      fmt.Sprintf("negative stock: %d on hand", rec.CurrentStock),
			CurrentValue: float64(rec.CurrentStock),
			Threshold:    0,
		})
	}
}

func (e *Engine) scanLowStock(ctx context.Context) {
	for itemID, rec := range e.itemTotals() {
		// negative stock has its own rule
		if rec.MinimumStock <= 0 || rec.CurrentStock < 0 || rec.CurrentStock >= rec.MinimumStock {
			continue
		}

		pct := float64(rec.CurrentStock) / float64(rec.MinimumStock) * 100
		e.raise(ctx, &domain.InventoryAlert{
			ItemID:       itemID,
			AlertType:    domain.AlertLowStock,
			Priority:     domain.PriorityForPercentage(pct),
			Message:      fmt.Sprintf("low stock: %d of minimum %d (%.1f%%)", rec.CurrentStock, rec.MinimumStock, pct),
			CurrentValue: float64(rec.CurrentStock),
			Threshold:    float64(rec.MinimumStock),
		})
	}
}

func (e *Engine) scanExpiring(ctx context.Context) {
	window := e.cfg.ExpiryWarningDays
	batches := e.ledger.ExpiringBatches(window)

	// one alert per item, driven by its nearest-expiring batch
	nearest := make(map[string]*domain.Batch)
	for _, b := range batches {
		if cur, ok := nearest[b.ItemID]; !ok || b.ExpirationDate.Before(*cur.ExpirationDate) {
			nearest[b.ItemID] = b
		}
	}

	now := e.now()
	for itemID, b := range nearest {
		days := int(b.ExpirationDate.Sub(now).Hours() / 24)
		if days < 0 {
			days = 0
		}
		pct := float64(days) / float64(window) * 100
		batchID := b.ID
		e.raise(ctx, &domain.InventoryAlert{
			ItemID:       itemID,
			BatchID:      &batchID,
			AlertType:    domain.AlertExpiringSoon,
			Priority:     domain.PriorityForPercentage(pct),
			Message:      fmt.Sprintf("batch %s expires in %d days", b.BatchNumber, days),
			CurrentValue: float64(days),
			Threshold:    float64(window),
		})
	}
}

func (e *Engine) scanSlowMoving(ctx context.Context) {
	cutoff := e.now().AddDate(0, 0, -e.cfg.SlowMovingDays)
	for itemID, rec := range e.itemTotals() {
		if rec.CurrentStock <= 0 {
			continue
		}
		last, ok := e.journal.LastMovementAt(itemID)
		if !ok || last.After(cutoff) {
			continue
		}
		idle := int(e.now().Sub(last).Hours() / 24)
		e.raise(ctx, &domain.InventoryAlert{
			ItemID:       itemID,
			AlertType:    domain.AlertSlowMoving,
			Priority:     domain.PriorityLow,
			Message:      fmt.Sprintf("no movement for %d days", idle),
			CurrentValue: float64(idle),
			Threshold:    float64(e.cfg.SlowMovingDays),
		})
	}
}

// resolveCleared auto-resolves active alerts whose condition no longer holds
func (e *Engine) resolveCleared(ctx context.Context) {
	totals := e.itemTotals()

	e.mu.Lock()
	var cleared []*domain.InventoryAlert
	for _, alert := range e.active {
		rec, ok := totals[alert.ItemID]
		switch alert.AlertType {
		case domain.AlertLowStock:
			if ok && rec.MinimumStock > 0 && rec.CurrentStock >= rec.MinimumStock {
				cleared = append(cleared, alert)
			}
		case domain.AlertNegativeStock:
			if !ok || rec.CurrentStock >= 0 {
				cleared = append(cleared, alert)
			}
		case domain.AlertSlowMoving:
			if last, moved := e.journal.LastMovementAt(alert.ItemID); moved && last.After(e.now().AddDate(0, 0, -e.cfg.SlowMovingDays)) {
				cleared = append(cleared, alert)
			}
		case domain.AlertExpiringSoon:
			// expiring alerts clear through disposal workflows
		}
	}
	e.mu.Unlock()

	for _, alert := range cleared {
		if _, err := e.Resolve(ctx, alert.ID, actor.SystemActor().ID); err != nil {
			e.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to auto-resolve cleared alert")
		}
	}
}

// raise creates an alert unless an active one already exists for the
// (item, type) pair. Idempotent firing.
func (e *Engine) raise(ctx context.Context, alert *domain.InventoryAlert) {
	e.mu.Lock()
	k := dedupKey(alert.ItemID, alert.AlertType)
	if existing, ok := e.active[k]; ok && existing.Status == domain.AlertActive {
		e.mu.Unlock()
		return
	}

	alert.ID = uuid.New().String()
	alert.Status = domain.AlertActive
	alert.CreatedAt = e.now()
	if item, err := e.catalog.Item(ctx, alert.ItemID); err == nil {
		alert.ItemName = item.Name
	}
	e.active[k] = alert
	e.all[alert.ID] = alert
	e.mu.Unlock()

	e.logger.Info().
		Str("alert_id", alert.ID).
		Str("item_id", alert.ItemID).
		Str("alert_type", string(alert.AlertType)).
		Str("priority", string(alert.Priority)).
		Msg("alert raised")

	if e.bus != nil {
		e.bus.Publish(bus.TopicAlert, *alert)
	}
	if e.notifier != nil {
		e.notifier.AlertRaised(ctx, alert)
	}
	if e.persist != nil {
		// alert persistence must never block the primary path
		if err := e.persist.CreateAlert(ctx, alert); err != nil {
			e.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to persist alert")
		}
	}
}

// Active returns active alerts ordered by priority, then age
func (e *Engine) Active() []*domain.InventoryAlert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*domain.InventoryAlert, 0, len(e.active))
	for _, alert := range e.active {
		c := *alert
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := priorityRank(out[i].Priority), priorityRank(out[j].Priority)
		if pi != pj {
			return pi < pj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Resolve transitions an alert out of the active set. Resolving does not
// stop the same rule from firing again on a fresh qualifying condition.
func (e *Engine) Resolve(ctx context.Context, alertID, resolvedBy string) (*domain.InventoryAlert, error) {
	e.mu.Lock()
	alert, ok := e.all[alertID]
	if !ok {
		e.mu.Unlock()
		return nil, errors.NotFound("alert")
	}
	if alert.Status == domain.AlertResolved {
		e.mu.Unlock()
		return nil, errors.Conflict("alert already resolved")
	}

	now := e.now()
	alert.Status = domain.AlertResolved
	alert.ResolvedBy = resolvedBy
	alert.ResolvedAt = &now
	delete(e.active, dedupKey(alert.ItemID, alert.AlertType))
	c := *alert
	// resolved alerts are garbage-collected from the active bookkeeping
	delete(e.all, alertID)
	e.mu.Unlock()

	e.logger.Info().
		Str("alert_id", alertID).
		Str("resolved_by", resolvedBy).
		Msg("alert resolved")

	if e.notifier != nil {
		e.notifier.AlertResolved(ctx, &c)
	}
	if e.persist != nil {
		if err := e.persist.ResolveAlert(ctx, alertID); err != nil {
			e.logger.Error().Err(err).Str("alert_id", alertID).Msg("failed to persist alert resolution")
		}
	}

	return &c, nil
}

// Acknowledge marks an alert as seen without resolving the condition. The
// alert leaves the active set, so the rule may fire again.
func (e *Engine) Acknowledge(ctx context.Context, alertID, acknowledgedBy string) (*domain.InventoryAlert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.all[alertID]
	if !ok {
		return nil, errors.NotFound("alert")
	}
	if alert.Status != domain.AlertActive {
		return nil, errors.Conflict("only active alerts can be acknowledged")
	}

	now := e.now()
	alert.Status = domain.AlertAcknowledged
	alert.AcknowledgedBy = acknowledgedBy
	alert.AcknowledgedAt = &now
	delete(e.active, dedupKey(alert.ItemID, alert.AlertType))

	c := *alert
	return &c, nil
}

func priorityRank(p domain.AlertPriority) int {
	switch p {
	case domain.PriorityCritical:
		return 0
	case domain.PriorityHigh:
		return 1
	case domain.PriorityMedium:
		return 2
	default:
		return 3
	}
}
