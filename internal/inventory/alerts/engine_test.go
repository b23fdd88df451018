package alerts_test

import (
	"context"
	"testing"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/alerts"
	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/journal"
	"github.com/farmdash/farmdash-backend/internal/inventory/ledger"
	"github.com/farmdash/farmdash-backend/pkg/actor"
	"github.com/farmdash/farmdash-backend/pkg/errors"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	items map[string]*domain.Item
}

func (c *stubCatalog) Item(ctx context.Context, itemID string) (*domain.Item, error) {
	if item, ok := c.items[itemID]; ok {
		return item, nil
	}
	return nil, errors.NotFound("item")
}

type fixture struct {
	ledger  *ledger.Ledger
	journal *journal.Journal
	engine  *alerts.Engine
	catalog *stubCatalog
}

// newFixture builds an engine over a ledger whose movements are stamped in
// the past, so velocity windows behave deterministically.
func newFixture(t *testing.T, movementAge time.Duration) *fixture {
	t.Helper()

	clock := func() time.Time { return time.Now().Add(-movementAge) }
	led := ledger.NewWithClock(logger.Nop(), clock)
	catalog := &stubCatalog{items: map[string]*domain.Item{}}
	jnl := journal.NewWithClock(led, catalog, logger.Nop(), clock)

	engine := alerts.New(led, jnl, catalog, alerts.Config{
		ExpiryWarningDays: 30,
		SlowMovingDays:    180,
	}, nil, nil, nil, logger.Nop())

	return &fixture{ledger: led, journal: jnl, engine: engine, catalog: catalog}
}

func (f *fixture) addItem(id string, min int) {
	item := &domain.Item{ID: id, Name: "Item " + id, Unit: "kg", MinimumStock: min}
	f.catalog.items[id] = item
	f.ledger.SetItemThresholds(item)
}

func (f *fixture) receive(t *testing.T, itemID string, qty int) {
	t.Helper()
	_, err := f.journal.Record(context.Background(), &domain.MovementDraft{
		ItemID:   itemID,
		Type:     domain.MovementReceipt,
		Quantity: qty,
		UnitCost: 1.0,
	})
	require.NoError(t, err)
}

func (f *fixture) use(t *testing.T, itemID string, qty int) {
	t.Helper()
	_, err := f.journal.Record(context.Background(), &domain.MovementDraft{
		ItemID:   itemID,
		Type:     domain.MovementUsage,
		Quantity: qty,
	})
	require.NoError(t, err)
}

func activeOfType(e *alerts.Engine, at domain.AlertType) []*domain.InventoryAlert {
	var out []*domain.InventoryAlert
	for _, a := range e.Active() {
		if a.AlertType == at {
			out = append(out, a)
		}
	}
	return out
}

func TestScan_LowStockPriorityBands(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		min      int
		priority domain.AlertPriority
	}{
		{"exactly 25 percent is critical", 25, 100, domain.PriorityCritical},
		{"just above 25 percent is high", 26, 100, domain.PriorityHigh},
		{"exactly 50 percent is high", 50, 100, domain.PriorityHigh},
		{"exactly 75 percent is medium", 75, 100, domain.PriorityMedium},
		{"above 75 percent is low", 76, 100, domain.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Hour)
			f.addItem("feed-1", tt.min)
			f.receive(t, "feed-1", tt.current)

			require.NoError(t, f.engine.Scan(context.Background()))

			got := activeOfType(f.engine, domain.AlertLowStock)
			require.Len(t, got, 1)
			assert.Equal(t, tt.priority, got[0].Priority)
			assert.Equal(t, "Item feed-1", got[0].ItemName)
		})
	}
}

func TestScan_NoAlertAtOrAboveMinimum(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("feed-1", 20)
	f.receive(t, "feed-1", 20)

	require.NoError(t, f.engine.Scan(context.Background()))

	assert.Empty(t, activeOfType(f.engine, domain.AlertLowStock))
}

func TestScan_DedupKeepsOneActiveAlert(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("feed-1", 100)
	f.receive(t, "feed-1", 10)

	ctx := context.Background()
	require.NoError(t, f.engine.Scan(ctx))
	require.NoError(t, f.engine.Scan(ctx))
	require.NoError(t, f.engine.Scan(ctx))

	assert.Len(t, activeOfType(f.engine, domain.AlertLowStock), 1)
}

func TestScan_RefiresAfterResolveWhileConditionHolds(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("feed-1", 100)
	f.receive(t, "feed-1", 10)

	ctx := context.Background()
	require.NoError(t, f.engine.Scan(ctx))
	first := activeOfType(f.engine, domain.AlertLowStock)[0]

	_, err := f.engine.Resolve(ctx, first.ID, "farmhand")
	require.NoError(t, err)
	assert.Empty(t, f.engine.Active())

	// condition still holds, so the next scan fires a fresh alert
	require.NoError(t, f.engine.Scan(ctx))
	refired := activeOfType(f.engine, domain.AlertLowStock)
	require.Len(t, refired, 1)
	assert.NotEqual(t, first.ID, refired[0].ID)
}

func TestScan_NegativeStockIsCritical(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("feed-1", 10)
	f.receive(t, "feed-1", 5)

	_, err := f.journal.Record(context.Background(), &domain.MovementDraft{
		ItemID:   "feed-1",
		Type:     domain.MovementAdjustment,
		Quantity: -8,
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.Scan(context.Background()))

	got := activeOfType(f.engine, domain.AlertNegativeStock)
	require.Len(t, got, 1)
	assert.Equal(t, domain.PriorityCritical, got[0].Priority)
	assert.Equal(t, -3.0, got[0].CurrentValue)

	// low stock defers to the negative stock rule
	assert.Empty(t, activeOfType(f.engine, domain.AlertLowStock))
}

func TestScan_ExpiringSoon(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("med-1", 0)

	exp := time.Now().AddDate(0, 0, 5)
	_, err := f.journal.Record(context.Background(), &domain.MovementDraft{
		ItemID:         "med-1",
		Type:           domain.MovementReceipt,
		Quantity:       10,
		UnitCost:       2.0,
		ExpirationDate: &exp,
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.Scan(context.Background()))

	got := activeOfType(f.engine, domain.AlertExpiringSoon)
	require.Len(t, got, 1)
	// 4-5 days of a 30 day window sits in the critical band
	assert.Equal(t, domain.PriorityCritical, got[0].Priority)
	require.NotNil(t, got[0].BatchID)
}

func TestScan_ExpiredBatchesSweptNotAlerted(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("med-1", 0)

	exp := time.Now().AddDate(0, 0, -1)
	_, err := f.journal.Record(context.Background(), &domain.MovementDraft{
		ItemID:         "med-1",
		Type:           domain.MovementReceipt,
		Quantity:       10,
		UnitCost:       2.0,
		ExpirationDate: &exp,
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.Scan(context.Background()))

	// the sweep retired the lot before the expiring rule saw it
	assert.Empty(t, activeOfType(f.engine, domain.AlertExpiringSoon))
	rec, err := f.ledger.GetStockRecord("med-1", domain.DefaultLocation)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CurrentStock)
}

func TestScan_SlowMoving(t *testing.T) {
	f := newFixture(t, 200*24*time.Hour)
	f.addItem("salt-1", 0)
	f.receive(t, "salt-1", 50)

	require.NoError(t, f.engine.Scan(context.Background()))

	got := activeOfType(f.engine, domain.AlertSlowMoving)
	require.Len(t, got, 1)
	assert.Equal(t, domain.PriorityLow, got[0].Priority)
}

func TestScan_RecentMovementIsNotSlowMoving(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("salt-1", 0)
	f.receive(t, "salt-1", 50)

	require.NoError(t, f.engine.Scan(context.Background()))

	assert.Empty(t, activeOfType(f.engine, domain.AlertSlowMoving))
}

func TestScan_AutoResolvesClearedLowStock(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("feed-1", 100)
	f.receive(t, "feed-1", 10)

	ctx := context.Background()
	require.NoError(t, f.engine.Scan(ctx))
	require.Len(t, activeOfType(f.engine, domain.AlertLowStock), 1)

	f.receive(t, "feed-1", 200)
	require.NoError(t, f.engine.Scan(ctx))

	assert.Empty(t, activeOfType(f.engine, domain.AlertLowStock))
}

type captureNotifier struct {
	resolved []*domain.InventoryAlert
}

func (n *captureNotifier) AlertRaised(ctx context.Context, alert *domain.InventoryAlert) {}

func (n *captureNotifier) AlertResolved(ctx context.Context, alert *domain.InventoryAlert) {
	n.resolved = append(n.resolved, alert)
}

func TestScan_AutoResolveAttributesSystemActor(t *testing.T) {
	f := newFixture(t, time.Hour)
	notifier := &captureNotifier{}
	f.engine = alerts.New(f.ledger, f.journal, f.catalog, alerts.Config{
		ExpiryWarningDays: 30,
		SlowMovingDays:    180,
	}, notifier, nil, nil, logger.Nop())

	f.addItem("feed-1", 100)
	f.receive(t, "feed-1", 10)

	ctx := context.Background()
	require.NoError(t, f.engine.Scan(ctx))

	f.receive(t, "feed-1", 200)
	require.NoError(t, f.engine.Scan(ctx))

	require.Len(t, notifier.resolved, 1)
	assert.Equal(t, actor.SystemActor().ID, notifier.resolved[0].ResolvedBy)
}

func TestResolve(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("feed-1", 100)
	f.receive(t, "feed-1", 10)

	ctx := context.Background()
	require.NoError(t, f.engine.Scan(ctx))
	alert := f.engine.Active()[0]

	resolved, err := f.engine.Resolve(ctx, alert.ID, "farmhand")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertResolved, resolved.Status)
	assert.Equal(t, "farmhand", resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = f.engine.Resolve(ctx, alert.ID, "farmhand")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestResolve_UnknownAlert(t *testing.T) {
	f := newFixture(t, time.Hour)

	_, err := f.engine.Resolve(context.Background(), "nope", "x")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAcknowledge(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("feed-1", 100)
	f.receive(t, "feed-1", 10)

	ctx := context.Background()
	require.NoError(t, f.engine.Scan(ctx))
	alert := f.engine.Active()[0]

	acked, err := f.engine.Acknowledge(ctx, alert.ID, "farmhand")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedAt)

	// acknowledged alerts leave the active set
	assert.Empty(t, f.engine.Active())

	_, err = f.engine.Acknowledge(ctx, alert.ID, "again")
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestActive_OrderedByPriority(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.addItem("a-critical", 100)
	f.receive(t, "a-critical", 10)
	f.addItem("b-low", 100)
	f.receive(t, "b-low", 80)

	require.NoError(t, f.engine.Scan(context.Background()))

	active := f.engine.Active()
	require.Len(t, active, 2)
	assert.Equal(t, domain.PriorityCritical, active[0].Priority)
	assert.Equal(t, domain.PriorityLow, active[1].Priority)
}
