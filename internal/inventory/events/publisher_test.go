package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/events"
	"github.com/stretchr/testify/assert"
)

// Messaging is optional; the service holds a nil publisher when RabbitMQ is
// not configured, and every publish must be a no-op rather than a panic.
func TestNilPublisherIsSafe(t *testing.T) {
	var p *events.InventoryEventPublisher
	ctx := context.Background()

	m := &domain.Movement{ID: "mov-1", ItemID: "feed-1", Type: domain.MovementUsage, Timestamp: time.Now()}

	assert.NotPanics(t, func() {
		p.PublishMovementRecorded(ctx, m)
		p.PublishMovementReversed(ctx, m, m)
		p.PublishStockAdjusted(ctx, m, 42)
		p.PublishStockTransferred(ctx, m)
		p.AlertRaised(ctx, &domain.InventoryAlert{ID: "alert-1"})
		p.AlertResolved(ctx, &domain.InventoryAlert{ID: "alert-1"})
		p.PublishOperationDeferred(ctx, &domain.PendingOperation{ID: "op-1"})
		p.OperationReplayed(ctx, &domain.PendingOperation{ID: "op-1"})
		p.OperationDropped(ctx, &domain.PendingOperation{ID: "op-1"}, "handler failed")
	})
}
