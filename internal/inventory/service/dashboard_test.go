package service_test

import (
	"context"
	"testing"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDashboardSummary(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	feed := e.addItem(e.fixtures.Item(func(i *domain.Item) {
		i.Category = "feed"
		i.MinimumStock = 100
	}))
	med := e.addItem(e.fixtures.Item(func(i *domain.Item) {
		i.Category = "medicine"
		i.MinimumStock = 5
	}))
	empty := e.addItem(e.fixtures.Item(func(i *domain.Item) {
		i.Category = "medicine"
	}))

	_, err := e.svc.ReceiveStock(ctx, e.fixtures.ReceiptDraft(feed.ID, 40, 2.0))
	require.NoError(t, err)
	_, err = e.svc.ReceiveStock(ctx, e.fixtures.ExpiringReceipt(med.ID, 10, 5))
	require.NoError(t, err)
	_, err = e.svc.ReceiveStock(ctx, e.fixtures.ReceiptDraft(empty.ID, 10, 1.0))
	require.NoError(t, err)
	_, err = e.svc.RecordMovement(ctx, e.fixtures.UsageDraft(empty.ID, 10))
	require.NoError(t, err)

	summary, err := e.svc.GetDashboardSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalItems)
	assert.Equal(t, 50, summary.TotalStock)
	assert.Equal(t, 90.0, summary.TotalStockValue)
	assert.Equal(t, 1, summary.LowStockCount)
	assert.Equal(t, 1, summary.OutOfStockCount)
	assert.Equal(t, 1, summary.ExpiringCount)
	assert.Equal(t, 0, summary.ExpiredCount)
	assert.Equal(t, 0, summary.PendingSyncCount)

	require.Contains(t, summary.CategoryBreakdown, "feed")
	require.Contains(t, summary.CategoryBreakdown, "medicine")
	assert.Equal(t, 1, summary.CategoryBreakdown["feed"].ItemCount)
	assert.Equal(t, 40, summary.CategoryBreakdown["feed"].TotalStock)
	assert.Equal(t, 2, summary.CategoryBreakdown["medicine"].ItemCount)
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestGetDashboardSummary_Cached(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	first, err := e.svc.GetDashboardSummary(ctx)
	require.NoError(t, err)
	second, err := e.svc.GetDashboardSummary(ctx)
	require.NoError(t, err)

	// same generation timestamp proves the cached copy was served
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
}
