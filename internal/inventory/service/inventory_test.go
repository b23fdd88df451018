package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/advisor"
	"github.com/farmdash/farmdash-backend/internal/inventory/alerts"
	"github.com/farmdash/farmdash-backend/internal/inventory/backend"
	"github.com/farmdash/farmdash-backend/internal/inventory/bus"
	"github.com/farmdash/farmdash-backend/internal/inventory/cache"
	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/journal"
	"github.com/farmdash/farmdash-backend/internal/inventory/ledger"
	"github.com/farmdash/farmdash-backend/internal/inventory/offline"
	"github.com/farmdash/farmdash-backend/internal/inventory/service"
	"github.com/farmdash/farmdash-backend/pkg/config"
	"github.com/farmdash/farmdash-backend/pkg/errors"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/farmdash/farmdash-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	svc      *service.InventoryService
	catalog  *service.Catalog
	client   *backend.Client
	queue    *offline.Queue
	srv      *httptest.Server
	fixtures *testutil.FixtureFactory
}

func newEnv(t *testing.T, handler http.Handler) *env {
	t.Helper()

	if handler == nil {
		handler = okHandler()
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	led := ledger.New(logger.Nop())
	catalog := service.NewCatalog(led)
	jnl := journal.New(led, catalog, logger.Nop())
	readCache := cache.New(time.Minute)
	eventBus := bus.New()

	client := backend.New(config.BackendConfig{
		BaseURL:        srv.URL,
		ProbePath:      "/health",
		RequestTimeout: 2 * time.Second,
	}, logger.Nop())

	queue := offline.New(eventBus, client.Online, nil, time.Hour, logger.Nop())
	engine := alerts.New(led, jnl, catalog, alerts.Config{}, nil, nil, nil, logger.Nop())
	adv := advisor.New(led, jnl, catalog, advisor.Config{}, logger.Nop())

	svc := service.NewInventoryService(catalog, led, jnl, readCache, queue, client, nil, engine, adv, nil, logger.Nop())

	return &env{
		svc:      svc,
		catalog:  catalog,
		client:   client,
		queue:    queue,
		srv:      srv,
		fixtures: testutil.NewFixtureFactory(),
	}
}

// okHandler accepts every call with an empty success envelope
func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{}})
	})
}

func (e *env) addItem(item *domain.Item) *domain.Item {
	e.catalog.Upsert(item)
	return item
}

func TestCreateItem_ValidationFailures(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.svc.CreateItem(context.Background(), &domain.Item{MinimumStock: -1})
	require.True(t, errors.Is(err, errors.ErrValidation))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "name")
	assert.Contains(t, appErr.Details, "unit")
	assert.Contains(t, appErr.Details, "minimum_stock")
}

func TestCreateItem_CompletedWhenOnline(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var item domain.Item
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		item.Barcode = "8901000001234"
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": item})
	})
	e := newEnv(t, handler)

	result, err := e.svc.CreateItem(context.Background(), &domain.Item{Name: "Cattle Feed", Unit: "kg"})
	require.NoError(t, err)
	assert.False(t, result.Deferred())
	require.NotNil(t, result.Item)
	assert.NotEmpty(t, result.Item.ID)

	// the backend's canonical copy lands in the catalog
	got, err := e.svc.GetItemByBarcode(context.Background(), "8901000001234")
	require.NoError(t, err)
	assert.Equal(t, "Cattle Feed", got.Name)
}

func TestCreateItem_DeferredWhenOffline(t *testing.T) {
	e := newEnv(t, nil)
	e.client.SetOnline(false)

	result, err := e.svc.CreateItem(context.Background(), &domain.Item{Name: "Cattle Feed", Unit: "kg"})
	require.NoError(t, err)
	assert.True(t, result.Deferred())
	require.NotNil(t, result.Pending)
	assert.Equal(t, domain.OpCreateItem, result.Pending.Type)
	assert.Equal(t, 1, e.queue.Depth())

	// the item is usable locally before the backend ever hears about it
	items, err := e.svc.GetItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Cattle Feed", items[0].Name)
}

func TestReceiveStock_CompletedWhenOnline(t *testing.T) {
	e := newEnv(t, nil)
	item := e.addItem(e.fixtures.Item())

	result, err := e.svc.ReceiveStock(context.Background(), e.fixtures.ReceiptDraft(item.ID, 50, 2.5))
	require.NoError(t, err)
	assert.False(t, result.Deferred())
	require.NotNil(t, result.Movement)
	assert.Equal(t, domain.MovementReceipt, result.Movement.Type)

	rec, err := e.svc.GetStockLevel(context.Background(), item.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 50, rec.CurrentStock)
}

func TestReceiveStock_DeferredWhenOffline(t *testing.T) {
	e := newEnv(t, nil)
	item := e.addItem(e.fixtures.Item())
	e.client.SetOnline(false)

	result, err := e.svc.ReceiveStock(context.Background(), e.fixtures.ReceiptDraft(item.ID, 50, 2.5))
	require.NoError(t, err)
	assert.True(t, result.Deferred())
	require.NotNil(t, result.Pending)
	assert.Equal(t, domain.OpReceiveStock, result.Pending.Type)

	// local state is authoritative regardless of connectivity
	rec, err := e.svc.GetStockLevel(context.Background(), item.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 50, rec.CurrentStock)
}

func TestRecordMovement_MidflightFailureDefers(t *testing.T) {
	e := newEnv(t, nil)
	item := e.addItem(e.fixtures.Item())

	// the client still believes it is online, so it attempts the push and
	// hits a dead socket
	e.srv.Close()
	require.True(t, e.client.Online())

	result, err := e.svc.ReceiveStock(context.Background(), e.fixtures.ReceiptDraft(item.ID, 50, 2.5))
	require.NoError(t, err)
	assert.True(t, result.Deferred())
	assert.Equal(t, domain.OpSyncMovement, result.Pending.Type)
	assert.False(t, e.client.Online())

	rec, err := e.svc.GetStockLevel(context.Background(), item.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 50, rec.CurrentStock)
}

func TestUpdateStockLevel_DerivesAdjustmentDelta(t *testing.T) {
	e := newEnv(t, nil)
	item := e.addItem(e.fixtures.Item())
	_, err := e.svc.ReceiveStock(context.Background(), e.fixtures.ReceiptDraft(item.ID, 50, 2.5))
	require.NoError(t, err)

	result, err := e.svc.UpdateStockLevel(context.Background(), item.ID, 42, "cycle count", "farmhand")
	require.NoError(t, err)
	assert.Equal(t, -8, result.Movement.Quantity)

	rec, err := e.svc.GetStockLevel(context.Background(), item.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 42, rec.CurrentStock)
}

func TestTransferStock_RejectsSameLocation(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.svc.TransferStock(context.Background(), "feed-1", 10, "barn-a", "barn-a", "farmhand")
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestUseItemForTreatment_TagsReason(t *testing.T) {
	e := newEnv(t, nil)
	item := e.addItem(e.fixtures.Item())
	_, err := e.svc.ReceiveStock(context.Background(), e.fixtures.ReceiptDraft(item.ID, 50, 2.5))
	require.NoError(t, err)

	result, err := e.svc.UseItemForTreatment(context.Background(), item.ID, 5, "treat-77", "vet")
	require.NoError(t, err)
	assert.Equal(t, "treatment treat-77", result.Movement.Reason)
	assert.Equal(t, domain.MovementUsage, result.Movement.Type)
}

func TestReverseMovement_RestoresStock(t *testing.T) {
	e := newEnv(t, nil)
	item := e.addItem(e.fixtures.Item())
	_, err := e.svc.ReceiveStock(context.Background(), e.fixtures.ReceiptDraft(item.ID, 50, 2.5))
	require.NoError(t, err)

	usage, err := e.svc.RecordMovement(context.Background(), e.fixtures.UsageDraft(item.ID, 20))
	require.NoError(t, err)

	result, err := e.svc.ReverseMovement(context.Background(), usage.Movement.ID, "entry error")
	require.NoError(t, err)
	assert.Equal(t, domain.MovementReversal, result.Movement.Type)

	rec, err := e.svc.GetStockLevel(context.Background(), item.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 50, rec.CurrentStock)
}

func TestMutationInvalidatesReadCaches(t *testing.T) {
	e := newEnv(t, nil)
	item := e.addItem(e.fixtures.Item())

	// prime the caches
	levels, err := e.svc.GetStockLevels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, levels)

	_, err = e.svc.ReceiveStock(context.Background(), e.fixtures.ReceiptDraft(item.ID, 50, 2.5))
	require.NoError(t, err)

	levels, err = e.svc.GetStockLevels(context.Background())
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, 50, levels[0].CurrentStock)
}

func TestDrain_ReplaysDeferredMovements(t *testing.T) {
	var movementPosts atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/v1/inventory/movements" {
			movementPosts.Add(1)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{}})
	})
	e := newEnv(t, handler)
	item := e.addItem(e.fixtures.Item())

	e.client.SetOnline(false)
	_, err := e.svc.ReceiveStock(context.Background(), e.fixtures.ReceiptDraft(item.ID, 50, 2.5))
	require.NoError(t, err)
	_, err = e.svc.RecordMovement(context.Background(), e.fixtures.UsageDraft(item.ID, 10))
	require.NoError(t, err)
	require.Equal(t, 2, e.queue.Depth())
	assert.Equal(t, int32(0), movementPosts.Load())

	e.client.SetOnline(true)
	e.queue.Drain(context.Background())

	assert.Equal(t, int32(2), movementPosts.Load())
	assert.Equal(t, 0, e.queue.Depth())
	assert.Empty(t, e.queue.DeadLetters())
}

func TestHandleExpiredBatch(t *testing.T) {
	e := newEnv(t, nil)
	item := e.addItem(e.fixtures.Item())
	_, err := e.svc.ReceiveStock(context.Background(), e.fixtures.ReceiptDraft(item.ID, 40, 2.5))
	require.NoError(t, err)

	rec, err := e.svc.GetStockLevel(context.Background(), item.ID, "")
	require.NoError(t, err)
	require.Len(t, rec.Batches, 1)
	batchID := rec.Batches[0].ID

	t.Run("unknown action", func(t *testing.T) {
		_, err := e.svc.HandleExpiredBatch(context.Background(), item.ID, "", batchID, "incinerate", "farmhand")
		assert.True(t, errors.Is(err, errors.ErrBadRequest))
	})

	t.Run("dispose unknown batch", func(t *testing.T) {
		_, err := e.svc.HandleExpiredBatch(context.Background(), item.ID, "", "nope", "dispose", "farmhand")
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("dispose drains the lot", func(t *testing.T) {
		result, err := e.svc.HandleExpiredBatch(context.Background(), item.ID, "", batchID, "dispose", "farmhand")
		require.NoError(t, err)
		assert.Equal(t, domain.MovementDisposal, result.Movement.Type)

		rec, err := e.svc.GetStockLevel(context.Background(), item.ID, "")
		require.NoError(t, err)
		assert.Equal(t, 0, rec.CurrentStock)
	})
}

func TestBootstrap_NetworkFailureIsNotFatal(t *testing.T) {
	e := newEnv(t, nil)
	e.srv.Close()

	require.NoError(t, e.svc.Bootstrap(context.Background()))
	assert.False(t, e.client.Online())
}

func TestBootstrap_PopulatesCatalog(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]any{
				{"id": "feed-1", "name": "Cattle Feed", "unit": "kg"},
				{"id": "med-1", "name": "Penicillin", "unit": "vial"},
			},
		})
	})
	e := newEnv(t, handler)

	require.NoError(t, e.svc.Bootstrap(context.Background()))
	items, err := e.svc.GetItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
