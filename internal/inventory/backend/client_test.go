package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/backend"
	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/pkg/config"
	"github.com/farmdash/farmdash-backend/pkg/errors"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(baseURL string) *backend.Client {
	return backend.New(config.BackendConfig{
		BaseURL:        baseURL,
		ProbePath:      "/health",
		RequestTimeout: 2 * time.Second,
	}, logger.Nop())
}

func TestItems_DecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/items", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]any{
				{"id": "feed-1", "name": "Cattle Feed", "unit": "kg", "minimum_stock": 20},
				{"id": "med-1", "name": "Penicillin", "unit": "vial"},
			},
		})
	}))
	defer srv.Close()

	items, err := newClient(srv.URL).Items(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "feed-1", items[0].ID)
	assert.Equal(t, "Cattle Feed", items[0].Name)
	assert.Equal(t, 20, items[0].MinimumStock)
}

func TestSaveMovement_SendsJSONBody(t *testing.T) {
	var got domain.Movement
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/inventory/movements", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newClient(srv.URL).SaveMovement(context.Background(), &domain.Movement{
		ID:       "mov-1",
		ItemID:   "feed-1",
		Type:     domain.MovementUsage,
		Quantity: -5,
	})
	require.NoError(t, err)
	assert.Equal(t, "mov-1", got.ID)
	assert.Equal(t, -5, got.Quantity)
}

func TestDo_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Item(context.Background(), "nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDo_BadRequestUsesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]string{"code": "VALIDATION_ERROR", "message": "name is required"},
		})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).CreateItem(context.Background(), &domain.Item{})
	require.True(t, errors.Is(err, errors.ErrBadRequest))
	assert.Contains(t, err.Error(), "name is required")
}

func TestDo_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	err := c.SaveMovement(context.Background(), &domain.Movement{ID: "mov-1"})
	assert.True(t, errors.Is(err, errors.ErrServer))
	// the server answered, so the transport is still up
	assert.True(t, c.Online())
}

func TestDo_TransportFailureGoesOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newClient(srv.URL)
	require.True(t, c.Online())

	err := c.SaveMovement(context.Background(), &domain.Movement{ID: "mov-1"})
	assert.True(t, errors.IsNetwork(err))
	assert.False(t, c.Online())
}

func TestDo_SuccessRestoresOnlineFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": []any{}})
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	c.SetOnline(false)

	_, err := c.Items(context.Background())
	require.NoError(t, err)
	assert.True(t, c.Online())
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name   string
		status int
		ok     bool
	}{
		{"healthy backend", http.StatusOK, true},
		{"degraded but reachable", http.StatusNotFound, true},
		{"server failure", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/health", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := newClient(srv.URL)
			assert.Equal(t, tt.ok, c.Probe(context.Background()))
			assert.Equal(t, tt.ok, c.Online())
		})
	}
}

func TestProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newClient(srv.URL)
	assert.False(t, c.Probe(context.Background()))
	assert.False(t, c.Online())
}

func TestResolveAlert_PatchesResolveEndpoint(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
	}))
	defer srv.Close()

	require.NoError(t, newClient(srv.URL).ResolveAlert(context.Background(), "alert-9"))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/v1/inventory/alerts/alert-9/resolve", gotPath)
}
