package geo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/geo"
	"github.com/farmdash/farmdash-backend/pkg/config"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocator(baseURL string) *geo.HTTPLocator {
	return geo.NewHTTPLocator(config.GeoConfig{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
	}, logger.Nop())
}

func TestNewHTTPLocator_DisabledWithoutBaseURL(t *testing.T) {
	assert.Nil(t, geo.NewHTTPLocator(config.GeoConfig{}, logger.Nop()))
}

func TestLocate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/position", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"latitude":  46.0569,
			"longitude": 14.5058,
			"accuracy":  12.5,
		})
	}))
	defer srv.Close()

	fix, err := newLocator(srv.URL).Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 46.0569, fix.Latitude)
	assert.Equal(t, 14.5058, fix.Longitude)
	// provider sent no timestamp, so the locator stamps one
	assert.False(t, fix.RecordedAt.IsZero())
}

func TestLocate_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"forbidden", http.StatusForbidden, geo.ErrPermissionDenied},
		{"unauthorized", http.StatusUnauthorized, geo.ErrPermissionDenied},
		{"request timeout", http.StatusRequestTimeout, geo.ErrTimeout},
		{"gateway timeout", http.StatusGatewayTimeout, geo.ErrTimeout},
		{"provider error", http.StatusInternalServerError, geo.ErrNoFix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newLocator(srv.URL).Locate(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLocate_UnreachableProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newLocator(srv.URL).Locate(context.Background())
	assert.ErrorIs(t, err, geo.ErrNoFix)
}
