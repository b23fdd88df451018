// Package geo resolves the position a movement was recorded from. Movements
// never fail because a fix is unavailable; callers attach the fix when they
// get one and move on when they don't.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/pkg/config"
	"github.com/farmdash/farmdash-backend/pkg/logger"
)

// Typed failures so callers can distinguish outcomes without string matching
var (
	// ErrNoFix means the provider had no position available
	ErrNoFix = errors.New("no position fix available")
	// ErrPermissionDenied means the provider refused the request
	ErrPermissionDenied = errors.New("position access denied")
	// ErrTimeout means the provider did not answer in time
	ErrTimeout = errors.New("position request timed out")
)

// Locator fetches position fixes from a location provider
type Locator interface {
	Locate(ctx context.Context) (*domain.GeoFix, error)
}

// HTTPLocator calls an HTTP location provider
type HTTPLocator struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPLocator creates a locator backed by an HTTP provider. Returns nil
// when no provider is configured; callers treat a nil Locator as disabled.
func NewHTTPLocator(cfg config.GeoConfig, log *logger.Logger) *HTTPLocator {
	if cfg.BaseURL == "" {
		return nil
	}
	return &HTTPLocator{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     log.WithComponent("geo-locator"),
	}
}

// Locate fetches the current position fix
func (l *HTTPLocator) Locate(ctx context.Context) (*domain.GeoFix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/v1/position", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNoFix
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusUnauthorized:
		return nil, ErrPermissionDenied
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return nil, ErrTimeout
	default:
		return nil, ErrNoFix
	}

	var fix domain.GeoFix
	if err := json.NewDecoder(resp.Body).Decode(&fix); err != nil {
		return nil, fmt.Errorf("failed to decode position: %w", err)
	}
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = time.Now()
	}

	l.logger.Debug().
		Float64("latitude", fix.Latitude).
		Float64("longitude", fix.Longitude).
		Msg("position fix acquired")

	return &fix, nil
}
