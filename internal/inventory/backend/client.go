// Package backend is the HTTP client for the authoritative farm-management
// API. Local state is the working copy; this client pushes mutations and
// pulls catalog data, classifying failures so callers can tell transport
// loss from server rejection.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/pkg/config"
	"github.com/farmdash/farmdash-backend/pkg/errors"
	"github.com/farmdash/farmdash-backend/pkg/logger"
)

// Client calls the farm-management backend API
type Client struct {
	baseURL    string
	probePath  string
	httpClient *http.Client
	online     atomic.Bool
	logger     *logger.Logger
}

// New creates a backend client. The client starts online; the connectivity
// monitor and failed calls adjust the flag afterwards.
func New(cfg config.BackendConfig, log *logger.Logger) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		probePath:  cfg.ProbePath,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     log.WithComponent("backend-client"),
	}
	c.online.Store(true)
	return c
}

// Online reports the last observed connectivity state
func (c *Client) Online() bool {
	return c.online.Load()
}

// SetOnline overrides the connectivity flag. Used by the monitor.
func (c *Client) SetOnline(online bool) {
	c.online.Store(online)
}

// envelope matches the backend's {"success": true, "data": ...} wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do executes a request and classifies the outcome. Transport failures mark
// the client offline and come back as network errors so the service layer
// can defer the operation instead of failing it.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var buf *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		buf = bytes.NewBuffer(payload)
	} else {
		buf = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.online.Store(false)
		c.logger.Warn().Err(err).Str("path", path).Msg("backend unreachable")
		return errors.Network(err)
	}
	defer resp.Body.Close()

	c.online.Store(true)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound("resource")
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var env envelope
		json.NewDecoder(resp.Body).Decode(&env)
		msg := fmt.Sprintf("backend rejected %s %s with status %d", method, path, resp.StatusCode)
		if env.Error != nil {
			msg = env.Error.Message
		}
		return errors.BadRequest(msg)
	default:
		c.logger.Error().Int("status", resp.StatusCode).Str("path", path).Msg("backend call failed")
		return errors.Server(resp.StatusCode, fmt.Sprintf("%s %s failed", method, path))
	}
}

// Probe checks backend reachability without side effects
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.probePath, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.online.Store(false)
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode < 500
	c.online.Store(ok)
	return ok
}

// Items fetches the full item catalog
func (c *Client) Items(ctx context.Context) ([]*domain.Item, error) {
	var items []*domain.Item
	if err := c.do(ctx, http.MethodGet, "/api/v1/items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Item fetches one catalog item by ID
func (c *Client) Item(ctx context.Context, itemID string) (*domain.Item, error) {
	var item domain.Item
	if err := c.do(ctx, http.MethodGet, "/api/v1/items/"+itemID, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem registers a new catalog item with the backend
func (c *Client) CreateItem(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	var created domain.Item
	if err := c.do(ctx, http.MethodPost, "/api/v1/items", item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// SaveMovement persists a completed movement with the backend
func (c *Client) SaveMovement(ctx context.Context, m *domain.Movement) error {
	return c.do(ctx, http.MethodPost, "/api/v1/inventory/movements", m, nil)
}

// SaveStockLevel pushes an item's current stock record upstream
func (c *Client) SaveStockLevel(ctx context.Context, rec *domain.StockRecord) error {
	path := fmt.Sprintf("/api/v1/inventory/items/%s/stock", rec.ItemID)
	return c.do(ctx, http.MethodPut, path, rec, nil)
}

// CreatePurchaseOrder submits a purchase order derived from a reorder
// suggestion.
func (c *Client) CreatePurchaseOrder(ctx context.Context, suggestion *domain.ReorderSuggestion) error {
	return c.do(ctx, http.MethodPost, "/api/v1/purchase-orders", suggestion, nil)
}

// CreateAlert records an alert with the backend
func (c *Client) CreateAlert(ctx context.Context, alert *domain.InventoryAlert) error {
	return c.do(ctx, http.MethodPost, "/api/v1/inventory/alerts", alert, nil)
}

// ResolveAlert marks a backend alert resolved
func (c *Client) ResolveAlert(ctx context.Context, alertID string) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/inventory/alerts/"+alertID+"/resolve", nil, nil)
}
