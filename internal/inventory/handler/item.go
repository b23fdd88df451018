// Package handler exposes the inventory engine over HTTP. Mutating
// endpoints answer 202 with a pending-operation record when the engine
// deferred the upstream sync.
package handler

import (
	"net/http"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/service"
	"github.com/farmdash/farmdash-backend/pkg/httputil"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// ItemHandler handles item catalog endpoints
type ItemHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.InventoryService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

// List lists catalog items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetItems(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// Create creates a new catalog item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var item domain.Item
	if err := httputil.DecodeJSON(r, &item); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.CreateItem(r.Context(), &item)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if result.Deferred() {
		httputil.Deferred(w, result)
		return
	}
	httputil.Created(w, result)
}

// LookupByBarcode resolves a scanned barcode
func (h *ItemHandler) LookupByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	item, err := h.service.GetItemByBarcode(r.Context(), barcode)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}
