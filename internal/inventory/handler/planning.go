package handler

import (
	"net/http"
	"strconv"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/service"
	"github.com/farmdash/farmdash-backend/pkg/httputil"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// PlanningHandler handles expiry, reorder, and dashboard endpoints
type PlanningHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewPlanningHandler creates a new planning handler
func NewPlanningHandler(svc *service.InventoryService, log *logger.Logger) *PlanningHandler {
	return &PlanningHandler{
		service: svc,
		logger:  log,
	}
}

// Expiring lists batches expiring within a window (default 30 days)
func (h *PlanningHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}

	batches, err := h.service.GetExpiringItems(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

type expiredBatchRequest struct {
	ItemID     string `json:"item_id" validate:"required"`
	LocationID string `json:"location_id"`
	Action     string `json:"action" validate:"required,oneof=dispose quarantine"`
}

// HandleExpiredBatch disposes of or quarantines an expired lot
func (h *PlanningHandler) HandleExpiredBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	var req expiredBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.HandleExpiredBatch(r.Context(), req.ItemID, req.LocationID, batchID, req.Action, actorFrom(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respondMutation(w, result)
}

// ReorderSuggestions lists reorder recommendations
func (h *PlanningHandler) ReorderSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.GenerateAutoReorderSuggestions(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, suggestions)
}

// CreatePurchaseOrder submits a purchase order
func (h *PlanningHandler) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var suggestion domain.ReorderSuggestion
	if err := httputil.DecodeJSON(r, &suggestion); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.CreatePurchaseOrder(r.Context(), &suggestion)
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

// Dashboard returns the dashboard summary
func (h *PlanningHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetDashboardSummary(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}
