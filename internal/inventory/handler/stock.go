package handler

import (
	"net/http"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/service"
	"github.com/farmdash/farmdash-backend/pkg/actor"
	"github.com/farmdash/farmdash-backend/pkg/httputil"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// StockHandler handles stock level and movement endpoints
type StockHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.InventoryService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// Levels lists stock records for all items and locations
func (h *StockHandler) Levels(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.GetStockLevels(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, records)
}

// Level returns one item's stock record
func (h *StockHandler) Level(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	locationID := r.URL.Query().Get("location")

	rec, err := h.service.GetStockLevel(r.Context(), itemID, locationID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

type updateStockLevelRequest struct {
	CountedQuantity int    `json:"counted_quantity" validate:"min=0"`
	Reason          string `json:"reason"`
}

// UpdateLevel reconciles a physical count for an item
func (h *StockHandler) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	var req updateStockLevelRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.UpdateStockLevel(r.Context(), itemID, req.CountedQuantity, req.Reason, actorFrom(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respondMutation(w, result)
}

// RecordMovement records an arbitrary stock movement
func (h *StockHandler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var draft domain.MovementDraft
	if err := httputil.DecodeJSON(r, &draft); err != nil {
		httputil.Error(w, err)
		return
	}
	if draft.PerformedBy == "" {
		draft.PerformedBy = actorFrom(r)
	}

	result, err := h.service.RecordMovement(r.Context(), &draft)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respondMutation(w, result)
}

// Movements lists the movement journal
func (h *StockHandler) Movements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.GetMovements(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, movements, &httputil.Meta{Total: int64(len(movements))})
}

type reverseMovementRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ReverseMovement reverses a completed movement
func (h *StockHandler) ReverseMovement(w http.ResponseWriter, r *http.Request) {
	movementID := chi.URLParam(r, "id")

	var req reverseMovementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.ReverseMovement(r.Context(), movementID, req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respondMutation(w, result)
}

type useItemRequest struct {
	ItemID      string `json:"item_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	ReferenceID string `json:"reference_id"`
}

// UseForTreatment draws stock for a treatment
func (h *StockHandler) UseForTreatment(w http.ResponseWriter, r *http.Request) {
	var req useItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.UseItemForTreatment(r.Context(), req.ItemID, req.Quantity, req.ReferenceID, actorFrom(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respondMutation(w, result)
}

// UseForVaccination draws stock for a vaccination round
func (h *StockHandler) UseForVaccination(w http.ResponseWriter, r *http.Request) {
	var req useItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.UseItemForVaccination(r.Context(), req.ItemID, req.Quantity, req.ReferenceID, actorFrom(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respondMutation(w, result)
}

type transferRequest struct {
	ItemID       string `json:"item_id" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
	FromLocation string `json:"from_location" validate:"required"`
	ToLocation   string `json:"to_location" validate:"required"`
}

// Transfer moves stock between locations
func (h *StockHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.TransferStock(r.Context(), req.ItemID, req.Quantity, req.FromLocation, req.ToLocation, actorFrom(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respondMutation(w, result)
}

// ReceiveStock records an incoming lot
func (h *StockHandler) ReceiveStock(w http.ResponseWriter, r *http.Request) {
	var draft domain.MovementDraft
	if err := httputil.DecodeJSON(r, &draft); err != nil {
		httputil.Error(w, err)
		return
	}
	if draft.PerformedBy == "" {
		draft.PerformedBy = actorFrom(r)
	}

	result, err := h.service.ReceiveStock(r.Context(), &draft)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	respondMutation(w, result)
}

func respondMutation(w http.ResponseWriter, result *service.MutationResult) {
	if result.Deferred() {
		httputil.Deferred(w, result)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

func actorFrom(r *http.Request) string {
	if a := actor.FromContext(r.Context()); a != nil {
		return a.ID
	}
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return actor.SystemActor().ID
}
