package handler

import (
	"net/http"

	"github.com/farmdash/farmdash-backend/internal/inventory/backend"
	"github.com/farmdash/farmdash-backend/internal/inventory/offline"
	"github.com/farmdash/farmdash-backend/pkg/httputil"
	"github.com/farmdash/farmdash-backend/pkg/logger"
)

// SyncHandler exposes offline queue state and manual drain
type SyncHandler struct {
	queue   *offline.Queue
	backend *backend.Client
	logger  *logger.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(queue *offline.Queue, client *backend.Client, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		queue:   queue,
		backend: client,
		logger:  log,
	}
}

type syncStatus struct {
	Online      bool                  `json:"online"`
	QueueDepth  int                   `json:"queue_depth"`
	Pending     interface{}           `json:"pending"`
	DeadLetters []*offline.DeadLetter `json:"dead_letters"`
}

// Status reports connectivity and queue state
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, &syncStatus{
		Online:      h.backend.Online(),
		QueueDepth:  h.queue.Depth(),
		Pending:     h.queue.Pending(),
		DeadLetters: h.queue.DeadLetters(),
	})
}

// Drain triggers an immediate replay attempt
func (h *SyncHandler) Drain(w http.ResponseWriter, r *http.Request) {
	h.queue.Drain(r.Context())

	httputil.JSON(w, http.StatusOK, map[string]int{
		"queue_depth": h.queue.Depth(),
	})
}
