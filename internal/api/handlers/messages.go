package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medko/receita-core/internal/workflow"
)

// MessageHandler exposes provider-side delivery status lookups
type MessageHandler struct {
	service *workflow.Service
	logger  *zap.Logger
}

// NewMessageHandler creates a new handler
func NewMessageHandler(service *workflow.Service, logger *zap.Logger) *MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageHandler{service: service, logger: logger}
}

// Routes returns the handler routes
func (h *MessageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{messageID}/status", h.Status)
	return r
}

// Status handles GET /messages/{messageID}/status
func (h *MessageHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := chi.URLParam(r, "messageID")

	status, err := h.service.MessageStatus(ctx, messageID)
	if err != nil {
		h.logger.Warn("message status lookup failed",
			zap.String("message_id", messageID),
			zap.Error(err))
		jsonError(w, "failed to look up message status", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
