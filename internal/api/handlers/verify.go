package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medko/receita-core/internal/domain/document"
	"github.com/medko/receita-core/internal/workflow"
)

// VerifyHandler serves the public QR verification endpoint. It is mounted
// outside the authenticated router: anyone holding a printed document may
// check it.
type VerifyHandler struct {
	service *workflow.Service
	logger  *zap.Logger
}

// NewVerifyHandler creates a new handler
func NewVerifyHandler(service *workflow.Service, logger *zap.Logger) *VerifyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerifyHandler{service: service, logger: logger}
}

// Routes returns the handler routes
func (h *VerifyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.Verify)
	return r
}

// Verify handles GET /validar/{id}
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	v, err := h.service.VerifyDocument(ctx, id)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			jsonError(w, "documento não encontrado", http.StatusNotFound)
			return
		}
		h.logger.Error("verify document failed", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
