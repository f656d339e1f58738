package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medko/receita-core/internal/api/middleware"
	"github.com/medko/receita-core/internal/domain/document"
	"github.com/medko/receita-core/internal/workflow"
)

// CertificateHandler handles medical certificate endpoints
type CertificateHandler struct {
	service *workflow.Service
	logger  *zap.Logger
}

// NewCertificateHandler creates a new handler
func NewCertificateHandler(service *workflow.Service, logger *zap.Logger) *CertificateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateHandler{service: service, logger: logger}
}

// Routes returns the handler routes
func (h *CertificateHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/pdf", h.GeneratePDF)
	r.Post("/{id}/sign", h.Sign)
	r.Post("/{id}/send", h.Send)
	r.Get("/{id}/deliveries", h.Deliveries)
	return r
}

// CreateCertificateRequest is the request body for creating a certificate
type CreateCertificateRequest struct {
	PartyInfo
	Tipo        document.CertificateTipo `json:"tipo"`
	CID         string                   `json:"cid,omitempty"`
	DataInicio  *time.Time               `json:"dataInicio,omitempty"`
	DataFim     *time.Time               `json:"dataFim,omitempty"`
	Observacoes string                   `json:"observacoes,omitempty"`
}

// Create handles POST /certificates
func (h *CertificateHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("certificate-handler")
	ctx, span := tracer.Start(ctx, "create_certificate")
	defer span.End()

	var req CreateCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.withDoctorID(middleware.GetDoctorID(ctx))
	if req.Doctor.ID != middleware.GetDoctorID(ctx) {
		jsonError(w, "doctor mismatch", http.StatusForbidden)
		return
	}

	c, err := h.service.CreateCertificate(ctx, workflow.CreateCertificateInput{
		Doctor:      req.Doctor,
		Patient:     req.Patient,
		Tipo:        req.Tipo,
		CID:         req.CID,
		DataInicio:  req.DataInicio,
		DataFim:     req.DataFim,
		Observacoes: req.Observacoes,
	})
	if err != nil {
		if errors.Is(err, document.ErrMissingLeavePeriod) {
			jsonError(w, "atestado de afastamento exige dataInicio e dataFim", http.StatusBadRequest)
			return
		}
		h.logger.Error("create certificate failed", zap.Error(err))
		jsonError(w, "failed to create certificate", http.StatusBadRequest)
		return
	}

	span.SetAttributes(attribute.String("certificate_id", c.ID))
	writeJSON(w, http.StatusCreated, c)
}

// List handles GET /certificates
func (h *CertificateHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doctorID := middleware.GetDoctorID(ctx)

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	out, err := h.service.ListCertificates(ctx, doctorID, limit)
	if err != nil {
		h.logger.Error("list certificates failed", zap.Error(err))
		jsonError(w, "failed to list certificates", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /certificates/{id}
func (h *CertificateHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	c, err := h.service.GetCertificate(ctx, id, middleware.GetDoctorID(ctx))
	if err != nil {
		h.writeDocumentError(w, "get certificate", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GeneratePDF handles POST /certificates/{id}/pdf
func (h *CertificateHandler) GeneratePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req PartyInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.withDoctorID(middleware.GetDoctorID(ctx))

	c, err := h.service.GenerateCertificatePDF(ctx, id, req.Doctor, req.Patient)
	if err != nil {
		h.writeDocumentError(w, "generate certificate pdf", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Sign handles POST /certificates/{id}/sign
func (h *CertificateHandler) Sign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req PartyInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.withDoctorID(middleware.GetDoctorID(ctx))

	c, err := h.service.SignCertificate(ctx, id, req.Doctor)
	if err != nil {
		h.writeDocumentError(w, "sign certificate", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Send handles POST /certificates/{id}/send
func (h *CertificateHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.withDoctorID(middleware.GetDoctorID(ctx))
	if !req.Channel.IsValid() {
		jsonError(w, "channel must be sms or whatsapp", http.StatusBadRequest)
		return
	}

	if req.Async {
		err := h.service.EnqueueCommand(ctx, workflow.Command{
			Action:     workflow.ActionDeliver,
			DocumentID: id,
			Kind:       document.KindCertificate,
			Doctor:     req.Doctor,
			Patient:    req.Patient,
			Channel:    req.Channel,
		})
		if err != nil {
			h.logger.Error("enqueue delivery failed", zap.Error(err))
			jsonError(w, "failed to enqueue delivery", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "enqueued"})
		return
	}

	result, err := h.service.SendCertificate(ctx, id, req.Doctor, req.Patient, req.Channel)
	if err != nil {
		h.writeDocumentError(w, "send certificate", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Deliveries handles GET /certificates/{id}/deliveries
func (h *CertificateHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if _, err := h.service.GetCertificate(ctx, id, middleware.GetDoctorID(ctx)); err != nil {
		h.writeDocumentError(w, "load certificate", err)
		return
	}

	logs, err := h.service.ListDeliveries(ctx, id)
	if err != nil {
		h.logger.Error("list deliveries failed", zap.Error(err))
		jsonError(w, "failed to list deliveries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *CertificateHandler) writeDocumentError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound):
		jsonError(w, "certificate not found", http.StatusNotFound)
	case errors.Is(err, document.ErrAlreadySigned):
		jsonError(w, "certificate is already signed", http.StatusConflict)
	case errors.Is(err, workflow.ErrNoPDF):
		jsonError(w, "certificate has no generated pdf", http.StatusConflict)
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
