package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medko/receita-core/internal/api/middleware"
	"github.com/medko/receita-core/internal/delivery"
	"github.com/medko/receita-core/internal/domain/document"
	"github.com/medko/receita-core/internal/regulatory"
	"github.com/medko/receita-core/internal/workflow"
)

const defaultListLimit = 50

// PrescriptionHandler handles prescription endpoints
type PrescriptionHandler struct {
	service *workflow.Service
	logger  *zap.Logger
}

// NewPrescriptionHandler creates a new handler
func NewPrescriptionHandler(service *workflow.Service, logger *zap.Logger) *PrescriptionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrescriptionHandler{service: service, logger: logger}
}

// Routes returns the handler routes
func (h *PrescriptionHandler) Routes() chi.Router {
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

// PartyInfo is the doctor and patient context sent with document operations.
// The practice front-end owns those records; this service only stores ids.
type PartyInfo struct {
	Doctor  workflow.DoctorInfo  `json:"doctor"`
	Patient workflow.PatientInfo `json:"patient"`
}

func (p *PartyInfo) withDoctorID(doctorID string) {
	if p.Doctor.ID == "" {
		p.Doctor.ID = doctorID
	}
}

// CreatePrescriptionRequest is the request body for creating a prescription
type CreatePrescriptionRequest struct {
	PartyInfo
	Form        regulatory.Form                 `json:"tipoReceituario,omitempty"`
	Medications []document.PrescribedMedication `json:"medicamentos"`
	Orientacoes string                          `json:"orientacoes,omitempty"`
}

// Create handles POST /prescriptions
func (h *PrescriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("prescription-handler")
	ctx, span := tracer.Start(ctx, "create_prescription")
	defer span.End()

	var req CreatePrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.withDoctorID(middleware.GetDoctorID(ctx))
	if req.Doctor.ID != middleware.GetDoctorID(ctx) {
		jsonError(w, "doctor mismatch", http.StatusForbidden)
		return
	}

	p, err := h.service.CreatePrescription(ctx, workflow.CreatePrescriptionInput{
		Doctor:      req.Doctor,
		Patient:     req.Patient,
		Form:        req.Form,
		Medications: req.Medications,
		Orientacoes: req.Orientacoes,
	})
	if err != nil {
		var verr *workflow.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, verr.Result)
			return
		}
		h.logger.Error("create prescription failed", zap.Error(err))
		jsonError(w, "failed to create prescription", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("prescription_id", p.ID))
	h.logger.Info("prescription created via api",
		zap.String("id", p.ID),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusCreated, p)
}

// List handles GET /prescriptions
func (h *PrescriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doctorID := middleware.GetDoctorID(ctx)

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	out, err := h.service.ListPrescriptions(ctx, doctorID, limit)
	if err != nil {
		h.logger.Error("list prescriptions failed", zap.Error(err))
		jsonError(w, "failed to list prescriptions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /prescriptions/{id}
func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	p, err := h.service.GetPrescription(ctx, id, middleware.GetDoctorID(ctx))
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			jsonError(w, "prescription not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get prescription failed", zap.Error(err))
		jsonError(w, "failed to load prescription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GeneratePDF handles POST /prescriptions/{id}/pdf
func (h *PrescriptionHandler) GeneratePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req PartyInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.withDoctorID(middleware.GetDoctorID(ctx))

	p, err := h.service.GeneratePrescriptionPDF(ctx, id, req.Doctor, req.Patient)
	if err != nil {
		h.writeDocumentError(w, "generate prescription pdf", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Sign handles POST /prescriptions/{id}/sign
func (h *PrescriptionHandler) Sign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req PartyInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.withDoctorID(middleware.GetDoctorID(ctx))

	p, err := h.service.SignPrescription(ctx, id, req.Doctor)
	if err != nil {
		h.writeDocumentError(w, "sign prescription", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SendRequest is the request body for delivering a document
type SendRequest struct {
	PartyInfo
	Channel delivery.Channel `json:"channel"`
	// Async enqueues the delivery for the background worker instead of
	// sending inline.
	Async bool `json:"async,omitempty"`
}

// Send handles POST /prescriptions/{id}/send
func (h *PrescriptionHandler) Send(w http.ResponseWriter, r *http.Request) {
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
			Kind:       document.KindPrescription,
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

	result, err := h.service.SendPrescription(ctx, id, req.Doctor, req.Patient, req.Channel)
	if err != nil {
		h.writeDocumentError(w, "send prescription", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Deliveries handles GET /prescriptions/{id}/deliveries
func (h *PrescriptionHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	// Ownership check before exposing the log.
	if _, err := h.service.GetPrescription(ctx, id, middleware.GetDoctorID(ctx)); err != nil {
		h.writeDocumentError(w, "load prescription", err)
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

func (h *PrescriptionHandler) writeDocumentError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound):
		jsonError(w, "prescription not found", http.StatusNotFound)
	case errors.Is(err, document.ErrAlreadySigned):
		jsonError(w, "prescription is already signed", http.StatusConflict)
	case errors.Is(err, workflow.ErrNoPDF):
		jsonError(w, "prescription has no generated pdf", http.StatusConflict)
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
