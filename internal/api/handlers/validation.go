// Package handlers provides HTTP handlers for the document API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medko/receita-core/internal/regulatory"
	"github.com/medko/receita-core/internal/workflow"
)

// ValidationHandler exposes the classifier and composition validator without
// creating anything. The practice front-end uses it for live feedback while
// the doctor assembles a prescription.
type ValidationHandler struct {
	service *workflow.Service
	logger  *zap.Logger
}

// NewValidationHandler creates a new handler
func NewValidationHandler(service *workflow.Service, logger *zap.Logger) *ValidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidationHandler{service: service, logger: logger}
}

// Routes returns the handler routes
func (h *ValidationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Validate)
	r.Post("/classify", h.Classify)
	r.Get("/forms", h.Forms)
	return r
}

// ValidateRequest is the request body for a validation check
type ValidateRequest struct {
	Form        regulatory.Form            `json:"tipoReceituario,omitempty"`
	Medications []regulatory.MedicationLine `json:"medicamentos"`
}

// ValidateResponse carries the validation outcome plus the form it ran against
type ValidateResponse struct {
	Form regulatory.Form `json:"tipoReceituario"`
	regulatory.ValidationResult
}

// Validate handles POST /validation
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Medications) == 0 {
		jsonError(w, "medicamentos is required", http.StatusBadRequest)
		return
	}

	form := req.Form
	if form == "" {
		form = regulatory.MostRestrictive(req.Medications)
	} else if !form.IsValid() {
		jsonError(w, "unknown tipoReceituario", http.StatusBadRequest)
		return
	}

	result := h.service.ValidateMedications(form, req.Medications)

	writeJSON(w, http.StatusOK, ValidateResponse{Form: form, ValidationResult: result})
}

// ClassifyRequest is the request body for a tarja classification
type ClassifyRequest struct {
	Tarja string `json:"tarja"`
}

// Classify handles POST /validation/classify
func (h *ValidationHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	form := regulatory.Classify(req.Tarja)
	writeJSON(w, http.StatusOK, map[string]string{
		"tarja":           req.Tarja,
		"tipoReceituario": string(form),
		"descricao":       regulatory.Describe(form),
	})
}

// Forms handles GET /validation/forms
func (h *ValidationHandler) Forms(w http.ResponseWriter, r *http.Request) {
	type formInfo struct {
		Form              regulatory.Form `json:"tipoReceituario"`
		Descricao         string          `json:"descricao"`
		RequiresSignature bool            `json:"exigeAssinaturaDigital"`
	}

	out := make([]formInfo, 0, len(regulatory.Forms))
	for _, f := range regulatory.Forms {
		out = append(out, formInfo{
			Form:              f,
			Descricao:         regulatory.Describe(f),
			RequiresSignature: regulatory.RequiresDigitalSignature(f),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}
