// Package document implements the prescription and certificate records and
// their lifecycle: Created -> PDFGenerated -> Signed. Signed is terminal for
// content; a new document is required for any change after signing. Delivery
// is a side-log, not a lifecycle state.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medko/receita-core/internal/regulatory"
	"github.com/medko/receita-core/internal/signature"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadySigned   = errors.New("document already signed")
	ErrSignedImmutable = errors.New("document content is immutable after signing")
	ErrNoMedications   = errors.New("prescription requires at least one medication")
)

// Status is the derived lifecycle state of a document
type Status string

const (
	StatusCreated      Status = "created"
	StatusPDFGenerated Status = "pdf_generated"
	StatusSigned       Status = "signed"
)

// PrescribedMedication is one medication line on an issued prescription
type PrescribedMedication struct {
	MedicationID string `json:"medicationId,omitempty"`
	Tarja        string `json:"tarja"`
	NomeProduto  string `json:"nomeProduto"`
	Apresentacao string `json:"apresentacao,omitempty"`
	Dose         string `json:"dose"`
	Frequencia   string `json:"frequencia"`
	Duracao      string `json:"duracao"`
	Orientacoes  string `json:"orientacoes,omitempty"`
}

// ValidationLines projects prescribed medications into validator input
func ValidationLines(meds []PrescribedMedication) []regulatory.MedicationLine {
	lines := make([]regulatory.MedicationLine, len(meds))
	for i, m := range meds {
		lines[i] = regulatory.MedicationLine{Tarja: m.Tarja, NomeProduto: m.NomeProduto}
	}
	return lines
}

// Prescription is a persisted prescription record, exclusively owned by the
// issuing doctor. Never deleted; only superseded by new prescriptions.
type Prescription struct {
	ID           string                 `json:"id"`
	DoctorID     string                 `json:"doctorId"`
	PatientID    string                 `json:"patientId"`
	Form         regulatory.Form        `json:"tipoReceituario"`
	Medicamentos []PrescribedMedication `json:"medicamentos"`
	Orientacoes  string                 `json:"orientacoes,omitempty"`
	DataValidade time.Time              `json:"dataValidade"`
	Assinado     bool                   `json:"assinado"`
	Assinatura   *signature.Record      `json:"assinatura,omitempty"`
	PDFURL       string                 `json:"pdfUrl,omitempty"`
	QRData       string                 `json:"qrCodeData,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// NewPrescription creates an unsigned prescription with its expiry computed
// from the issuance instant. Callers validate composition first; this only
// enforces structural invariants.
func NewPrescription(doctorID, patientID string, form regulatory.Form, meds []PrescribedMedication, orientacoes string) (*Prescription, error) {
	if !form.IsValid() {
		return nil, fmt.Errorf("unknown prescription form %q", form)
	}
	if len(meds) == 0 {
		return nil, ErrNoMedications
	}

	now := time.Now().UTC()
	return &Prescription{
		ID:           uuid.New().String(),
		DoctorID:     doctorID,
		PatientID:    patientID,
		Form:         form,
		Medicamentos: meds,
		Orientacoes:  orientacoes,
		DataValidade: regulatory.ComputeExpiry(form, now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Status derives the lifecycle state from the record fields
func (p *Prescription) Status() Status {
	switch {
	case p.Assinado:
		return StatusSigned
	case p.PDFURL != "":
		return StatusPDFGenerated
	default:
		return StatusCreated
	}
}

// SigningPayload returns the canonical serialized medication list. The exact
// bytes hashed at signing time must be reproducible for verification.
func (p *Prescription) SigningPayload() (string, error) {
	data, err := json.Marshal(p.Medicamentos)
	if err != nil {
		return "", fmt.Errorf("serialize medications: %w", err)
	}
	return string(data), nil
}

// AttachPDF records a generated PDF URL and its QR payload. Regeneration is
// allowed even after signing; only content fields are frozen.
func (p *Prescription) AttachPDF(url, qrData string) {
	p.PDFURL = url
	p.QRData = qrData
	p.UpdatedAt = time.Now().UTC()
}

// ApplySignature marks the prescription signed. There is no re-sign
// transition: a signed prescription rejects further signatures.
func (p *Prescription) ApplySignature(rec signature.Record) error {
	if p.Assinado {
		return ErrAlreadySigned
	}
	p.Assinado = true
	p.Assinatura = &rec
	p.UpdatedAt = time.Now().UTC()
	return nil
}
