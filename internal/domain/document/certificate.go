package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medko/receita-core/internal/signature"
)

// CertificateTipo is the kind of medical certificate
type CertificateTipo string

const (
	TipoComparecimento CertificateTipo = "comparecimento"
	TipoAfastamento    CertificateTipo = "afastamento"
	TipoObito          CertificateTipo = "obito"
)

// ErrMissingLeavePeriod is returned when an afastamento certificate is
// created without its date range.
var ErrMissingLeavePeriod = errors.New("afastamento certificate requires start and end dates")

// Certificate is a persisted medical certificate (atestado), structurally
// parallel to Prescription and sharing its lifecycle.
type Certificate struct {
	ID          string            `json:"id"`
	DoctorID    string            `json:"doctorId"`
	PatientID   string            `json:"patientId"`
	Tipo        CertificateTipo   `json:"tipo"`
	CID         string            `json:"cid,omitempty"`
	DataInicio  *time.Time        `json:"dataInicio,omitempty"`
	DataFim     *time.Time        `json:"dataFim,omitempty"`
	Observacoes string            `json:"observacoes,omitempty"`
	Assinado    bool              `json:"assinado"`
	Assinatura  *signature.Record `json:"assinatura,omitempty"`
	PDFURL      string            `json:"pdfUrl,omitempty"`
	QRData      string            `json:"qrCodeData,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// NewCertificate creates an unsigned certificate. Afastamento certificates
// must carry their leave period.
func NewCertificate(doctorID, patientID string, tipo CertificateTipo, cid string, inicio, fim *time.Time, observacoes string) (*Certificate, error) {
	switch tipo {
	case TipoComparecimento, TipoAfastamento, TipoObito:
	default:
		return nil, fmt.Errorf("unknown certificate tipo %q", tipo)
	}
	if tipo == TipoAfastamento && (inicio == nil || fim == nil) {
		return nil, ErrMissingLeavePeriod
	}

	now := time.Now().UTC()
	return &Certificate{
		ID:          uuid.New().String(),
		DoctorID:    doctorID,
		PatientID:   patientID,
		Tipo:        tipo,
		CID:         cid,
		DataInicio:  inicio,
		DataFim:     fim,
		Observacoes: observacoes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Status derives the lifecycle state from the record fields
func (c *Certificate) Status() Status {
	switch {
	case c.Assinado:
		return StatusSigned
	case c.PDFURL != "":
		return StatusPDFGenerated
	default:
		return StatusCreated
	}
}

// SigningPayload returns the canonical serialized certificate content
func (c *Certificate) SigningPayload() (string, error) {
	content := struct {
		Tipo        CertificateTipo `json:"tipo"`
		CID         string          `json:"cid,omitempty"`
		DataInicio  *time.Time      `json:"dataInicio,omitempty"`
		DataFim     *time.Time      `json:"dataFim,omitempty"`
		Observacoes string          `json:"observacoes,omitempty"`
	}{c.Tipo, c.CID, c.DataInicio, c.DataFim, c.Observacoes}

	data, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("serialize certificate content: %w", err)
	}
	return string(data), nil
}

// AttachPDF records a generated PDF URL and its QR payload
func (c *Certificate) AttachPDF(url, qrData string) {
	c.PDFURL = url
	c.QRData = qrData
	c.UpdatedAt = time.Now().UTC()
}

// ApplySignature marks the certificate signed; no re-sign transition exists
func (c *Certificate) ApplySignature(rec signature.Record) error {
	if c.Assinado {
		return ErrAlreadySigned
	}
	c.Assinado = true
	c.Assinatura = &rec
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Numero returns the short human-readable certificate number printed on the
// document, derived from the record id.
func (c *Certificate) Numero() string {
	if len(c.ID) >= 8 {
		return c.ID[:8]
	}
	return c.ID
}
