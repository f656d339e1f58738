package workflow

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medko/receita-core/internal/domain/document"
	"github.com/medko/receita-core/internal/signature"
)

// Verification is the public answer for a scanned QR code. It deliberately
// carries no patient data; the verifier only learns that the document exists
// and whether its signature still matches the content.
type Verification struct {
	DocumentID     string          `json:"documentId"`
	Kind           document.Kind   `json:"documentKind"`
	Status         document.Status `json:"status"`
	Signed         bool            `json:"signed"`
	SignedAt       *time.Time      `json:"signedAt,omitempty"`
	SignatureValid *bool           `json:"signatureValid,omitempty"`
	Message        string          `json:"message"`
	ExpiresAt      *time.Time      `json:"expiresAt,omitempty"`
}

// VerifyDocument resolves a QR verification link. The id may belong to a
// prescription or a certificate; both are checked.
func (s *Service) VerifyDocument(ctx context.Context, id string) (*Verification, error) {
	ctx, span := s.tracer.Start(ctx, "verify_document",
		trace.WithAttributes(attribute.String("document_id", id)))
	defer span.End()

	if p, err := s.store.FindPrescription(ctx, id); err == nil {
		payload, perr := p.SigningPayload()
		if perr != nil {
			return nil, perr
		}
		v := &Verification{
			DocumentID: p.ID,
			Kind:       document.KindPrescription,
			Status:     p.Status(),
			Signed:     p.Assinado,
			ExpiresAt:  &p.DataValidade,
		}
		s.fillSignature(v, payload, p.Assinatura)
		return v, nil
	} else if !errors.Is(err, document.ErrNotFound) {
		span.RecordError(err)
		return nil, err
	}

	c, err := s.store.FindCertificate(ctx, id)
	if err != nil {
		if !errors.Is(err, document.ErrNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}

	payload, perr := c.SigningPayload()
	if perr != nil {
		return nil, perr
	}
	v := &Verification{
		DocumentID: c.ID,
		Kind:       document.KindCertificate,
		Status:     c.Status(),
		Signed:     c.Assinado,
	}
	s.fillSignature(v, payload, c.Assinatura)
	return v, nil
}

func (s *Service) fillSignature(v *Verification, payload string, rec *signature.Record) {
	if rec == nil {
		v.Message = "Documento ainda não assinado digitalmente"
		return
	}
	v.SignedAt = &rec.Timestamp
	result := s.signer.Verify(payload, *rec)
	v.SignatureValid = &result.Valid
	v.Message = result.Message
}
