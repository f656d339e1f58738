package workflow

import (
	"context"
	"errors"

	"github.com/medko/receita-core/internal/delivery"
	"github.com/medko/receita-core/internal/domain/document"
)

// Read-side pass-throughs so handlers depend on the workflow surface alone.

// GetPrescription loads a prescription owned by the doctor
func (s *Service) GetPrescription(ctx context.Context, id, doctorID string) (*document.Prescription, error) {
	return s.store.GetPrescription(ctx, id, doctorID)
}

// ListPrescriptions returns the doctor's prescriptions, newest first
func (s *Service) ListPrescriptions(ctx context.Context, doctorID string, limit int) ([]*document.Prescription, error) {
	return s.store.ListPrescriptionsByDoctor(ctx, doctorID, limit)
}

// GetCertificate loads a certificate owned by the doctor
func (s *Service) GetCertificate(ctx context.Context, id, doctorID string) (*document.Certificate, error) {
	return s.store.GetCertificate(ctx, id, doctorID)
}

// ListCertificates returns the doctor's certificates, newest first
func (s *Service) ListCertificates(ctx context.Context, doctorID string, limit int) ([]*document.Certificate, error) {
	return s.store.ListCertificatesByDoctor(ctx, doctorID, limit)
}

// ListDeliveries returns the delivery history of a document
func (s *Service) ListDeliveries(ctx context.Context, documentID string) ([]*delivery.Log, error) {
	if s.deliveries == nil {
		return nil, nil
	}
	return s.deliveries.ListByDocument(ctx, documentID)
}

// MessageStatus looks up the provider-side status of a sent message
func (s *Service) MessageStatus(ctx context.Context, messageID string) (*delivery.MessageStatus, error) {
	if s.dispatcher == nil {
		return nil, errors.New("no dispatcher configured")
	}
	return s.dispatcher.MessageStatus(ctx, messageID)
}
