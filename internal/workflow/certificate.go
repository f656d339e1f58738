package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medko/receita-core/internal/delivery"
	"github.com/medko/receita-core/internal/domain/document"
	"github.com/medko/receita-core/internal/pdf"
	"github.com/medko/receita-core/internal/signature"
)

// CreateCertificateInput is the full input for issuing a medical certificate
type CreateCertificateInput struct {
	Doctor      DoctorInfo
	Patient     PatientInfo
	Tipo        document.CertificateTipo
	CID         string
	DataInicio  *time.Time
	DataFim     *time.Time
	Observacoes string
}

// CreateCertificate persists a new certificate
func (s *Service) CreateCertificate(ctx context.Context, input CreateCertificateInput) (*document.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "create_certificate",
		trace.WithAttributes(
			attribute.String("doctor_id", input.Doctor.ID),
			attribute.String("tipo", string(input.Tipo)),
		))
	defer span.End()

	c, err := document.NewCertificate(input.Doctor.ID, input.Patient.ID, input.Tipo,
		input.CID, input.DataInicio, input.DataFim, input.Observacoes)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateCertificate(ctx, c); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DocumentsCreated.WithLabelValues(string(document.KindCertificate)).Inc()
	}
	return c, nil
}

// GenerateCertificatePDF renders the certificate, stores the PDF, and
// persists its URL and QR payload.
func (s *Service) GenerateCertificatePDF(ctx context.Context, id string, doctor DoctorInfo, patient PatientInfo) (*document.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "generate_certificate_pdf",
		trace.WithAttributes(attribute.String("certificate_id", id)))
	defer span.End()

	c, err := s.store.GetCertificate(ctx, id, doctor.ID)
	if err != nil {
		return nil, err
	}

	qrData := pdf.BuildQRData(s.config.ValidationBaseURL, c.ID, doctor.ID, time.Now().UTC())

	data := pdf.CertificateData{
		Numero:      c.Numero(),
		Tipo:        string(c.Tipo),
		Doctor:      pdfDoctor(doctor),
		Patient:     pdfPatient(patient),
		CID:         c.CID,
		DataInicio:  c.DataInicio,
		DataFim:     c.DataFim,
		Observacoes: c.Observacoes,
		IssuedAt:    c.CreatedAt,
		Signed:      c.Assinado,
		QRData:      qrData,
	}
	if c.Assinatura != nil {
		data.SignedAt = &c.Assinatura.Timestamp
	}
	if !c.Assinado {
		data.Watermark = s.config.Watermark
	}

	start := time.Now()
	rendered, err := s.composer.RenderCertificate(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	s.observeRender(start)

	url, err := s.storePDF(ctx, fmt.Sprintf("certificates/%s.pdf", c.ID), rendered)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	c.AttachPDF(url, qrData)
	if err := s.store.AttachCertificatePDF(ctx, c); err != nil {
		s.logger.Warn("pdf stored but not linked",
			zap.String("certificate_id", c.ID),
			zap.String("url", url),
			zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	return c, nil
}

// SignCertificate applies the doctor's digital signature over the certificate
// content.
func (s *Service) SignCertificate(ctx context.Context, id string, doctor DoctorInfo) (*document.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "sign_certificate",
		trace.WithAttributes(attribute.String("certificate_id", id)))
	defer span.End()

	c, err := s.store.GetCertificate(ctx, id, doctor.ID)
	if err != nil {
		return nil, err
	}

	payload, err := c.SigningPayload()
	if err != nil {
		return nil, err
	}

	cert := signature.CertificateInfoFor(doctor.Name, doctor.CRM, doctor.CRMUF)
	rec, err := s.signer.Sign(payload, cert)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sign certificate: %w", err)
	}

	if err := c.ApplySignature(rec); err != nil {
		return nil, err
	}
	if err := s.store.SignCertificate(ctx, c); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DocumentsSigned.Inc()
	}
	s.logger.Info("certificate signed",
		zap.String("certificate_id", c.ID),
		zap.String("certificate_serial", rec.CertificateSerial))
	return c, nil
}

// SendCertificate delivers the rendered certificate to the patient
func (s *Service) SendCertificate(ctx context.Context, id string, doctor DoctorInfo, patient PatientInfo, channel delivery.Channel) (delivery.SendResult, error) {
	ctx, span := s.tracer.Start(ctx, "send_certificate",
		trace.WithAttributes(
			attribute.String("certificate_id", id),
			attribute.String("channel", string(channel)),
		))
	defer span.End()

	if s.dispatcher == nil {
		return delivery.SendResult{}, ErrDeliveryDisabled
	}
	c, err := s.store.GetCertificate(ctx, id, doctor.ID)
	if err != nil {
		return delivery.SendResult{}, err
	}
	if c.PDFURL == "" {
		return delivery.SendResult{}, ErrNoPDF
	}

	result := s.dispatcher.SendCertificate(ctx, delivery.DocumentDelivery{
		PatientPhone: patient.Telefone,
		PatientName:  patient.NomeCompleto,
		DoctorName:   doctor.Name,
		PDFURL:       c.PDFURL,
		Channel:      channel,
	})

	s.recordDelivery(ctx, c.ID, document.KindCertificate, channel, patient.Telefone, result)
	return result, nil
}
