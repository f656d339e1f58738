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
	"github.com/medko/receita-core/internal/regulatory"
	"github.com/medko/receita-core/internal/signature"
)

// CreatePrescriptionInput is the full input for issuing a prescription
type CreatePrescriptionInput struct {
	Doctor      DoctorInfo
	Patient     PatientInfo
	Form        regulatory.Form // derived from the tarjas when empty
	Medications []document.PrescribedMedication
	Orientacoes string
}

// CreatePrescription validates the medication set and persists a new
// prescription. Composition failures come back as *ValidationError.
func (s *Service) CreatePrescription(ctx context.Context, input CreatePrescriptionInput) (*document.Prescription, error) {
	ctx, span := s.tracer.Start(ctx, "create_prescription",
		trace.WithAttributes(attribute.String("doctor_id", input.Doctor.ID)))
	defer span.End()

	lines := document.ValidationLines(input.Medications)

	form := input.Form
	if form == "" {
		form = regulatory.MostRestrictive(lines)
	}

	result := s.ValidateMedications(form, lines)
	if !result.Valid {
		span.SetAttributes(attribute.Int("validation_errors", len(result.Errors)))
		return nil, &ValidationError{Result: result}
	}

	p, err := document.NewPrescription(input.Doctor.ID, input.Patient.ID, form, input.Medications, input.Orientacoes)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreatePrescription(ctx, p); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DocumentsCreated.WithLabelValues(string(document.KindPrescription)).Inc()
	}
	return p, nil
}

func medicationItems(meds []document.PrescribedMedication) []pdf.MedicationItem {
	items := make([]pdf.MedicationItem, len(meds))
	for i, m := range meds {
		items[i] = pdf.MedicationItem{
			NomeProduto:  m.NomeProduto,
			Apresentacao: m.Apresentacao,
			Dose:         m.Dose,
			Frequencia:   m.Frequencia,
			Duracao:      m.Duracao,
			Orientacoes:  m.Orientacoes,
		}
	}
	return items
}

// GeneratePrescriptionPDF renders the prescription, stores the PDF, and
// persists its URL and QR payload. Safe to repeat; a signed prescription gets
// a fresh rendering that includes the signature block.
func (s *Service) GeneratePrescriptionPDF(ctx context.Context, id string, doctor DoctorInfo, patient PatientInfo) (*document.Prescription, error) {
	ctx, span := s.tracer.Start(ctx, "generate_prescription_pdf",
		trace.WithAttributes(attribute.String("prescription_id", id)))
	defer span.End()

	p, err := s.store.GetPrescription(ctx, id, doctor.ID)
	if err != nil {
		return nil, err
	}

	qrData := pdf.BuildQRData(s.config.ValidationBaseURL, p.ID, doctor.ID, time.Now().UTC())

	data := pdf.PrescriptionData{
		Form:        p.Form,
		Doctor:      pdfDoctor(doctor),
		Patient:     pdfPatient(patient),
		Medications: medicationItems(p.Medicamentos),
		Orientacoes: p.Orientacoes,
		IssuedAt:    p.CreatedAt,
		ExpiresAt:   p.DataValidade,
		Signed:      p.Assinado,
		QRData:      qrData,
	}
	if p.Assinatura != nil {
		data.SignedAt = &p.Assinatura.Timestamp
	}
	if !p.Assinado && regulatory.RequiresDigitalSignature(p.Form) {
		data.Watermark = s.config.Watermark
	}

	start := time.Now()
	rendered, err := s.composer.RenderPrescription(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("render prescription: %w", err)
	}
	s.observeRender(start)

	url, err := s.storePDF(ctx, fmt.Sprintf("prescriptions/%s.pdf", p.ID), rendered)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	p.AttachPDF(url, qrData)
	if err := s.store.AttachPrescriptionPDF(ctx, p); err != nil {
		// The stored object is orphaned; the next successful run overwrites
		// the same key.
		s.logger.Warn("pdf stored but not linked",
			zap.String("prescription_id", p.ID),
			zap.String("url", url),
			zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	return p, nil
}

// SignPrescription applies the doctor's digital signature over the
// prescription content.
func (s *Service) SignPrescription(ctx context.Context, id string, doctor DoctorInfo) (*document.Prescription, error) {
	ctx, span := s.tracer.Start(ctx, "sign_prescription",
		trace.WithAttributes(attribute.String("prescription_id", id)))
	defer span.End()

	p, err := s.store.GetPrescription(ctx, id, doctor.ID)
	if err != nil {
		return nil, err
	}

	payload, err := p.SigningPayload()
	if err != nil {
		return nil, err
	}

	cert := signature.CertificateInfoFor(doctor.Name, doctor.CRM, doctor.CRMUF)
	rec, err := s.signer.Sign(payload, cert)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sign prescription: %w", err)
	}

	if err := p.ApplySignature(rec); err != nil {
		return nil, err
	}
	if err := s.store.SignPrescription(ctx, p); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DocumentsSigned.Inc()
	}
	s.logger.Info("prescription signed",
		zap.String("prescription_id", p.ID),
		zap.String("certificate_serial", rec.CertificateSerial))
	return p, nil
}

// SendPrescription delivers the rendered prescription to the patient. The
// returned SendResult carries delivery failures; the error return is for
// pipeline problems such as a missing PDF.
func (s *Service) SendPrescription(ctx context.Context, id string, doctor DoctorInfo, patient PatientInfo, channel delivery.Channel) (delivery.SendResult, error) {
	ctx, span := s.tracer.Start(ctx, "send_prescription",
		trace.WithAttributes(
			attribute.String("prescription_id", id),
			attribute.String("channel", string(channel)),
		))
	defer span.End()

	if s.dispatcher == nil {
		return delivery.SendResult{}, ErrDeliveryDisabled
	}
	p, err := s.store.GetPrescription(ctx, id, doctor.ID)
	if err != nil {
		return delivery.SendResult{}, err
	}
	if p.PDFURL == "" {
		return delivery.SendResult{}, ErrNoPDF
	}

	result := s.dispatcher.SendPrescription(ctx, delivery.DocumentDelivery{
		PatientPhone: patient.Telefone,
		PatientName:  patient.NomeCompleto,
		DoctorName:   doctor.Name,
		PDFURL:       p.PDFURL,
		Channel:      channel,
	})

	s.recordDelivery(ctx, p.ID, document.KindPrescription, channel, patient.Telefone, result)
	return result, nil
}

func pdfDoctor(d DoctorInfo) pdf.Doctor {
	return pdf.Doctor{
		Name:          d.Name,
		CRM:           d.CRM,
		CRMUF:         d.CRMUF,
		Especialidade: d.Especialidade,
		Endereco:      d.Endereco,
		Telefone:      d.Telefone,
	}
}

func pdfPatient(p PatientInfo) pdf.Patient {
	return pdf.Patient{
		NomeCompleto:   p.NomeCompleto,
		DataNascimento: p.DataNascimento,
		CPF:            p.CPF,
	}
}
