// Package workflow orchestrates the document pipeline: validation, creation,
// PDF rendering, digital signing, and patient delivery. Handlers and the
// background worker both drive their operations through this service.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medko/receita-core/internal/delivery"
	"github.com/medko/receita-core/internal/domain/document"
	"github.com/medko/receita-core/internal/observability/metrics"
	"github.com/medko/receita-core/internal/pdf"
	"github.com/medko/receita-core/internal/regulatory"
	"github.com/medko/receita-core/internal/signature"
	"github.com/medko/receita-core/internal/storage"
)

// ErrNoPDF is returned when an operation needs a rendered document that does
// not exist yet.
var ErrNoPDF = errors.New("document has no generated pdf")

// ErrDeliveryDisabled is returned when no messaging provider is configured
var ErrDeliveryDisabled = errors.New("delivery is not configured")

// DocumentStore is the persistence surface the workflow depends on,
// implemented by document.Repository.
type DocumentStore interface {
	CreatePrescription(ctx context.Context, p *document.Prescription) error
	GetPrescription(ctx context.Context, id, doctorID string) (*document.Prescription, error)
	ListPrescriptionsByDoctor(ctx context.Context, doctorID string, limit int) ([]*document.Prescription, error)
	AttachPrescriptionPDF(ctx context.Context, p *document.Prescription) error
	SignPrescription(ctx context.Context, p *document.Prescription) error
	FindPrescription(ctx context.Context, id string) (*document.Prescription, error)

	CreateCertificate(ctx context.Context, c *document.Certificate) error
	GetCertificate(ctx context.Context, id, doctorID string) (*document.Certificate, error)
	ListCertificatesByDoctor(ctx context.Context, doctorID string, limit int) ([]*document.Certificate, error)
	AttachCertificatePDF(ctx context.Context, c *document.Certificate) error
	SignCertificate(ctx context.Context, c *document.Certificate) error
	FindCertificate(ctx context.Context, id string) (*document.Certificate, error)
}

// DeliveryRecorder persists delivery attempts, implemented by
// delivery.LogRepository.
type DeliveryRecorder interface {
	Record(ctx context.Context, l *delivery.Log) error
	ListByDocument(ctx context.Context, documentID string) ([]*delivery.Log, error)
}

// CommandProducer enqueues asynchronous document commands, implemented by
// kafka.Producer.
type CommandProducer interface {
	ProduceMessage(ctx context.Context, topic, key string, value []byte) error
}

// DoctorInfo carries the issuing doctor's identity onto rendered documents
// and certificates.
type DoctorInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CRM           string `json:"crm"`
	CRMUF         string `json:"crmUf"`
	Especialidade string `json:"especialidade,omitempty"`
	Endereco      string `json:"endereco,omitempty"`
	Telefone      string `json:"telefone,omitempty"`
}

// PatientInfo carries patient identity and delivery contact
type PatientInfo struct {
	ID             string `json:"id"`
	NomeCompleto   string `json:"nomeCompleto"`
	DataNascimento string `json:"dataNascimento,omitempty"`
	CPF            string `json:"cpf,omitempty"`
	Telefone       string `json:"telefone,omitempty"`
}

// Config holds workflow configuration
type Config struct {
	// ValidationBaseURL is the public base used in QR verification links
	ValidationBaseURL string
	// Watermark is stamped on documents rendered before their mandatory
	// signature is applied
	Watermark string
}

// DefaultConfig returns workflow defaults
func DefaultConfig() Config {
	return Config{
		ValidationBaseURL: "https://medko.com.br",
		Watermark:         "AGUARDANDO ASSINATURA DIGITAL",
	}
}

// Service runs the document pipeline end to end
type Service struct {
	config     Config
	store      DocumentStore
	deliveries DeliveryRecorder
	composer   *pdf.Composer
	objects    storage.ObjectStore
	signer     signature.Signer
	dispatcher *delivery.Dispatcher
	producer   CommandProducer
	metrics    *metrics.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewService creates the workflow service. deliveries, dispatcher, producer,
// and m may be nil; the matching operations then degrade or error out.
func NewService(
	cfg Config,
	store DocumentStore,
	deliveries DeliveryRecorder,
	composer *pdf.Composer,
	objects storage.ObjectStore,
	signer signature.Signer,
	dispatcher *delivery.Dispatcher,
	producer CommandProducer,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ValidationBaseURL == "" {
		cfg.ValidationBaseURL = DefaultConfig().ValidationBaseURL
	}
	return &Service{
		config:     cfg,
		store:      store,
		deliveries: deliveries,
		composer:   composer,
		objects:    objects,
		signer:     signer,
		dispatcher: dispatcher,
		producer:   producer,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("workflow"),
	}
}

// ValidationError wraps a failed composition check so handlers can return the
// full error and warning lists to the caller.
type ValidationError struct {
	Result regulatory.ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("prescription failed validation with %d errors", len(e.Result.Errors))
}

// ValidateMedications checks a medication set against a prescription form
func (s *Service) ValidateMedications(form regulatory.Form, lines []regulatory.MedicationLine) regulatory.ValidationResult {
	result := regulatory.Validate(form, lines)
	if s.metrics != nil {
		s.metrics.ValidationsPerformed.WithLabelValues(fmt.Sprintf("%t", result.Valid)).Inc()
	}
	return result
}

func (s *Service) storePDF(ctx context.Context, key string, data []byte) (string, error) {
	url, err := s.objects.Store(ctx, storage.Object{
		Key:         key,
		ContentType: "application/pdf",
		Data:        data,
	})
	if err != nil {
		return "", fmt.Errorf("store pdf: %w", err)
	}
	return url, nil
}

// recordDelivery logs the attempt; a logging failure is reported but never
// overrides the delivery outcome.
func (s *Service) recordDelivery(ctx context.Context, documentID string, kind document.Kind, channel delivery.Channel, to string, result delivery.SendResult) {
	if s.deliveries == nil {
		return
	}
	if err := s.deliveries.Record(ctx, delivery.NewLog(documentID, kind, channel, to, result)); err != nil {
		s.logger.Error("failed to record delivery attempt",
			zap.String("document_id", documentID),
			zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.DeliveryAttempts.WithLabelValues(string(channel), fmt.Sprintf("%t", result.Success)).Inc()
	}
}

func (s *Service) observeRender(start time.Time) {
	if s.metrics != nil {
		s.metrics.DocumentsRendered.Inc()
		s.metrics.RenderDuration.Observe(time.Since(start).Seconds())
	}
}
