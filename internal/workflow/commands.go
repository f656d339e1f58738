package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/medko/receita-core/internal/delivery"
	"github.com/medko/receita-core/internal/domain/document"
	"github.com/medko/receita-core/internal/infrastructure/kafka"
)

// CommandAction is the work a document command requests
type CommandAction string

const (
	ActionGeneratePDF CommandAction = "generate_pdf"
	ActionDeliver     CommandAction = "deliver"
)

// ErrUnknownAction is returned for commands the worker does not understand
var ErrUnknownAction = errors.New("unknown command action")

// Command is an asynchronous work request carried on the commands topic. It
// is self-contained: the worker needs no extra lookup to act on it.
type Command struct {
	Action     CommandAction    `json:"action"`
	DocumentID string           `json:"document_id"`
	Kind       document.Kind    `json:"document_kind"`
	Doctor     DoctorInfo       `json:"doctor"`
	Patient    PatientInfo      `json:"patient"`
	Channel    delivery.Channel `json:"channel,omitempty"`
	IssuedAt   time.Time        `json:"issued_at"`
}

// EnqueueCommand publishes a command for the background worker
func (s *Service) EnqueueCommand(ctx context.Context, cmd Command) error {
	if s.producer == nil {
		return errors.New("no command producer configured")
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("serialize command: %w", err)
	}

	if err := s.producer.ProduceMessage(ctx, kafka.TopicDocumentCommands, cmd.DocumentID, payload); err != nil {
		return fmt.Errorf("enqueue command: %w", err)
	}

	if s.metrics != nil {
		s.metrics.KafkaMessagesProduced.Inc()
	}
	return nil
}

// ExecuteCommand runs a consumed command through the pipeline
func (s *Service) ExecuteCommand(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionGeneratePDF:
		switch cmd.Kind {
		case document.KindPrescription:
			_, err := s.GeneratePrescriptionPDF(ctx, cmd.DocumentID, cmd.Doctor, cmd.Patient)
			return err
		case document.KindCertificate:
			_, err := s.GenerateCertificatePDF(ctx, cmd.DocumentID, cmd.Doctor, cmd.Patient)
			return err
		}
		return fmt.Errorf("unknown document kind %q", cmd.Kind)

	case ActionDeliver:
		switch cmd.Kind {
		case document.KindPrescription:
			_, err := s.SendPrescription(ctx, cmd.DocumentID, cmd.Doctor, cmd.Patient, cmd.Channel)
			return err
		case document.KindCertificate:
			_, err := s.SendCertificate(ctx, cmd.DocumentID, cmd.Doctor, cmd.Patient, cmd.Channel)
			return err
		}
		return fmt.Errorf("unknown document kind %q", cmd.Kind)
	}

	return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
}
