package delivery

import (
	"context"

	"go.uber.org/zap"

	"github.com/medko/receita-core/pkg/circuitbreaker"
)

// Messenger is the provider-facing surface of the dispatcher
type Messenger interface {
	SendMessage(ctx context.Context, params SendMessageParams) (string, error)
	GetMessageStatus(ctx context.Context, messageID string) (*MessageStatus, error)
}

// SendResult is the outcome of a delivery attempt. Delivery failures are
// reported here, never as an error: a failed send must not fail the
// surrounding document operation.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DocumentDelivery describes a document to send to a patient
type DocumentDelivery struct {
	PatientPhone string
	PatientName  string
	DoctorName   string
	PDFURL       string
	Channel      Channel
}

// Dispatcher sends documents through a Messenger behind a circuit breaker
type Dispatcher struct {
	messenger Messenger
	breaker   *circuitbreaker.CircuitBreaker
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher. The breaker is optional; without one,
// calls go straight to the messenger.
func NewDispatcher(messenger Messenger, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		messenger: messenger,
		breaker:   breaker,
		logger:    logger,
	}
}

// SendPrescription delivers a prescription link to the patient
func (d *Dispatcher) SendPrescription(ctx context.Context, del DocumentDelivery) SendResult {
	msg := prescriptionMessage(del.PatientName, del.DoctorName, del.PDFURL)
	return d.send(ctx, del, msg)
}

// SendCertificate delivers a certificate link to the patient
func (d *Dispatcher) SendCertificate(ctx context.Context, del DocumentDelivery) SendResult {
	msg := certificateMessage(del.PatientName, del.DoctorName, del.PDFURL)
	return d.send(ctx, del, msg)
}

func (d *Dispatcher) send(ctx context.Context, del DocumentDelivery, message string) SendResult {
	params := SendMessageParams{
		To:      del.PatientPhone,
		Message: message,
		Channel: del.Channel,
	}

	var messageID string
	var err error
	if d.breaker != nil {
		var result interface{}
		result, err = d.breaker.Execute(ctx, func() (interface{}, error) {
			return d.messenger.SendMessage(ctx, params)
		})
		if err == nil {
			messageID = result.(string)
		}
	} else {
		messageID, err = d.messenger.SendMessage(ctx, params)
	}

	if err != nil {
		d.logger.Warn("document delivery failed",
			zap.String("channel", string(del.Channel)),
			zap.Error(err))
		return SendResult{Success: false, Error: err.Error()}
	}

	return SendResult{Success: true, MessageID: messageID}
}

// MessageStatus looks up the provider-side status of a sent message
func (d *Dispatcher) MessageStatus(ctx context.Context, messageID string) (*MessageStatus, error) {
	return d.messenger.GetMessageStatus(ctx, messageID)
}
