package document

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of document lifecycle event
type EventType string

const (
	EventDocumentCreated      EventType = "DocumentCreated"
	EventDocumentPDFGenerated EventType = "DocumentPDFGenerated"
	EventDocumentSigned       EventType = "DocumentSigned"
	EventDocumentSent         EventType = "DocumentSent"
)

// Kind distinguishes the two document families
type Kind string

const (
	KindPrescription Kind = "prescription"
	KindCertificate  Kind = "certificate"
)

// Event is a document lifecycle event, written to the transactional outbox
// alongside the row mutation and relayed to Kafka for the audit trail and the
// background worker.
type Event struct {
	ID            string          `json:"id"`
	DocumentID    string          `json:"document_id"`
	DocumentKind  Kind            `json:"document_kind"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	DoctorID      string          `json:"doctor_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewEvent creates a lifecycle event
func NewEvent(documentID string, kind Kind, eventType EventType, data interface{}) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:           uuid.New().String(),
		DocumentID:   documentID,
		DocumentKind: kind,
		EventType:    eventType,
		EventData:    eventData,
		Timestamp:    time.Now().UTC(),
	}, nil
}

// WithDoctor sets the audit doctor reference
func (e *Event) WithDoctor(doctorID string) *Event {
	e.DoctorID = doctorID
	return e
}

// DocumentCreatedData is the payload of EventDocumentCreated
type DocumentCreatedData struct {
	DocumentID string `json:"document_id"`
	DoctorID   string `json:"doctor_id"`
	PatientID  string `json:"patient_id"`
	Form       string `json:"form,omitempty"`
	Tipo       string `json:"tipo,omitempty"`
	Lines      int    `json:"lines,omitempty"`
}

// DocumentPDFGeneratedData is the payload of EventDocumentPDFGenerated
type DocumentPDFGeneratedData struct {
	DocumentID string    `json:"document_id"`
	PDFURL     string    `json:"pdf_url"`
	Generated  time.Time `json:"generated_at"`
}

// DocumentSignedData is the payload of EventDocumentSigned
type DocumentSignedData struct {
	DocumentID        string    `json:"document_id"`
	CertificateSerial string    `json:"certificate_serial"`
	SignedAt          time.Time `json:"signed_at"`
}

// DocumentSentData is the payload of EventDocumentSent
type DocumentSentData struct {
	DocumentID string `json:"document_id"`
	Channel    string `json:"channel"`
	Success    bool   `json:"success"`
	MessageID  string `json:"message_id,omitempty"`
	Error      string `json:"error,omitempty"`
}
