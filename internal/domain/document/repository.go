package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medko/receita-core/internal/infrastructure/kafka"
	"github.com/medko/receita-core/internal/infrastructure/postgres"
	"github.com/medko/receita-core/internal/regulatory"
)

// Repository persists prescriptions and certificates. All lookups are scoped
// by the owning doctor id; a row owned by another doctor behaves exactly like
// a missing row. Lifecycle events are written to the transactional outbox in
// the same transaction as the row mutation.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger}
}

func (r *Repository) writeEvent(ctx context.Context, tx pgx.Tx, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}
	entry := &postgres.OutboxEntry{
		AggregateID:   event.DocumentID,
		AggregateType: string(event.DocumentKind),
		EventType:     string(event.EventType),
		Payload:       payload,
		KafkaTopic:    kafka.TopicDocumentEvents,
		KafkaKey:      event.DocumentID,
	}
	if err := postgres.WriteEntry(ctx, tx, entry); err != nil {
		return err
	}

	// Signatures are mirrored to the long-retention audit topic.
	if event.EventType == EventDocumentSigned {
		audit := *entry
		audit.ID = 0
		audit.KafkaTopic = kafka.TopicAuditTrail
		return postgres.WriteEntry(ctx, tx, &audit)
	}
	return nil
}

// CreatePrescription inserts a new prescription and its creation event
func (r *Repository) CreatePrescription(ctx context.Context, p *Prescription) error {
	meds, err := json.Marshal(p.Medicamentos)
	if err != nil {
		return fmt.Errorf("serialize medications: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO prescriptions
		(id, doctor_id, patient_id, form, medicamentos, orientacoes, data_validade, assinado, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9)
	`
	if _, err := tx.Exec(ctx, query,
		p.ID, p.DoctorID, p.PatientID, string(p.Form), meds,
		p.Orientacoes, p.DataValidade, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}

	event, err := NewEvent(p.ID, KindPrescription, EventDocumentCreated, &DocumentCreatedData{
		DocumentID: p.ID,
		DoctorID:   p.DoctorID,
		PatientID:  p.PatientID,
		Form:       string(p.Form),
		Lines:      len(p.Medicamentos),
	})
	if err != nil {
		return err
	}
	if err := r.writeEvent(ctx, tx, event.WithDoctor(p.DoctorID)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Info("prescription created",
		zap.String("id", p.ID),
		zap.String("form", string(p.Form)),
		zap.Int("medications", len(p.Medicamentos)),
	)
	return nil
}

// GetPrescription loads a prescription owned by the given doctor
func (r *Repository) GetPrescription(ctx context.Context, id, doctorID string) (*Prescription, error) {
	query := `
		SELECT id, doctor_id, patient_id, form, medicamentos, orientacoes, data_validade,
		       assinado, assinatura, pdf_url, qr_data, created_at, updated_at
		FROM prescriptions
		WHERE id = $1 AND doctor_id = $2
	`
	return scanPrescription(r.pool.QueryRow(ctx, query, id, doctorID))
}

// ListPrescriptionsByDoctor returns the doctor's prescriptions, newest first
func (r *Repository) ListPrescriptionsByDoctor(ctx context.Context, doctorID string, limit int) ([]*Prescription, error) {
	query := `
		SELECT id, doctor_id, patient_id, form, medicamentos, orientacoes, data_validade,
		       assinado, assinatura, pdf_url, qr_data, created_at, updated_at
		FROM prescriptions
		WHERE doctor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, doctorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AttachPrescriptionPDF persists the generated PDF URL and QR payload
func (r *Repository) AttachPrescriptionPDF(ctx context.Context, p *Prescription) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE prescriptions
		SET pdf_url = $1, qr_data = $2, updated_at = $3
		WHERE id = $4 AND doctor_id = $5
	`
	tag, err := tx.Exec(ctx, query, p.PDFURL, p.QRData, p.UpdatedAt, p.ID, p.DoctorID)
	if err != nil {
		return fmt.Errorf("update prescription pdf: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	event, err := NewEvent(p.ID, KindPrescription, EventDocumentPDFGenerated, &DocumentPDFGeneratedData{
		DocumentID: p.ID,
		PDFURL:     p.PDFURL,
		Generated:  p.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if err := r.writeEvent(ctx, tx, event.WithDoctor(p.DoctorID)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SignPrescription persists the signature record. The assinado guard in the
// WHERE clause is the single-writer protection: a concurrent or repeated sign
// attempt affects zero rows.
func (r *Repository) SignPrescription(ctx context.Context, p *Prescription) error {
	sig, err := json.Marshal(p.Assinatura)
	if err != nil {
		return fmt.Errorf("serialize signature: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE prescriptions
		SET assinado = TRUE, assinatura = $1, updated_at = $2
		WHERE id = $3 AND doctor_id = $4 AND assinado = FALSE
	`
	tag, err := tx.Exec(ctx, query, sig, p.UpdatedAt, p.ID, p.DoctorID)
	if err != nil {
		return fmt.Errorf("update prescription signature: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetPrescription(ctx, p.ID, p.DoctorID); getErr != nil {
			return getErr
		}
		return ErrAlreadySigned
	}

	event, err := NewEvent(p.ID, KindPrescription, EventDocumentSigned, &DocumentSignedData{
		DocumentID:        p.ID,
		CertificateSerial: p.Assinatura.CertificateSerial,
		SignedAt:          p.Assinatura.Timestamp,
	})
	if err != nil {
		return err
	}
	if err := r.writeEvent(ctx, tx, event.WithDoctor(p.DoctorID)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	p := &Prescription{}
	var form string
	var meds []byte
	var sig []byte
	var orientacoes, pdfURL, qrData *string

	err := row.Scan(
		&p.ID, &p.DoctorID, &p.PatientID, &form, &meds, &orientacoes,
		&p.DataValidade, &p.Assinado, &sig, &pdfURL, &qrData,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan prescription: %w", err)
	}

	p.Form = regulatory.Form(form)
	if err := json.Unmarshal(meds, &p.Medicamentos); err != nil {
		return nil, fmt.Errorf("deserialize medications: %w", err)
	}
	if len(sig) > 0 {
		if err := json.Unmarshal(sig, &p.Assinatura); err != nil {
			return nil, fmt.Errorf("deserialize signature: %w", err)
		}
	}
	if orientacoes != nil {
		p.Orientacoes = *orientacoes
	}
	if pdfURL != nil {
		p.PDFURL = *pdfURL
	}
	if qrData != nil {
		p.QRData = *qrData
	}
	return p, nil
}
