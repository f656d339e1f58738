package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CreateCertificate inserts a new certificate and its creation event
func (r *Repository) CreateCertificate(ctx context.Context, c *Certificate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO certificates
		(id, doctor_id, patient_id, tipo, cid, data_inicio, data_fim, observacoes, assinado, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $10)
	`
	if _, err := tx.Exec(ctx, query,
		c.ID, c.DoctorID, c.PatientID, string(c.Tipo), c.CID,
		c.DataInicio, c.DataFim, c.Observacoes, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}

	event, err := NewEvent(c.ID, KindCertificate, EventDocumentCreated, &DocumentCreatedData{
		DocumentID: c.ID,
		DoctorID:   c.DoctorID,
		PatientID:  c.PatientID,
		Tipo:       string(c.Tipo),
	})
	if err != nil {
		return err
	}
	if err := r.writeEvent(ctx, tx, event.WithDoctor(c.DoctorID)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Info("certificate created",
		zap.String("id", c.ID),
		zap.String("tipo", string(c.Tipo)),
	)
	return nil
}

// GetCertificate loads a certificate owned by the given doctor
func (r *Repository) GetCertificate(ctx context.Context, id, doctorID string) (*Certificate, error) {
	query := `
		SELECT id, doctor_id, patient_id, tipo, cid, data_inicio, data_fim, observacoes,
		       assinado, assinatura, pdf_url, qr_data, created_at, updated_at
		FROM certificates
		WHERE id = $1 AND doctor_id = $2
	`
	return scanCertificate(r.pool.QueryRow(ctx, query, id, doctorID))
}

// ListCertificatesByDoctor returns the doctor's certificates, newest first
func (r *Repository) ListCertificatesByDoctor(ctx context.Context, doctorID string, limit int) ([]*Certificate, error) {
	query := `
		SELECT id, doctor_id, patient_id, tipo, cid, data_inicio, data_fim, observacoes,
		       assinado, assinatura, pdf_url, qr_data, created_at, updated_at
		FROM certificates
		WHERE doctor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, doctorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AttachCertificatePDF persists the generated PDF URL and QR payload
func (r *Repository) AttachCertificatePDF(ctx context.Context, c *Certificate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE certificates
		SET pdf_url = $1, qr_data = $2, updated_at = $3
		WHERE id = $4 AND doctor_id = $5
	`
	tag, err := tx.Exec(ctx, query, c.PDFURL, c.QRData, c.UpdatedAt, c.ID, c.DoctorID)
	if err != nil {
		return fmt.Errorf("update certificate pdf: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	event, err := NewEvent(c.ID, KindCertificate, EventDocumentPDFGenerated, &DocumentPDFGeneratedData{
		DocumentID: c.ID,
		PDFURL:     c.PDFURL,
		Generated:  c.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if err := r.writeEvent(ctx, tx, event.WithDoctor(c.DoctorID)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SignCertificate persists the signature record with the same assinado guard
// used for prescriptions.
func (r *Repository) SignCertificate(ctx context.Context, c *Certificate) error {
	sig, err := json.Marshal(c.Assinatura)
	if err != nil {
		return fmt.Errorf("serialize signature: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE certificates
		SET assinado = TRUE, assinatura = $1, updated_at = $2
		WHERE id = $3 AND doctor_id = $4 AND assinado = FALSE
	`
	tag, err := tx.Exec(ctx, query, sig, c.UpdatedAt, c.ID, c.DoctorID)
	if err != nil {
		return fmt.Errorf("update certificate signature: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetCertificate(ctx, c.ID, c.DoctorID); getErr != nil {
			return getErr
		}
		return ErrAlreadySigned
	}

	event, err := NewEvent(c.ID, KindCertificate, EventDocumentSigned, &DocumentSignedData{
		DocumentID:        c.ID,
		CertificateSerial: c.Assinatura.CertificateSerial,
		SignedAt:          c.Assinatura.Timestamp,
	})
	if err != nil {
		return err
	}
	if err := r.writeEvent(ctx, tx, event.WithDoctor(c.DoctorID)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanCertificate(row pgx.Row) (*Certificate, error) {
	c := &Certificate{}
	var tipo string
	var sig []byte
	var cid, observacoes, pdfURL, qrData *string

	err := row.Scan(
		&c.ID, &c.DoctorID, &c.PatientID, &tipo, &cid, &c.DataInicio, &c.DataFim,
		&observacoes, &c.Assinado, &sig, &pdfURL, &qrData, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan certificate: %w", err)
	}

	c.Tipo = CertificateTipo(tipo)
	if len(sig) > 0 {
		if err := json.Unmarshal(sig, &c.Assinatura); err != nil {
			return nil, fmt.Errorf("deserialize signature: %w", err)
		}
	}
	if cid != nil {
		c.CID = *cid
	}
	if observacoes != nil {
		c.Observacoes = *observacoes
	}
	if pdfURL != nil {
		c.PDFURL = *pdfURL
	}
	if qrData != nil {
		c.QRData = *qrData
	}
	return c, nil
}
