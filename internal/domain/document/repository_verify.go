package document

import "context"

// FindPrescription loads a prescription by id regardless of owner. Only the
// public verification surface may use this; everything else goes through the
// doctor-scoped lookups.
func (r *Repository) FindPrescription(ctx context.Context, id string) (*Prescription, error) {
	query := `
		SELECT id, doctor_id, patient_id, form, medicamentos, orientacoes, data_validade,
		       assinado, assinatura, pdf_url, qr_data, created_at, updated_at
		FROM prescriptions
		WHERE id = $1
	`
	return scanPrescription(r.pool.QueryRow(ctx, query, id))
}

// FindCertificate loads a certificate by id regardless of owner
func (r *Repository) FindCertificate(ctx context.Context, id string) (*Certificate, error) {
	query := `
		SELECT id, doctor_id, patient_id, tipo, cid, data_inicio, data_fim, observacoes,
		       assinado, assinatura, pdf_url, qr_data, created_at, updated_at
		FROM certificates
		WHERE id = $1
	`
	return scanCertificate(r.pool.QueryRow(ctx, query, id))
}
