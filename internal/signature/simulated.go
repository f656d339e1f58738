package signature

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SimulatedSigner hashes content and stamps certificate metadata. It performs
// no certificate-chain cryptography and no revocation checks; it exists so the
// pipeline has a complete sign/verify cycle until a real ICP-Brasil provider
// is wired in.
type SimulatedSigner struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSimulatedSigner creates a simulated signer
func NewSimulatedSigner(logger *zap.Logger) *SimulatedSigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedSigner{logger: logger, now: time.Now}
}

// Sign computes the sha256 hash of payload and returns the signature record
func (s *SimulatedSigner) Sign(payload string, cert CertificateInfo) (Record, error) {
	if payload == "" {
		return Record{}, fmt.Errorf("empty payload")
	}

	hash := sha256.Sum256([]byte(payload))

	rec := Record{
		CertificateType:   cert.Type,
		CertificateCN:     cert.CN,
		CertificateSerial: cert.Serial,
		SignatureHash:     hex.EncodeToString(hash[:]),
		Timestamp:         s.now().UTC(),
	}

	s.logger.Info("document signed",
		zap.String("certificate_type", string(cert.Type)),
		zap.String("certificate_serial", cert.Serial),
	)

	return rec, nil
}

// Verify recomputes the payload hash and compares it to the stored hash
func (s *SimulatedSigner) Verify(payload string, rec Record) VerificationResult {
	hash := sha256.Sum256([]byte(payload))
	if hex.EncodeToString(hash[:]) != rec.SignatureHash {
		return VerificationResult{
			Valid:   false,
			Message: "Documento foi modificado após assinatura",
		}
	}
	return VerificationResult{
		Valid:   true,
		Message: "Assinatura válida",
	}
}

// CertificateStatus is a stub: it always reports the certificate as valid.
// A real implementation would query the certificate authority for revocation
// and expiry.
func (s *SimulatedSigner) CertificateStatus(ctx context.Context, serial string) StatusResult {
	expires := s.now().AddDate(1, 0, 0)
	return StatusResult{
		Valid:     true,
		Message:   "Certificado válido",
		ExpiresAt: &expires,
	}
}

// CertificateInfoFor derives the certificate identity for a doctor. The CN
// binds the doctor's name to the CRM license, matching the cloud certificates
// issued through the CFM.
func CertificateInfoFor(doctorName, crm, crmUF string) CertificateInfo {
	serial := make([]byte, 16)
	rand.Read(serial)
	return CertificateInfo{
		Type:   CertificateCloud,
		CN:     fmt.Sprintf("%s:%s/%s", doctorName, crm, crmUF),
		Serial: hex.EncodeToString(serial),
	}
}

// FormatRecord renders a signature record for display on documents
func FormatRecord(rec Record) string {
	hashPreview := rec.SignatureHash
	if len(hashPreview) > 16 {
		hashPreview = hashPreview[:16] + "..."
	}
	return fmt.Sprintf("Tipo de Certificado: %s\nAssinante: %s\nNúmero de Série: %s\nData/Hora: %s\nHash: %s",
		rec.CertificateType, rec.CertificateCN, rec.CertificateSerial,
		rec.Timestamp.Format("02/01/2006 15:04:05"), hashPreview)
}
