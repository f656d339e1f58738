// Package signature produces and verifies signature records binding a
// document's content. The production interface is Signer so an ICP-Brasil
// provider (A1, A3 or cloud certificate) can replace the simulated
// implementation without touching the document workflow.
package signature

import (
	"context"
	"time"
)

// CertificateType is the certificate tier used to sign
type CertificateType string

const (
	CertificateA1    CertificateType = "A1"
	CertificateA3    CertificateType = "A3"
	CertificateCloud CertificateType = "cloud"
)

// CertificateInfo identifies the signing certificate
type CertificateInfo struct {
	Type   CertificateType `json:"type"`
	CN     string          `json:"cn"`
	Serial string          `json:"serial"`
}

// Record is the signature record stored on a signed document
type Record struct {
	CertificateType   CertificateType `json:"certificateType"`
	CertificateCN     string          `json:"certificateCN"`
	CertificateSerial string          `json:"certificateSerial"`
	SignatureHash     string          `json:"signatureHash"`
	Timestamp         time.Time       `json:"timestamp"`
}

// VerificationResult reports whether a payload still matches its record.
// A tampered document is an expected detectable condition, not an error.
type VerificationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// StatusResult reports certificate standing with the certificate authority
type StatusResult struct {
	Valid     bool       `json:"valid"`
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Signer binds document content to a certificate and later detects tampering
type Signer interface {
	// Sign computes a content hash of payload and stamps it with the
	// certificate metadata and current time.
	Sign(payload string, cert CertificateInfo) (Record, error)
	// Verify recomputes the hash of payload and compares it to the record.
	Verify(payload string, rec Record) VerificationResult
	// CertificateStatus checks certificate standing by serial number.
	CertificateStatus(ctx context.Context, serial string) StatusResult
}
