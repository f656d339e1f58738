package regulatory

import "time"

// ComputeExpiry returns the legal expiry date for a prescription issued at
// issuedAt. Offsets are calendar-day arithmetic on the input instant with no
// timezone normalization. Receita simples has no validity defined in law;
// one year is a conservative default.
func ComputeExpiry(form Form, issuedAt time.Time) time.Time {
	switch form {
	case FormTalidomida:
		return issuedAt.AddDate(0, 0, 15)
	case FormAmarela, FormControleEspecial, FormRetinoides:
		return issuedAt.AddDate(0, 0, 30)
	case FormAzul:
		return issuedAt.AddDate(0, 0, 60)
	default:
		return issuedAt.AddDate(1, 0, 0)
	}
}

// RequiresDigitalSignature reports whether documents of the given form must
// carry a digital signature. Per Resolução CFM 2.299/2021 only receitas
// simples are exempt.
func RequiresDigitalSignature(form Form) bool {
	return form != FormSimples
}
