package pdf

import (
	"fmt"
	"math"
	"time"
)

// Certificate kinds accepted by RenderCertificate
const (
	TipoComparecimento = "comparecimento"
	TipoAfastamento    = "afastamento"
	TipoObito          = "obito"
)

// CertificateData is the full input for rendering a certificate PDF
type CertificateData struct {
	Numero      string
	Tipo        string
	Doctor      Doctor
	Patient     Patient
	CID         string
	DataInicio  *time.Time
	DataFim     *time.Time
	Observacoes string
	IssuedAt    time.Time
	Signed      bool
	SignedAt    *time.Time
	QRData      string
	Watermark   string
}

// LeaveDays returns the inclusive day count of a leave period: the ceiling of
// the calendar difference plus the starting day itself.
func LeaveDays(start, end time.Time) int {
	diff := end.Sub(start)
	return int(math.Ceil(diff.Hours()/24)) + 1
}

// RenderCertificate renders a complete medical certificate (atestado). Same
// failure contract as RenderPrescription: only structurally missing required
// fields abort the render.
func (c *Composer) RenderCertificate(data CertificateData) ([]byte, error) {
	if data.Doctor.Name == "" {
		return nil, ErrMissingDoctor
	}
	if data.Patient.NomeCompleto == "" {
		return nil, ErrMissingPatient
	}

	doc, tr := newDoc()
	watermark(doc, tr, data.Watermark)

	if data.Tipo == TipoObito {
		title(doc, tr, "ATESTADO DE ÓBITO")
	} else {
		title(doc, tr, "ATESTADO MÉDICO")
	}
	if data.Numero != "" {
		centered(doc, tr, 10, "", "Atestado nº "+data.Numero)
	}
	doc.Ln(12)

	doctorBlock(doc, tr, data.Doctor)

	if data.Tipo == TipoObito {
		freeText(doc, tr, fmt.Sprintf(
			"Atesto, para os devidos fins, o falecimento do(a) paciente %s.",
			data.Patient.NomeCompleto))
	} else {
		freeText(doc, tr, fmt.Sprintf(
			"Atesto, para os devidos fins, que o(a) paciente %s esteve sob meus cuidados profissionais.",
			data.Patient.NomeCompleto))
	}
	if data.Patient.CPF != "" {
		fieldLine(doc, tr, "CPF: "+data.Patient.CPF)
	}
	doc.Ln(12)

	switch data.Tipo {
	case TipoComparecimento:
		freeText(doc, tr, "O(a) paciente compareceu a esta unidade para atendimento médico na data de hoje.")
	case TipoAfastamento:
		if data.DataInicio != nil && data.DataFim != nil {
			days := LeaveDays(*data.DataInicio, *data.DataFim)
			freeText(doc, tr, fmt.Sprintf(
				"Recomendo afastamento de suas atividades por %d dia(s), no período de %s a %s.",
				days, formatDate(*data.DataInicio), formatDate(*data.DataFim)))
		} else {
			freeText(doc, tr, "Recomendo afastamento de suas atividades pelo período clinicamente indicado.")
		}
	case TipoObito:
		freeText(doc, tr, "Data do óbito: "+formatDate(data.IssuedAt))
	}
	doc.Ln(12)

	if data.CID != "" {
		fieldLine(doc, tr, "CID: "+data.CID)
		doc.Ln(6)
	}
	if data.Observacoes != "" {
		sectionHeader(doc, tr, "OBSERVAÇÕES")
		freeText(doc, tr, data.Observacoes)
		doc.Ln(12)
	}

	fieldLine(doc, tr, "Data de Emissão: "+formatDate(data.IssuedAt))

	doc.Ln(24)
	if data.Signed {
		digitalSignatureBlock(doc, tr, data.SignedAt)
	} else {
		inkSignatureLine(doc, tr, data.Doctor)
	}

	c.embedQR(doc, tr, data.QRData)

	return output(doc)
}
