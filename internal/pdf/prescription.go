package pdf

import (
	"fmt"
	"time"

	"github.com/medko/receita-core/internal/regulatory"
)

// MedicationItem is one prescribed medication line on the rendered document
type MedicationItem struct {
	NomeProduto  string `json:"nomeProduto"`
	Apresentacao string `json:"apresentacao,omitempty"`
	Dose         string `json:"dose"`
	Frequencia   string `json:"frequencia"`
	Duracao      string `json:"duracao"`
	Orientacoes  string `json:"orientacoes,omitempty"`
}

// PrescriptionData is the full input for rendering a prescription PDF
type PrescriptionData struct {
	Form        regulatory.Form
	Doctor      Doctor
	Patient     Patient
	Medications []MedicationItem
	Orientacoes string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Signed      bool
	SignedAt    *time.Time
	QRData      string
	Watermark   string
}

// RenderPrescription renders a complete prescription document. It fails only
// on structurally missing required fields; callers must validate presence
// before invoking and must not persist a URL on error.
func (c *Composer) RenderPrescription(data PrescriptionData) ([]byte, error) {
	if data.Doctor.Name == "" {
		return nil, ErrMissingDoctor
	}
	if data.Patient.NomeCompleto == "" {
		return nil, ErrMissingPatient
	}

	doc, tr := newDoc()
	watermark(doc, tr, data.Watermark)

	title(doc, tr, "PRESCRIÇÃO MÉDICA")
	centered(doc, tr, 12, "", regulatory.Describe(data.Form))
	doc.Ln(12)

	doctorBlock(doc, tr, data.Doctor)
	patientBlock(doc, tr, data.Patient)

	sectionHeader(doc, tr, "MEDICAMENTOS PRESCRITOS")
	doc.Ln(6)
	for i, med := range data.Medications {
		doc.SetFont("Helvetica", "B", 9)
		doc.CellFormat(0, 12, tr(fmt.Sprintf("%d. %s", i+1, med.NomeProduto)), "", 1, "L", false, 0, "")
		if med.Apresentacao != "" {
			fieldLine(doc, tr, "   Apresentação: "+med.Apresentacao)
		}
		fieldLine(doc, tr, "   Dose: "+med.Dose)
		fieldLine(doc, tr, "   Frequência: "+med.Frequencia)
		fieldLine(doc, tr, "   Duração: "+med.Duracao)
		if med.Orientacoes != "" {
			fieldLine(doc, tr, "   Orientações: "+med.Orientacoes)
		}
		doc.Ln(6)
	}

	if data.Orientacoes != "" {
		doc.Ln(6)
		sectionHeader(doc, tr, "ORIENTAÇÕES GERAIS")
		freeText(doc, tr, data.Orientacoes)
		doc.Ln(12)
	}

	doc.Ln(12)
	fieldLine(doc, tr, "Data de Emissão: "+formatDate(data.IssuedAt))
	if !data.ExpiresAt.IsZero() {
		fieldLine(doc, tr, "Válido até: "+formatDate(data.ExpiresAt))
	}

	doc.Ln(24)
	if data.Signed {
		digitalSignatureBlock(doc, tr, data.SignedAt)
	} else {
		inkSignatureLine(doc, tr, data.Doctor)
	}

	c.embedQR(doc, tr, data.QRData)

	return output(doc)
}
