// Package pdf renders prescriptions and certificates into paginated A4
// documents with an embedded verification QR code.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
)

// Rendering failures the callers are expected to handle. A document with a
// structurally missing required field must not produce a stored PDF.
var (
	ErrMissingDoctor  = errors.New("doctor name is required")
	ErrMissingPatient = errors.New("patient name is required")
)

const (
	pageMargin = 50.0
	qrSize     = 100.0
)

// Doctor identifies the issuing physician on a rendered document
type Doctor struct {
	Name          string
	CRM           string
	CRMUF         string
	Especialidade string
	Endereco      string
	Telefone      string
}

// Patient identifies the patient on a rendered document
type Patient struct {
	NomeCompleto   string
	DataNascimento string
	CPF            string
}

// Composer renders documents. It is stateless; each Render call builds a
// complete document from its input alone.
type Composer struct {
	logger *zap.Logger
}

// NewComposer creates a document composer
func NewComposer(logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{logger: logger}
}

// newDoc creates an A4 portrait document with the standard margins and
// returns it together with the cp1252 translator for accented text.
func newDoc() (*gofpdf.Fpdf, func(string) string) {
	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()
	return doc, tr
}

func title(doc *gofpdf.Fpdf, tr func(string) string, text string) {
	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(0, 22, tr(text), "", 1, "C", false, 0, "")
	doc.Ln(6)
}

func sectionHeader(doc *gofpdf.Fpdf, tr func(string) string, text string) {
	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(0, 14, tr(text), "", 1, "L", false, 0, "")
}

func fieldLine(doc *gofpdf.Fpdf, tr func(string) string, text string) {
	doc.SetFont("Helvetica", "", 9)
	doc.CellFormat(0, 12, tr(text), "", 1, "L", false, 0, "")
}

func freeText(doc *gofpdf.Fpdf, tr func(string) string, text string) {
	doc.SetFont("Helvetica", "", 9)
	doc.MultiCell(0, 12, tr(text), "", "L", false)
}

func centered(doc *gofpdf.Fpdf, tr func(string) string, size float64, style, text string) {
	doc.SetFont("Helvetica", style, size)
	doc.CellFormat(0, size+4, tr(text), "", 1, "C", false, 0, "")
}

// doctorBlock renders the DADOS DO MÉDICO section
func doctorBlock(doc *gofpdf.Fpdf, tr func(string) string, d Doctor) {
	sectionHeader(doc, tr, "DADOS DO MÉDICO")
	fieldLine(doc, tr, "Nome: "+d.Name)
	fieldLine(doc, tr, fmt.Sprintf("CRM: %s/%s", d.CRM, d.CRMUF))
	especialidade := d.Especialidade
	if especialidade == "" {
		especialidade = "Não informada"
	}
	fieldLine(doc, tr, "Especialidade: "+especialidade)
	if d.Endereco != "" {
		fieldLine(doc, tr, "Endereço: "+d.Endereco)
	}
	if d.Telefone != "" {
		fieldLine(doc, tr, "Telefone: "+d.Telefone)
	}
	doc.Ln(12)
}

// patientBlock renders the DADOS DO PACIENTE section
func patientBlock(doc *gofpdf.Fpdf, tr func(string) string, p Patient) {
	sectionHeader(doc, tr, "DADOS DO PACIENTE")
	fieldLine(doc, tr, "Nome: "+p.NomeCompleto)
	if p.DataNascimento != "" {
		fieldLine(doc, tr, "Data de Nascimento: "+p.DataNascimento)
	}
	if p.CPF != "" {
		fieldLine(doc, tr, "CPF: "+p.CPF)
	}
	doc.Ln(12)
}

// inkSignatureLine renders the wet-ink signature block
func inkSignatureLine(doc *gofpdf.Fpdf, tr func(string) string, d Doctor) {
	doc.Ln(24)
	centered(doc, tr, 9, "", "__________________________________________________")
	centered(doc, tr, 9, "", d.Name)
	centered(doc, tr, 9, "", fmt.Sprintf("CRM: %s/%s", d.CRM, d.CRMUF))
}

// digitalSignatureBlock renders the digitally-signed attestation
func digitalSignatureBlock(doc *gofpdf.Fpdf, tr func(string) string, signedAt *time.Time) {
	centered(doc, tr, 9, "B", "DOCUMENTO ASSINADO DIGITALMENTE")
	if signedAt != nil {
		centered(doc, tr, 8, "", "Assinado em: "+signedAt.Format("02/01/2006 15:04:05"))
	}
}

// embedQR renders the verification QR code centered at the current cursor.
// QR encoding failure is non-fatal: the document finalizes without the block.
func (c *Composer) embedQR(doc *gofpdf.Fpdf, tr func(string) string, qrData string) {
	if qrData == "" {
		return
	}

	png, err := encodeQR(qrData)
	if err != nil {
		c.logger.Warn("qr encoding failed, rendering document without qr block", zap.Error(err))
		return
	}

	doc.Ln(12)
	pageWidth, _ := doc.GetPageSize()
	x := (pageWidth - qrSize) / 2

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("verification-qr", opts, bytes.NewReader(png))
	doc.ImageOptions("verification-qr", x, doc.GetY(), qrSize, qrSize, false, opts, 0, "")
	doc.SetY(doc.GetY() + qrSize + 4)
	centered(doc, tr, 7, "", "Escaneie para validar este documento")
}

// watermark draws a diagonal low-opacity security watermark across the page
func watermark(doc *gofpdf.Fpdf, tr func(string) string, text string) {
	if text == "" {
		return
	}
	pageWidth, pageHeight := doc.GetPageSize()

	doc.SetAlpha(0.1, "Normal")
	doc.SetFont("Helvetica", "B", 60)
	doc.TransformBegin()
	doc.TransformRotate(45, pageWidth/2, pageHeight/2)
	doc.SetXY(0, pageHeight/2)
	doc.CellFormat(pageWidth, 60, tr(text), "", 0, "C", false, 0, "")
	doc.TransformEnd()
	doc.SetAlpha(1.0, "Normal")
	doc.SetXY(pageMargin, pageMargin)
}

// output finalizes the document into bytes
func output(doc *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
