package pdf

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/medko/receita-core/internal/regulatory"
)

func testDoctor() Doctor {
	return Doctor{
		Name:          "Dra. Ana Souza",
		CRM:           "123456",
		CRMUF:         "SP",
		Especialidade: "Clínica Geral",
		Endereco:      "Av. Paulista, 1000 - São Paulo/SP",
		Telefone:      "+5511999990000",
	}
}

func testPatient() Patient {
	return Patient{
		NomeCompleto:   "João da Silva",
		DataNascimento: "15/03/1980",
		CPF:            "123.456.789-00",
	}
}

func testPrescriptionData() PrescriptionData {
	issued := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	return PrescriptionData{
		Form:    regulatory.FormSimples,
		Doctor:  testDoctor(),
		Patient: testPatient(),
		Medications: []MedicationItem{
			{NomeProduto: "Dipirona 500mg", Apresentacao: "Comprimido", Dose: "1 comprimido", Frequencia: "8/8h", Duracao: "5 dias"},
			{NomeProduto: "Amoxicilina 500mg", Dose: "1 cápsula", Frequencia: "12/12h", Duracao: "7 dias", Orientacoes: "Tomar com água"},
		},
		Orientacoes: "Retornar em caso de febre persistente.",
		IssuedAt:    issued,
		ExpiresAt:   regulatory.ComputeExpiry(regulatory.FormSimples, issued),
	}
}

func assertPDF(t *testing.T, data []byte) {
	t.Helper()
	if len(data) == 0 {
		t.Fatal("expected rendered bytes")
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("output is not a PDF document")
	}
}

func TestRenderPrescription(t *testing.T) {
	c := NewComposer(nil)
	out, err := c.RenderPrescription(testPrescriptionData())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	assertPDF(t, out)
}

func TestRenderPrescriptionSigned(t *testing.T) {
	c := NewComposer(nil)
	data := testPrescriptionData()
	signedAt := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)
	data.Signed = true
	data.SignedAt = &signedAt

	out, err := c.RenderPrescription(data)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	assertPDF(t, out)
}

func TestRenderPrescriptionWithQR(t *testing.T) {
	c := NewComposer(nil)
	data := testPrescriptionData()
	data.QRData = BuildQRData("https://medko.com.br", "doc-1", "dr-1", time.Now())
	data.Watermark = "MEDKO"

	out, err := c.RenderPrescription(data)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	assertPDF(t, out)
}

func TestRenderPrescriptionMissingRequiredFields(t *testing.T) {
	c := NewComposer(nil)

	data := testPrescriptionData()
	data.Doctor.Name = ""
	if _, err := c.RenderPrescription(data); err != ErrMissingDoctor {
		t.Errorf("expected ErrMissingDoctor, got %v", err)
	}

	data = testPrescriptionData()
	data.Patient.NomeCompleto = ""
	if _, err := c.RenderPrescription(data); err != ErrMissingPatient {
		t.Errorf("expected ErrMissingPatient, got %v", err)
	}
}

func TestRenderCertificateComparecimento(t *testing.T) {
	c := NewComposer(nil)
	out, err := c.RenderCertificate(CertificateData{
		Numero:   "2024-0001",
		Tipo:     TipoComparecimento,
		Doctor:   testDoctor(),
		Patient:  testPatient(),
		IssuedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	assertPDF(t, out)
}

func TestRenderCertificateAfastamento(t *testing.T) {
	c := NewComposer(nil)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	out, err := c.RenderCertificate(CertificateData{
		Tipo:       TipoAfastamento,
		Doctor:     testDoctor(),
		Patient:    testPatient(),
		CID:        "J11",
		DataInicio: &start,
		DataFim:    &end,
		IssuedAt:   start,
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	assertPDF(t, out)
}

func TestRenderCertificateAfastamentoMissingDates(t *testing.T) {
	c := NewComposer(nil)
	out, err := c.RenderCertificate(CertificateData{
		Tipo:     TipoAfastamento,
		Doctor:   testDoctor(),
		Patient:  testPatient(),
		IssuedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("render should fall back to the generic leave sentence: %v", err)
	}
	assertPDF(t, out)
}

func TestRenderCertificateObito(t *testing.T) {
	c := NewComposer(nil)
	out, err := c.RenderCertificate(CertificateData{
		Tipo:     TipoObito,
		Doctor:   testDoctor(),
		Patient:  testPatient(),
		IssuedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	assertPDF(t, out)
}

func TestLeaveDays(t *testing.T) {
	cases := []struct {
		start, end time.Time
		want       int
	}{
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), 5},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC), 3},
	}
	for _, tc := range cases {
		if got := LeaveDays(tc.start, tc.end); got != tc.want {
			t.Errorf("LeaveDays(%s, %s) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestBuildQRData(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	raw := BuildQRData("https://medko.com.br", "doc-42", "dr-7", now)

	var payload QRPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload.URL != "https://medko.com.br/validar/doc-42" {
		t.Errorf("unexpected verification URL %q", payload.URL)
	}
	if payload.ID != "doc-42" || payload.Doctor != "dr-7" {
		t.Errorf("unexpected payload identifiers: %+v", payload)
	}
	if payload.Timestamp != "2024-05-10T09:00:00Z" {
		t.Errorf("unexpected timestamp %q", payload.Timestamp)
	}
}
