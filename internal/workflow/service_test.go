package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/medko/receita-core/internal/delivery"
	"github.com/medko/receita-core/internal/domain/document"
	"github.com/medko/receita-core/internal/pdf"
	"github.com/medko/receita-core/internal/regulatory"
	"github.com/medko/receita-core/internal/signature"
	"github.com/medko/receita-core/internal/storage"
)

type memoryStore struct {
	prescriptions map[string]*document.Prescription
	certificates  map[string]*document.Certificate
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		prescriptions: make(map[string]*document.Prescription),
		certificates:  make(map[string]*document.Certificate),
	}
}

func (m *memoryStore) CreatePrescription(ctx context.Context, p *document.Prescription) error {
	m.prescriptions[p.ID] = p
	return nil
}

func (m *memoryStore) GetPrescription(ctx context.Context, id, doctorID string) (*document.Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok || p.DoctorID != doctorID {
		return nil, document.ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) ListPrescriptionsByDoctor(ctx context.Context, doctorID string, limit int) ([]*document.Prescription, error) {
	var out []*document.Prescription
	for _, p := range m.prescriptions {
		if p.DoctorID == doctorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) AttachPrescriptionPDF(ctx context.Context, p *document.Prescription) error {
	if _, ok := m.prescriptions[p.ID]; !ok {
		return document.ErrNotFound
	}
	m.prescriptions[p.ID] = p
	return nil
}

func (m *memoryStore) SignPrescription(ctx context.Context, p *document.Prescription) error {
	if _, ok := m.prescriptions[p.ID]; !ok {
		return document.ErrNotFound
	}
	m.prescriptions[p.ID] = p
	return nil
}

func (m *memoryStore) FindPrescription(ctx context.Context, id string) (*document.Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) CreateCertificate(ctx context.Context, c *document.Certificate) error {
	m.certificates[c.ID] = c
	return nil
}

func (m *memoryStore) GetCertificate(ctx context.Context, id, doctorID string) (*document.Certificate, error) {
	c, ok := m.certificates[id]
	if !ok || c.DoctorID != doctorID {
		return nil, document.ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) ListCertificatesByDoctor(ctx context.Context, doctorID string, limit int) ([]*document.Certificate, error) {
	var out []*document.Certificate
	for _, c := range m.certificates {
		if c.DoctorID == doctorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryStore) AttachCertificatePDF(ctx context.Context, c *document.Certificate) error {
	if _, ok := m.certificates[c.ID]; !ok {
		return document.ErrNotFound
	}
	m.certificates[c.ID] = c
	return nil
}

func (m *memoryStore) SignCertificate(ctx context.Context, c *document.Certificate) error {
	if _, ok := m.certificates[c.ID]; !ok {
		return document.ErrNotFound
	}
	m.certificates[c.ID] = c
	return nil
}

func (m *memoryStore) FindCertificate(ctx context.Context, id string) (*document.Certificate, error) {
	c, ok := m.certificates[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return c, nil
}

type memoryRecorder struct {
	logs []*delivery.Log
}

func (m *memoryRecorder) Record(ctx context.Context, l *delivery.Log) error {
	m.logs = append(m.logs, l)
	return nil
}

func (m *memoryRecorder) ListByDocument(ctx context.Context, documentID string) ([]*delivery.Log, error) {
	var out []*delivery.Log
	for _, l := range m.logs {
		if l.DocumentID == documentID {
			out = append(out, l)
		}
	}
	return out, nil
}

type stubMessenger struct {
	sent []delivery.SendMessageParams
	err  error
}

func (s *stubMessenger) SendMessage(ctx context.Context, params delivery.SendMessageParams) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, params)
	return "msg-1", nil
}

func (s *stubMessenger) GetMessageStatus(ctx context.Context, messageID string) (*delivery.MessageStatus, error) {
	return &delivery.MessageStatus{Status: "DELIVERED"}, nil
}

type testEnv struct {
	service   *Service
	store     *memoryStore
	objects   *storage.MemoryStore
	recorder  *memoryRecorder
	messenger *stubMessenger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemoryStore()
	objects := storage.NewMemoryStore("https://files.medko.com.br", nil)
	recorder := &memoryRecorder{}
	messenger := &stubMessenger{}
	dispatcher := delivery.NewDispatcher(messenger, nil, nil)

	service := NewService(
		DefaultConfig(),
		store,
		recorder,
		pdf.NewComposer(nil),
		objects,
		signature.NewSimulatedSigner(nil),
		dispatcher,
		nil,
		nil,
		nil,
	)

	return &testEnv{
		service:   service,
		store:     store,
		objects:   objects,
		recorder:  recorder,
		messenger: messenger,
	}
}

func testDoctor() DoctorInfo {
	return DoctorInfo{
		ID:    "dr-1",
		Name:  "Ana Souza",
		CRM:   "123456",
		CRMUF: "SP",
	}
}

func testPatient() PatientInfo {
	return PatientInfo{
		ID:           "pt-1",
		NomeCompleto: "Maria Silva",
		CPF:          "123.456.789-00",
		Telefone:     "+5511999999999",
	}
}

func TestCreatePrescriptionDerivesForm(t *testing.T) {
	env := newTestEnv(t)

	p, err := env.service.CreatePrescription(context.Background(), CreatePrescriptionInput{
		Doctor:  testDoctor(),
		Patient: testPatient(),
		Medications: []document.PrescribedMedication{
			{Tarja: "B1", NomeProduto: "Diazepam", Dose: "10mg", Frequencia: "1x/dia", Duracao: "30 dias"},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if p.Form != regulatory.FormAzul {
		t.Errorf("derived form = %s, want azul", p.Form)
	}
	if _, ok := env.store.prescriptions[p.ID]; !ok {
		t.Error("prescription not persisted")
	}
}

func TestCreatePrescriptionValidationFailure(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.CreatePrescription(context.Background(), CreatePrescriptionInput{
		Doctor:  testDoctor(),
		Patient: testPatient(),
		Form:    regulatory.FormAmarela,
		Medications: []document.PrescribedMedication{
			{Tarja: "A1", NomeProduto: "Morfina", Dose: "10mg"},
			{Tarja: "A1", NomeProduto: "Metadona", Dose: "5mg"},
		},
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Result.Valid || len(verr.Result.Errors) == 0 {
		t.Errorf("unexpected result: %+v", verr.Result)
	}
}

func TestPrescriptionPipeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doctor := testDoctor()
	patient := testPatient()

	p, err := env.service.CreatePrescription(ctx, CreatePrescriptionInput{
		Doctor:  doctor,
		Patient: patient,
		Medications: []document.PrescribedMedication{
			{Tarja: "isenta", NomeProduto: "Dipirona", Dose: "500mg", Frequencia: "8/8h", Duracao: "5 dias"},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Sending before rendering must fail with a pipeline error.
	if _, err := env.service.SendPrescription(ctx, p.ID, doctor, patient, delivery.ChannelWhatsApp); err != ErrNoPDF {
		t.Errorf("expected ErrNoPDF, got %v", err)
	}

	p, err = env.service.GeneratePrescriptionPDF(ctx, p.ID, doctor, patient)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if p.PDFURL == "" || p.QRData == "" {
		t.Error("expected pdf url and qr data after generation")
	}
	if env.objects.Len() != 1 {
		t.Errorf("stored objects = %d, want 1", env.objects.Len())
	}
	obj, err := env.objects.Fetch(ctx, "prescriptions/"+p.ID+".pdf")
	if err != nil {
		t.Fatalf("fetch stored pdf: %v", err)
	}
	if !strings.HasPrefix(string(obj.Data), "%PDF") {
		t.Error("stored object is not a pdf")
	}

	p, err = env.service.SignPrescription(ctx, p.ID, doctor)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if p.Status() != document.StatusSigned {
		t.Errorf("status = %s, want signed", p.Status())
	}

	if _, err := env.service.SignPrescription(ctx, p.ID, doctor); err != document.ErrAlreadySigned {
		t.Errorf("expected ErrAlreadySigned, got %v", err)
	}

	result, err := env.service.SendPrescription(ctx, p.ID, doctor, patient, delivery.ChannelWhatsApp)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !result.Success || result.MessageID != "msg-1" {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(env.recorder.logs) != 1 {
		t.Fatalf("delivery logs = %d, want 1", len(env.recorder.logs))
	}
	if env.recorder.logs[0].Channel != delivery.ChannelWhatsApp {
		t.Errorf("log channel = %s", env.recorder.logs[0].Channel)
	}
}

func TestSendFailureIsLoggedNotReturned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doctor := testDoctor()
	patient := testPatient()

	p, _ := env.service.CreatePrescription(ctx, CreatePrescriptionInput{
		Doctor:  doctor,
		Patient: patient,
		Medications: []document.PrescribedMedication{
			{Tarja: "isenta", NomeProduto: "Dipirona", Dose: "500mg"},
		},
	})
	if _, err := env.service.GeneratePrescriptionPDF(ctx, p.ID, doctor, patient); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	env.messenger.err = errors.New("provider down")
	result, err := env.service.SendPrescription(ctx, p.ID, doctor, patient, delivery.ChannelSMS)
	if err != nil {
		t.Fatalf("delivery failure must not surface as error, got %v", err)
	}
	if result.Success {
		t.Error("expected failed result")
	}
	if len(env.recorder.logs) != 1 || env.recorder.logs[0].Success {
		t.Error("failed attempt must still be logged")
	}
}

func TestCertificatePipeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doctor := testDoctor()
	patient := testPatient()

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)

	c, err := env.service.CreateCertificate(ctx, CreateCertificateInput{
		Doctor:     doctor,
		Patient:    patient,
		Tipo:       document.TipoAfastamento,
		CID:        "J11",
		DataInicio: &start,
		DataFim:    &end,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	c, err = env.service.GenerateCertificatePDF(ctx, c.ID, doctor, patient)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if c.PDFURL == "" {
		t.Error("expected pdf url")
	}

	c, err = env.service.SignCertificate(ctx, c.ID, doctor)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	result, err := env.service.SendCertificate(ctx, c.ID, doctor, patient, delivery.ChannelSMS)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !result.Success {
		t.Errorf("unexpected result: %+v", result)
	}
	if !strings.Contains(env.messenger.sent[0].Message, "atestado médico") {
		t.Error("certificate message should name the document type")
	}
}

func TestVerifyDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doctor := testDoctor()
	patient := testPatient()

	p, _ := env.service.CreatePrescription(ctx, CreatePrescriptionInput{
		Doctor:  doctor,
		Patient: patient,
		Medications: []document.PrescribedMedication{
			{Tarja: "isenta", NomeProduto: "Dipirona", Dose: "500mg"},
		},
	})

	v, err := env.service.VerifyDocument(ctx, p.ID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if v.Signed || v.SignatureValid != nil {
		t.Errorf("unsigned document should verify as unsigned: %+v", v)
	}

	if _, err := env.service.SignPrescription(ctx, p.ID, doctor); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	v, err = env.service.VerifyDocument(ctx, p.ID)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if v.SignatureValid == nil || !*v.SignatureValid {
		t.Errorf("expected valid signature: %+v", v)
	}

	// Content tampering after signing must be detected.
	env.store.prescriptions[p.ID].Medicamentos[0].Dose = "5000mg"
	v, _ = env.service.VerifyDocument(ctx, p.ID)
	if v.SignatureValid == nil || *v.SignatureValid {
		t.Error("tampered content must fail verification")
	}

	if _, err := env.service.VerifyDocument(ctx, "missing"); !errors.Is(err, document.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExecuteCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doctor := testDoctor()
	patient := testPatient()

	p, _ := env.service.CreatePrescription(ctx, CreatePrescriptionInput{
		Doctor:  doctor,
		Patient: patient,
		Medications: []document.PrescribedMedication{
			{Tarja: "isenta", NomeProduto: "Dipirona", Dose: "500mg"},
		},
	})

	err := env.service.ExecuteCommand(ctx, Command{
		Action:     ActionGeneratePDF,
		DocumentID: p.ID,
		Kind:       document.KindPrescription,
		Doctor:     doctor,
		Patient:    patient,
	})
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if env.store.prescriptions[p.ID].PDFURL == "" {
		t.Error("command should have attached a pdf")
	}

	err = env.service.ExecuteCommand(ctx, Command{Action: CommandAction("explode")})
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}
