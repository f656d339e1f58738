package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medko/receita-core/internal/api/middleware"
	"github.com/medko/receita-core/internal/delivery"
	"github.com/medko/receita-core/internal/domain/document"
	"github.com/medko/receita-core/internal/pdf"
	"github.com/medko/receita-core/internal/regulatory"
	"github.com/medko/receita-core/internal/signature"
	"github.com/medko/receita-core/internal/storage"
	"github.com/medko/receita-core/internal/workflow"
)

const testAPIKey = "test-key"
const testDoctorID = "dr-1"

type fakeStore struct {
	prescriptions map[string]*document.Prescription
	certificates  map[string]*document.Certificate
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		prescriptions: make(map[string]*document.Prescription),
		certificates:  make(map[string]*document.Certificate),
	}
}

func (f *fakeStore) CreatePrescription(ctx context.Context, p *document.Prescription) error {
	f.prescriptions[p.ID] = p
	return nil
}

func (f *fakeStore) GetPrescription(ctx context.Context, id, doctorID string) (*document.Prescription, error) {
	p, ok := f.prescriptions[id]
	if !ok || p.DoctorID != doctorID {
		return nil, document.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListPrescriptionsByDoctor(ctx context.Context, doctorID string, limit int) ([]*document.Prescription, error) {
	var out []*document.Prescription
	for _, p := range f.prescriptions {
		if p.DoctorID == doctorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) AttachPrescriptionPDF(ctx context.Context, p *document.Prescription) error {
	f.prescriptions[p.ID] = p
	return nil
}

func (f *fakeStore) SignPrescription(ctx context.Context, p *document.Prescription) error {
	f.prescriptions[p.ID] = p
	return nil
}

func (f *fakeStore) FindPrescription(ctx context.Context, id string) (*document.Prescription, error) {
	p, ok := f.prescriptions[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) CreateCertificate(ctx context.Context, c *document.Certificate) error {
	f.certificates[c.ID] = c
	return nil
}

func (f *fakeStore) GetCertificate(ctx context.Context, id, doctorID string) (*document.Certificate, error) {
	c, ok := f.certificates[id]
	if !ok || c.DoctorID != doctorID {
		return nil, document.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListCertificatesByDoctor(ctx context.Context, doctorID string, limit int) ([]*document.Certificate, error) {
	var out []*document.Certificate
	for _, c := range f.certificates {
		if c.DoctorID == doctorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) AttachCertificatePDF(ctx context.Context, c *document.Certificate) error {
	f.certificates[c.ID] = c
	return nil
}

func (f *fakeStore) SignCertificate(ctx context.Context, c *document.Certificate) error {
	f.certificates[c.ID] = c
	return nil
}

func (f *fakeStore) FindCertificate(ctx context.Context, id string) (*document.Certificate, error) {
	c, ok := f.certificates[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return c, nil
}

type fakeRecorder struct {
	logs []*delivery.Log
}

func (f *fakeRecorder) Record(ctx context.Context, l *delivery.Log) error {
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeRecorder) ListByDocument(ctx context.Context, documentID string) ([]*delivery.Log, error) {
	var out []*delivery.Log
	for _, l := range f.logs {
		if l.DocumentID == documentID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeMessenger struct{}

func (f *fakeMessenger) SendMessage(ctx context.Context, params delivery.SendMessageParams) (string, error) {
	return "msg-1", nil
}

func (f *fakeMessenger) GetMessageStatus(ctx context.Context, messageID string) (*delivery.MessageStatus, error) {
	return &delivery.MessageStatus{Status: "DELIVERED"}, nil
}

func newTestRouter(t *testing.T) (chi.Router, *fakeStore) {
	t.Helper()

	store := newFakeStore()
	dispatcher := delivery.NewDispatcher(&fakeMessenger{}, nil, nil)

	service := workflow.NewService(
		workflow.DefaultConfig(),
		store,
		&fakeRecorder{},
		pdf.NewComposer(nil),
		storage.NewMemoryStore("https://files.medko.com.br", nil),
		signature.NewSimulatedSigner(nil),
		dispatcher,
		nil,
		nil,
		nil,
	)

	r := chi.NewRouter()
	r.Mount("/validar", NewVerifyHandler(service, nil).Routes())
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(map[string]string{testAPIKey: testDoctorID}))
		r.Mount("/prescriptions", NewPrescriptionHandler(service, nil).Routes())
		r.Mount("/certificates", NewCertificateHandler(service, nil).Routes())
		r.Mount("/validation", NewValidationHandler(service, nil).Routes())
	})
	return r, store
}

func doJSON(t *testing.T, r chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func createRequest() CreatePrescriptionRequest {
	return CreatePrescriptionRequest{
		PartyInfo: PartyInfo{
			Patient: workflow.PatientInfo{ID: "pt-1", NomeCompleto: "Maria Silva", Telefone: "+5511999999999"},
		},
		Medications: []document.PrescribedMedication{
			{Tarja: "isenta", NomeProduto: "Dipirona", Dose: "500mg", Frequencia: "8/8h", Duracao: "5 dias"},
		},
	}
}

func TestCreatePrescriptionEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/prescriptions", createRequest())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var p document.Prescription
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if p.DoctorID != testDoctorID {
		t.Errorf("doctor id = %s, want %s", p.DoctorID, testDoctorID)
	}
	if p.Form != regulatory.FormSimples {
		t.Errorf("form = %s, want simples", p.Form)
	}
}

func TestCreatePrescriptionDoctorMismatch(t *testing.T) {
	r, _ := newTestRouter(t)

	req := createRequest()
	req.Doctor.ID = "someone-else"
	rec := doJSON(t, r, http.MethodPost, "/api/v1/prescriptions", req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestCreatePrescriptionInvalidComposition(t *testing.T) {
	r, _ := newTestRouter(t)

	req := createRequest()
	req.Form = regulatory.FormAmarela
	req.Medications = []document.PrescribedMedication{
		{Tarja: "A1", NomeProduto: "Morfina", Dose: "10mg"},
		{Tarja: "A1", NomeProduto: "Metadona", Dose: "5mg"},
	}
	rec := doJSON(t, r, http.MethodPost, "/api/v1/prescriptions", req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var result regulatory.ValidationResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Valid || len(result.Errors) == 0 {
		t.Errorf("expected validation errors, got %+v", result)
	}
}

func TestMissingAPIKey(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/prescriptions", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestGetPrescriptionNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/prescriptions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSendInvalidChannel(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/prescriptions/some-id/send", SendRequest{Channel: "pombo-correio"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPrescriptionLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/prescriptions", createRequest())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var p document.Prescription
	json.NewDecoder(rec.Body).Decode(&p)

	party := PartyInfo{
		Doctor:  workflow.DoctorInfo{Name: "Ana Souza", CRM: "123456", CRMUF: "SP"},
		Patient: workflow.PatientInfo{ID: "pt-1", NomeCompleto: "Maria Silva", Telefone: "+5511999999999"},
	}

	// Sending before rendering is a conflict
	rec = doJSON(t, r, http.MethodPost, "/api/v1/prescriptions/"+p.ID+"/send", SendRequest{PartyInfo: party, Channel: delivery.ChannelWhatsApp})
	if rec.Code != http.StatusConflict {
		t.Fatalf("send before pdf status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/prescriptions/"+p.ID+"/pdf", party)
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/prescriptions/"+p.ID+"/sign", party)
	if rec.Code != http.StatusOK {
		t.Fatalf("sign status = %d", rec.Code)
	}

	// Signing twice is a conflict
	rec = doJSON(t, r, http.MethodPost, "/api/v1/prescriptions/"+p.ID+"/sign", party)
	if rec.Code != http.StatusConflict {
		t.Errorf("re-sign status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/prescriptions/"+p.ID+"/send", SendRequest{PartyInfo: party, Channel: delivery.ChannelWhatsApp})
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d", rec.Code)
	}
	var result delivery.SendResult
	json.NewDecoder(rec.Body).Decode(&result)
	if !result.Success || result.MessageID != "msg-1" {
		t.Errorf("unexpected send result: %+v", result)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/prescriptions/"+p.ID+"/deliveries", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deliveries status = %d", rec.Code)
	}
	var logs []*delivery.Log
	json.NewDecoder(rec.Body).Decode(&logs)
	if len(logs) != 1 {
		t.Errorf("deliveries = %d, want 1", len(logs))
	}
}

func TestCertificateMissingLeavePeriod(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/certificates", CreateCertificateRequest{
		PartyInfo: PartyInfo{Patient: workflow.PatientInfo{ID: "pt-1", NomeCompleto: "Maria Silva"}},
		Tipo:      document.TipoAfastamento,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCertificateCreateEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	rec := doJSON(t, r, http.MethodPost, "/api/v1/certificates", CreateCertificateRequest{
		PartyInfo:  PartyInfo{Patient: workflow.PatientInfo{ID: "pt-1", NomeCompleto: "Maria Silva"}},
		Tipo:       document.TipoAfastamento,
		CID:        "J11",
		DataInicio: &start,
		DataFim:    &end,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestVerifyEndpointIsPublic(t *testing.T) {
	r, store := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/prescriptions", createRequest())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var p document.Prescription
	json.NewDecoder(rec.Body).Decode(&p)
	if _, ok := store.prescriptions[p.ID]; !ok {
		t.Fatal("prescription not stored")
	}

	// No API key on purpose
	req := httptest.NewRequest(http.MethodGet, "/validar/"+p.ID, nil)
	pub := httptest.NewRecorder()
	r.ServeHTTP(pub, req)
	if pub.Code != http.StatusOK {
		t.Fatalf("verify status = %d", pub.Code)
	}

	var v workflow.Verification
	json.NewDecoder(pub.Body).Decode(&v)
	if v.DocumentID != p.ID || v.Signed {
		t.Errorf("unexpected verification: %+v", v)
	}

	req = httptest.NewRequest(http.MethodGet, "/validar/missing", nil)
	pub = httptest.NewRecorder()
	r.ServeHTTP(pub, req)
	if pub.Code != http.StatusNotFound {
		t.Errorf("missing document status = %d, want 404", pub.Code)
	}
}

func TestClassifyEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/validation/classify", ClassifyRequest{Tarja: "B1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var out map[string]string
	json.NewDecoder(rec.Body).Decode(&out)
	if out["tipoReceituario"] != string(regulatory.FormAzul) {
		t.Errorf("tipoReceituario = %s, want azul", out["tipoReceituario"])
	}
}

func TestFormsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/validation/forms", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var out []map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&out)
	if len(out) != len(regulatory.Forms) {
		t.Errorf("forms = %d, want %d", len(out), len(regulatory.Forms))
	}
}
