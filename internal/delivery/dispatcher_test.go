package delivery

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeMessenger struct {
	lastParams SendMessageParams
	messageID  string
	err        error
	status     *MessageStatus
}

func (f *fakeMessenger) SendMessage(ctx context.Context, params SendMessageParams) (string, error) {
	f.lastParams = params
	if f.err != nil {
		return "", f.err
	}
	return f.messageID, nil
}

func (f *fakeMessenger) GetMessageStatus(ctx context.Context, messageID string) (*MessageStatus, error) {
	if f.status == nil {
		return nil, errors.New("not found")
	}
	return f.status, nil
}

func TestSendPrescription(t *testing.T) {
	fake := &fakeMessenger{messageID: "msg-1"}
	d := NewDispatcher(fake, nil, nil)

	result := d.SendPrescription(context.Background(), DocumentDelivery{
		PatientPhone: "+5511999999999",
		PatientName:  "Maria",
		DoctorName:   "Ana Souza",
		PDFURL:       "https://files.medko.com.br/p.pdf",
		Channel:      ChannelWhatsApp,
	})

	if !result.Success || result.MessageID != "msg-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if fake.lastParams.Channel != ChannelWhatsApp {
		t.Errorf("channel = %s", fake.lastParams.Channel)
	}
	if !strings.Contains(fake.lastParams.Message, "Olá Maria!") {
		t.Error("message should greet the patient by name")
	}
	if !strings.Contains(fake.lastParams.Message, "prescrição médica") {
		t.Error("message should name the document type")
	}
	if !strings.Contains(fake.lastParams.Message, "https://files.medko.com.br/p.pdf") {
		t.Error("message should carry the document link")
	}
	if !strings.Contains(fake.lastParams.Message, "qualquer farmácia") {
		t.Error("prescription message should mention pharmacy acceptance")
	}
}

func TestSendCertificate(t *testing.T) {
	fake := &fakeMessenger{messageID: "msg-2"}
	d := NewDispatcher(fake, nil, nil)

	result := d.SendCertificate(context.Background(), DocumentDelivery{
		PatientPhone: "+5511888888888",
		PatientName:  "João",
		DoctorName:   "Carlos Lima",
		PDFURL:       "https://files.medko.com.br/a.pdf",
		Channel:      ChannelSMS,
	})

	if !result.Success {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !strings.Contains(fake.lastParams.Message, "atestado médico") {
		t.Error("message should name the document type")
	}
	if strings.Contains(fake.lastParams.Message, "farmácia") {
		t.Error("certificate message should not mention pharmacies")
	}
}

func TestSendFailureReturnsResultNotError(t *testing.T) {
	fake := &fakeMessenger{err: errors.New("provider unavailable")}
	d := NewDispatcher(fake, nil, nil)

	result := d.SendPrescription(context.Background(), DocumentDelivery{
		PatientPhone: "+5511999999999",
		Channel:      ChannelSMS,
	})

	if result.Success {
		t.Error("expected failed result")
	}
	if result.Error != "provider unavailable" {
		t.Errorf("error = %q", result.Error)
	}
	if result.MessageID != "" {
		t.Errorf("message id should be empty on failure")
	}
}

func TestChannelIsValid(t *testing.T) {
	if !ChannelSMS.IsValid() || !ChannelWhatsApp.IsValid() {
		t.Error("supported channels must be valid")
	}
	if Channel("email").IsValid() {
		t.Error("email is not a supported channel")
	}
}
