package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestZenviaSendMessage(t *testing.T) {
	var gotPath, gotToken string
	var gotBody zenviaMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-API-TOKEN")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"id": "zv-123"})
	}))
	defer server.Close()

	client, err := NewZenviaClient(ZenviaConfig{APIURL: server.URL, APIToken: "secret"}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	id, err := client.SendMessage(context.Background(), SendMessageParams{
		To:      "+5511999999999",
		Message: "oi",
		Channel: ChannelWhatsApp,
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if id != "zv-123" {
		t.Errorf("message id = %s", id)
	}
	if gotPath != "/channels/whatsapp/messages" {
		t.Errorf("path = %s", gotPath)
	}
	if gotToken != "secret" {
		t.Errorf("token header = %s", gotToken)
	}
	if gotBody.From != "Medko" {
		t.Errorf("default sender = %s", gotBody.From)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Type != "text" || gotBody.Contents[0].Text != "oi" {
		t.Errorf("unexpected contents: %+v", gotBody.Contents)
	}
}

func TestZenviaSendMessageProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid token"})
	}))
	defer server.Close()

	client, _ := NewZenviaClient(ZenviaConfig{APIURL: server.URL, APIToken: "bad"}, nil)

	_, err := client.SendMessage(context.Background(), SendMessageParams{
		To:      "+5511999999999",
		Message: "oi",
		Channel: ChannelSMS,
	})
	if err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestZenviaUnsupportedChannel(t *testing.T) {
	client, _ := NewZenviaClient(ZenviaConfig{APIURL: "http://localhost", APIToken: "t"}, nil)
	if _, err := client.SendMessage(context.Background(), SendMessageParams{Channel: Channel("pombo")}); err == nil {
		t.Error("expected error for unsupported channel")
	}
}

func TestZenviaRequiresToken(t *testing.T) {
	if _, err := NewZenviaClient(ZenviaConfig{}, nil); err != ErrMissingAPIToken {
		t.Errorf("expected ErrMissingAPIToken, got %v", err)
	}
}

func TestZenviaGetMessageStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages/zv-123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(MessageStatus{Status: "DELIVERED", Timestamp: "2026-01-02T10:00:00Z"})
	}))
	defer server.Close()

	client, _ := NewZenviaClient(ZenviaConfig{APIURL: server.URL, APIToken: "t"}, nil)

	status, err := client.GetMessageStatus(context.Background(), "zv-123")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Status != "DELIVERED" {
		t.Errorf("status = %s", status.Status)
	}
}
