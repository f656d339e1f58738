// Package delivery sends finished documents to patients over SMS and
// WhatsApp through the Zenvia messaging API.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Channel is the outbound message channel
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// IsValid reports whether the channel is supported
func (c Channel) IsValid() bool {
	return c == ChannelSMS || c == ChannelWhatsApp
}

// ErrMissingAPIToken is returned when the client is built without credentials
var ErrMissingAPIToken = errors.New("zenvia api token is required")

// ZenviaConfig holds Zenvia client configuration
type ZenviaConfig struct {
	// APIURL is the Zenvia API base URL
	APIURL string
	// APIToken authenticates requests via the X-API-TOKEN header
	APIToken string
	// From is the default sender name
	From string
	// Timeout bounds each HTTP call
	Timeout time.Duration
}

// DefaultZenviaConfig returns production defaults minus the token
func DefaultZenviaConfig() ZenviaConfig {
	return ZenviaConfig{
		APIURL:  "https://api.zenvia.com/v2",
		From:    "Medko",
		Timeout: 10 * time.Second,
	}
}

// SendMessageParams describes a single outbound message
type SendMessageParams struct {
	// To is the recipient number in E.164 format, e.g. +5511999999999
	To      string
	Message string
	Channel Channel
	// From overrides the configured sender when set
	From string
}

// MessageStatus is the provider-side status of a sent message
type MessageStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ZenviaClient talks to the Zenvia v2 messaging API
type ZenviaClient struct {
	config ZenviaConfig
	http   *http.Client
	logger *zap.Logger
	tracer trace.Tracer
}

// NewZenviaClient creates a Zenvia API client
func NewZenviaClient(cfg ZenviaConfig, logger *zap.Logger) (*ZenviaClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIToken == "" {
		return nil, ErrMissingAPIToken
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultZenviaConfig().APIURL
	}
	if cfg.From == "" {
		cfg.From = DefaultZenviaConfig().From
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultZenviaConfig().Timeout
	}

	return &ZenviaClient{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		tracer: otel.Tracer("zenvia-client"),
	}, nil
}

type zenviaContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type zenviaMessage struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Contents []zenviaContent `json:"contents"`
}

type zenviaResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SendMessage posts a text message and returns the provider message id
func (z *ZenviaClient) SendMessage(ctx context.Context, params SendMessageParams) (string, error) {
	ctx, span := z.tracer.Start(ctx, "zenvia_send_message",
		trace.WithAttributes(
			attribute.String("channel", string(params.Channel)),
		))
	defer span.End()

	if !params.Channel.IsValid() {
		return "", fmt.Errorf("unsupported channel %q", params.Channel)
	}

	from := params.From
	if from == "" {
		from = z.config.From
	}

	body, err := json.Marshal(zenviaMessage{
		From: from,
		To:   params.To,
		Contents: []zenviaContent{
			{Type: "text", Text: params.Message},
		},
	})
	if err != nil {
		return "", fmt.Errorf("serialize message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/channels/%s/messages", z.config.APIURL, params.Channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-TOKEN", z.config.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := z.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var parsed zenviaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 300 {
		msg := parsed.Message
		if msg == "" {
			msg = resp.Status
		}
		err := fmt.Errorf("zenvia returned %d: %s", resp.StatusCode, msg)
		span.RecordError(err)
		return "", err
	}

	z.logger.Debug("message sent",
		zap.String("channel", string(params.Channel)),
		zap.String("message_id", parsed.ID))

	return parsed.ID, nil
}

// GetMessageStatus looks up the delivery status of a previously sent message
func (z *ZenviaClient) GetMessageStatus(ctx context.Context, messageID string) (*MessageStatus, error) {
	ctx, span := z.tracer.Start(ctx, "zenvia_message_status")
	defer span.End()

	endpoint := fmt.Sprintf("%s/messages/%s", z.config.APIURL, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-TOKEN", z.config.APIToken)

	resp, err := z.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get message status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("zenvia returned %d", resp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var status MessageStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}
