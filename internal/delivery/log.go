package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medko/receita-core/internal/domain/document"
	"github.com/medko/receita-core/internal/infrastructure/kafka"
	"github.com/medko/receita-core/internal/infrastructure/postgres"
)

// Log is one recorded delivery attempt. Attempts are append-only; a resend
// produces a new row.
type Log struct {
	ID           string        `json:"id"`
	DocumentID   string        `json:"documentId"`
	DocumentKind document.Kind `json:"documentKind"`
	Channel      Channel       `json:"channel"`
	To           string        `json:"to"`
	Success      bool          `json:"success"`
	MessageID    string        `json:"messageId,omitempty"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// NewLog builds a log row from a send result
func NewLog(documentID string, kind document.Kind, channel Channel, to string, result SendResult) *Log {
	return &Log{
		ID:           uuid.New().String(),
		DocumentID:   documentID,
		DocumentKind: kind,
		Channel:      channel,
		To:           to,
		Success:      result.Success,
		MessageID:    result.MessageID,
		Error:        result.Error,
		CreatedAt:    time.Now().UTC(),
	}
}

// LogRepository persists delivery attempts and emits the matching
// DocumentSent event through the transactional outbox.
type LogRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewLogRepository creates a new log repository
func NewLogRepository(pool *pgxpool.Pool, logger *zap.Logger) *LogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRepository{pool: pool, logger: logger}
}

// Record inserts the delivery attempt and its event in one transaction
func (r *LogRepository) Record(ctx context.Context, l *Log) error {
	event, err := document.NewEvent(l.DocumentID, l.DocumentKind, document.EventDocumentSent, &document.DocumentSentData{
		DocumentID: l.DocumentID,
		Channel:    string(l.Channel),
		Success:    l.Success,
		MessageID:  l.MessageID,
		Error:      l.Error,
	})
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO delivery_log
		(id, document_id, document_kind, channel, recipient, success, message_id, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := tx.Exec(ctx, query,
		l.ID, l.DocumentID, string(l.DocumentKind), string(l.Channel),
		l.To, l.Success, l.MessageID, l.Error, l.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}

	entry := &postgres.OutboxEntry{
		AggregateID:   l.DocumentID,
		AggregateType: string(l.DocumentKind),
		EventType:     string(document.EventDocumentSent),
		Payload:       payload,
		KafkaTopic:    kafka.TopicDocumentEvents,
		KafkaKey:      l.DocumentID,
	}
	if err := postgres.WriteEntry(ctx, tx, entry); err != nil {
		return err
	}

	// Patient deliveries are mirrored to the long-retention audit topic.
	audit := *entry
	audit.ID = 0
	audit.KafkaTopic = kafka.TopicAuditTrail
	if err := postgres.WriteEntry(ctx, tx, &audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Info("delivery recorded",
		zap.String("document_id", l.DocumentID),
		zap.String("channel", string(l.Channel)),
		zap.Bool("success", l.Success))
	return nil
}

// ListByDocument returns the delivery history of a document, newest first
func (r *LogRepository) ListByDocument(ctx context.Context, documentID string) ([]*Log, error) {
	query := `
		SELECT id, document_id, document_kind, channel, recipient, success, message_id, error, created_at
		FROM delivery_log
		WHERE document_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Log
	for rows.Next() {
		l := &Log{}
		var kind, channel string
		var messageID, errMsg *string
		if err := rows.Scan(
			&l.ID, &l.DocumentID, &kind, &channel, &l.To,
			&l.Success, &messageID, &errMsg, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery log: %w", err)
		}
		l.DocumentKind = document.Kind(kind)
		l.Channel = Channel(channel)
		if messageID != nil {
			l.MessageID = *messageID
		}
		if errMsg != nil {
			l.Error = *errMsg
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
