package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/conversation"
	dbpkg "github.com/nickloopdsp/MC-Instagram-sub000/internal/db"
)

// PGStore is the Postgres-backed Store implementation.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGStore creates a Postgres event store.
func NewPGStore(log *slog.Logger, pool *pgxpool.Pool) *PGStore {
	if log == nil {
		log = slog.Default()
	}
	return &PGStore{
		pool:   pool,
		logger: log.With(slog.String("service", "event_store")),
	}
}

const createEventSQL = `
INSERT INTO webhook_events (
    id, event_type, sender_id, recipient_id, message_text, response_text,
    status, intent, entities, deep_link, latency_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING created_at`

// CreateEvent appends one event record and returns it with generated fields.
func (s *PGStore) CreateEvent(ctx context.Context, input CreateEventInput) (WebhookEvent, error) {
	if input.EventType == "" {
		return WebhookEvent{}, fmt.Errorf("event type is required")
	}
	status := input.Status
	if status == "" {
		status = "received"
	}
	entities, err := json.Marshal(nonNilMap(input.Entities))
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("marshal entities: %w", err)
	}

	event := WebhookEvent{
		ID:           uuid.NewString(),
		EventType:    input.EventType,
		SenderID:     input.SenderID,
		RecipientID:  input.RecipientID,
		MessageText:  input.MessageText,
		ResponseText: input.ResponseText,
		Status:       status,
		Intent:       input.Intent,
		Entities:     input.Entities,
		DeepLink:     input.DeepLink,
		LatencyMs:    input.LatencyMs,
	}

	var createdAt pgtype.Timestamptz
	err = s.pool.QueryRow(ctx, createEventSQL,
		event.ID,
		string(event.EventType),
		event.SenderID,
		event.RecipientID,
		dbpkg.ToPgText(event.MessageText),
		dbpkg.ToPgText(event.ResponseText),
		event.Status,
		dbpkg.ToPgText(event.Intent),
		entities,
		dbpkg.ToPgText(event.DeepLink),
		dbpkg.ToPgInt8(event.LatencyMs),
	).Scan(&createdAt)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("insert event: %w", err)
	}
	event.CreatedAt = createdAt.Time
	return event, nil
}

const conversationContextSQL = `
SELECT event_type, message_text, response_text, intent, created_at
FROM webhook_events
WHERE (sender_id = $1 OR recipient_id = $1)
  AND event_type IN ('message_received', 'message_sent')
ORDER BY created_at DESC
LIMIT $2`

// GetConversationContext returns turns for the user, newest-bounded by limit
// but ordered oldest-first for presentation to the model.
func (s *PGStore) GetConversationContext(ctx context.Context, userID string, limit int) ([]conversation.Turn, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, conversationContextSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query context: %w", err)
	}
	defer rows.Close()

	newestFirst := make([]conversation.Turn, 0, limit)
	for rows.Next() {
		var (
			eventType    string
			messageText  pgtype.Text
			responseText pgtype.Text
			intent       pgtype.Text
			createdAt    pgtype.Timestamptz
		)
		if err := rows.Scan(&eventType, &messageText, &responseText, &intent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan context row: %w", err)
		}
		switch EventType(eventType) {
		case EventMessageReceived:
			newestFirst = append(newestFirst, conversation.Turn{
				UserText: dbpkg.TextToString(messageText),
			})
		case EventMessageSent:
			newestFirst = append(newestFirst, conversation.Turn{
				AssistantText: dbpkg.TextToString(responseText),
				Intent:        dbpkg.TextToString(intent),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate context rows: %w", err)
	}

	// Reverse to oldest-first.
	turns := make([]conversation.Turn, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		turns = append(turns, newestFirst[i])
	}
	return turns, nil
}

// MarkDeepLinkClicked flips the deep_link_clicked flag on a delivered event.
func (s *PGStore) MarkDeepLinkClicked(ctx context.Context, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return fmt.Errorf("event id is required")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE webhook_events SET deep_link_clicked = TRUE WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("mark deep link clicked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const listRecentSQL = `
SELECT id, event_type, sender_id, recipient_id, message_text, response_text,
       status, intent, entities, deep_link, latency_ms, deep_link_clicked, created_at
FROM webhook_events
WHERE ($1 = '' OR sender_id = $1 OR recipient_id = $1)
ORDER BY created_at DESC
LIMIT $2`

// ListRecentEvents returns the newest events, optionally filtered by user.
func (s *PGStore) ListRecentEvents(ctx context.Context, senderID string, limit int) ([]WebhookEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, listRecentSQL, senderID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]WebhookEvent, 0, limit)
	for rows.Next() {
		var (
			event        WebhookEvent
			eventType    string
			messageText  pgtype.Text
			responseText pgtype.Text
			intent       pgtype.Text
			entities     []byte
			deepLink     pgtype.Text
			latencyMs    pgtype.Int8
			createdAt    pgtype.Timestamptz
		)
		if err := rows.Scan(
			&event.ID, &eventType, &event.SenderID, &event.RecipientID,
			&messageText, &responseText, &event.Status, &intent, &entities,
			&deepLink, &latencyMs, &event.DeepLinkClicked, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		event.EventType = EventType(eventType)
		event.MessageText = dbpkg.TextToString(messageText)
		event.ResponseText = dbpkg.TextToString(responseText)
		event.Intent = dbpkg.TextToString(intent)
		event.DeepLink = dbpkg.TextToString(deepLink)
		event.LatencyMs = latencyMs.Int64
		event.CreatedAt = createdAt.Time
		if len(entities) > 0 {
			if err := json.Unmarshal(entities, &event.Entities); err != nil {
				s.logger.Warn("unmarshal event entities failed",
					slog.String("event_id", event.ID), slog.Any("error", err))
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ListAnalyzedMedia returns the content hashes already analyzed for a user.
func (s *PGStore) ListAnalyzedMedia(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content_hash FROM analyzed_media WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query analyzed media: %w", err)
	}
	defer rows.Close()

	hashes := make([]string, 0)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan analyzed media: %w", err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

// MarkMediaAnalyzed records content hashes as analyzed for a user.
func (s *PGStore) MarkMediaAnalyzed(ctx context.Context, userID string, hashes []string) error {
	for _, hash := range hashes {
		if strings.TrimSpace(hash) == "" {
			continue
		}
		_, err := s.pool.Exec(ctx,
			`INSERT INTO analyzed_media (user_id, content_hash) VALUES ($1, $2)
			 ON CONFLICT (user_id, content_hash) DO NOTHING`,
			userID, hash)
		if err != nil {
			return fmt.Errorf("mark media analyzed: %w", err)
		}
	}
	return nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
