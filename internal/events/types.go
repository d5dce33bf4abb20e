// Package events persists and reads webhook event records.
package events

import (
	"context"
	"time"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/conversation"
)

// EventType classifies a webhook event record.
type EventType string

const (
	EventMessageReceived EventType = "message_received"
	EventMessageSent     EventType = "message_sent"
	EventMessageFailed   EventType = "message_failed"
)

// WebhookEvent is the durable record of one inbound or outbound occurrence.
// Records are append-only; only DeepLinkClicked is ever flipped after creation.
type WebhookEvent struct {
	ID              string         `json:"id"`
	EventType       EventType      `json:"event_type"`
	SenderID        string         `json:"sender_id"`
	RecipientID     string         `json:"recipient_id"`
	MessageText     string         `json:"message_text,omitempty"`
	ResponseText    string         `json:"response_text,omitempty"`
	Status          string         `json:"status"`
	Intent          string         `json:"intent,omitempty"`
	Entities        map[string]any `json:"entities,omitempty"`
	DeepLink        string         `json:"deep_link,omitempty"`
	LatencyMs       int64          `json:"latency_ms,omitempty"`
	DeepLinkClicked bool           `json:"deep_link_clicked"`
	CreatedAt       time.Time      `json:"created_at"`
}

// CreateEventInput carries the fields for a new event record.
type CreateEventInput struct {
	EventType    EventType
	SenderID     string
	RecipientID  string
	MessageText  string
	ResponseText string
	Status       string
	Intent       string
	Entities     map[string]any
	DeepLink     string
	LatencyMs    int64
}

// Store is the persistence collaborator for the pipeline. The core never
// issues raw queries outside of the implementation of this interface.
type Store interface {
	CreateEvent(ctx context.Context, input CreateEventInput) (WebhookEvent, error)
	GetConversationContext(ctx context.Context, userID string, limit int) ([]conversation.Turn, error)
	MarkDeepLinkClicked(ctx context.Context, eventID string) error
	ListRecentEvents(ctx context.Context, senderID string, limit int) ([]WebhookEvent, error)
	ListAnalyzedMedia(ctx context.Context, userID string) ([]string, error)
	MarkMediaAnalyzed(ctx context.Context, userID string, hashes []string) error
}
