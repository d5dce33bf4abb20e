package events

import (
	"context"
	"log/slog"
	"time"
)

const writeTimeout = 10 * time.Second

// Logger writes event records best-effort. Writes are issued on their own
// goroutine and never block or fail the message flow; failures are logged
// and dropped.
type Logger struct {
	store  Store
	logger *slog.Logger
}

// NewLogger creates the best-effort event logger.
func NewLogger(log *slog.Logger, store Store) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{
		store:  store,
		logger: log.With(slog.String("service", "event_log")),
	}
}

// LogReceived records an inbound message.
func (l *Logger) LogReceived(senderID, recipientID, text string) {
	l.write(CreateEventInput{
		EventType:   EventMessageReceived,
		SenderID:    senderID,
		RecipientID: recipientID,
		MessageText: text,
		Status:      "received",
	})
}

// SentRecord carries the outbound fields worth auditing.
type SentRecord struct {
	SenderID     string
	RecipientID  string
	MessageText  string
	ResponseText string
	Intent       string
	Entities     map[string]any
	DeepLink     string
	LatencyMs    int64
}

// LogSent records a delivered reply.
func (l *Logger) LogSent(rec SentRecord) {
	l.write(CreateEventInput{
		EventType:    EventMessageSent,
		SenderID:     rec.SenderID,
		RecipientID:  rec.RecipientID,
		MessageText:  rec.MessageText,
		ResponseText: rec.ResponseText,
		Status:       "sent",
		Intent:       rec.Intent,
		Entities:     rec.Entities,
		DeepLink:     rec.DeepLink,
		LatencyMs:    rec.LatencyMs,
	})
}

// LogFailed records a delivery failure.
func (l *Logger) LogFailed(senderID, recipientID, text string, sendErr error) {
	input := CreateEventInput{
		EventType:    EventMessageFailed,
		SenderID:     senderID,
		RecipientID:  recipientID,
		ResponseText: text,
		Status:       "failed",
	}
	if sendErr != nil {
		input.Entities = map[string]any{"error": sendErr.Error()}
	}
	l.write(input)
}

func (l *Logger) write(input CreateEventInput) {
	if l.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if _, err := l.store.CreateEvent(ctx, input); err != nil {
			l.logger.Warn("event write failed",
				slog.String("event_type", string(input.EventType)),
				slog.Any("error", err))
		}
	}()
}
