package conversation

import (
	"context"
	"fmt"
	"log/slog"
)

// HistorySource reads the persisted turn sequence for a user. Implemented by
// the events store; the builder depends only on this read surface.
type HistorySource interface {
	GetConversationContext(ctx context.Context, userID string, limit int) ([]Turn, error)
}

// Builder reconstructs an ordered conversation context for one user.
type Builder struct {
	source HistorySource
	limit  int
	logger *slog.Logger
}

// NewBuilder creates a context builder bounded by limit turns.
func NewBuilder(log *slog.Logger, source HistorySource, limit int) *Builder {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = 20
	}
	return &Builder{
		source: source,
		limit:  limit,
		logger: log.With(slog.String("service", "conversation")),
	}
}

// Context returns the user's turns oldest-first plus the topic-continuity
// signal derived from them.
func (b *Builder) Context(ctx context.Context, userID string) ([]Turn, TopicRun, error) {
	if b.source == nil {
		return nil, TopicRun{}, fmt.Errorf("history source not configured")
	}
	turns, err := b.source.GetConversationContext(ctx, userID, b.limit)
	if err != nil {
		return nil, TopicRun{}, fmt.Errorf("load conversation context: %w", err)
	}
	run := AnalyzeTopicRun(turns)
	if run.SameTopicCount > 1 {
		b.logger.Debug("topic continuity",
			slog.String("user_id", userID),
			slog.String("topic", run.CurrentTopic),
			slog.Int("count", run.SameTopicCount))
	}
	return turns, run, nil
}
