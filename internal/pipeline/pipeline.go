// Package pipeline runs one inbound message through the full flow: logging,
// presence, orchestration, and delivery.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/directive"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/events"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/orchestrator"
)

// InboundEvent is one normalized webhook messaging event.
type InboundEvent struct {
	SenderID    string
	RecipientID string
	Text        string
	Attachments []string
	// IsEcho marks messages the page itself sent; these are dropped
	// before any model or delivery work happens.
	IsEcho bool
}

// Responder produces a reply for one inbound message.
type Responder interface {
	Respond(ctx context.Context, userID, text string, attachments []string) orchestrator.Reply
}

// Sender delivers replies and presence signals to the user.
type Sender interface {
	SendText(ctx context.Context, userID, text string, d directive.Directive) error
	MarkSeen(ctx context.Context, userID string) error
	SetTyping(ctx context.Context, userID string, on bool) error
}

// Pipeline serializes processing per user so two rapid messages from the
// same person cannot interleave their context reads and writes.
type Pipeline struct {
	logger    *slog.Logger
	responder Responder
	sender    Sender
	events    *events.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(log *slog.Logger, responder Responder, sender Sender, eventLog *events.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		logger:    log.With(slog.String("service", "pipeline")),
		responder: responder,
		sender:    sender,
		events:    eventLog,
		locks:     make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex for one sender, creating it on first use.
// Locks are never evicted; the per-user footprint is one mutex.
func (p *Pipeline) userLock(userID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[userID] = l
	}
	return l
}

// Process handles one inbound event end to end. Echo events are dropped
// without logging a received event or touching the model.
func (p *Pipeline) Process(ctx context.Context, ev InboundEvent) error {
	if ev.IsEcho {
		p.logger.Debug("dropping echo event", slog.String("sender_id", ev.SenderID))
		return nil
	}
	if ev.SenderID == "" {
		p.logger.Warn("dropping event without sender")
		return nil
	}

	lock := p.userLock(ev.SenderID)
	lock.Lock()
	defer lock.Unlock()

	p.events.LogReceived(ev.SenderID, ev.RecipientID, ev.Text)

	// Presence is cosmetic; failures must not block the reply.
	if err := p.sender.MarkSeen(ctx, ev.SenderID); err != nil {
		p.logger.Debug("mark seen failed", slog.String("error", err.Error()))
	}
	if err := p.sender.SetTyping(ctx, ev.SenderID, true); err != nil {
		p.logger.Debug("typing on failed", slog.String("error", err.Error()))
	}

	started := time.Now()
	reply := p.responder.Respond(ctx, ev.SenderID, ev.Text, ev.Attachments)
	latency := time.Since(started).Milliseconds()

	if err := p.sender.SetTyping(ctx, ev.SenderID, false); err != nil {
		p.logger.Debug("typing off failed", slog.String("error", err.Error()))
	}

	if err := p.sender.SendText(ctx, ev.SenderID, reply.Text, reply.Directive); err != nil {
		p.events.LogFailed(ev.SenderID, ev.RecipientID, ev.Text, err)
		p.logger.Error("delivery failed",
			slog.String("sender_id", ev.SenderID),
			slog.String("error", err.Error()))
		return err
	}

	p.events.LogSent(events.SentRecord{
		SenderID:     ev.SenderID,
		RecipientID:  ev.RecipientID,
		MessageText:  ev.Text,
		ResponseText: reply.Text,
		Intent:       reply.Directive.Intent,
		Entities:     reply.Directive.Entities,
		DeepLink:     reply.Directive.DeepLink,
		LatencyMs:    latency,
	})
	p.logger.Info("reply delivered",
		slog.String("sender_id", ev.SenderID),
		slog.String("intent", reply.Directive.Intent),
		slog.Int64("latency_ms", latency),
		slog.Bool("fallback", reply.Fallback))
	return nil
}
