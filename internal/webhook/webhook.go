// Package webhook parses and verifies Meta webhook deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/pipeline"
)

var (
	ErrBadSignature = errors.New("webhook: signature mismatch")
	ErrBadPayload   = errors.New("webhook: unrecognized payload")
)

// Payload is the envelope Meta posts for both messaging and change events.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
	Changes   []Change         `json:"changes"`
}

// MessagingEvent is the direct messaging shape.
type MessagingEvent struct {
	Sender    Party    `json:"sender"`
	Recipient Party    `json:"recipient"`
	Timestamp int64    `json:"timestamp"`
	Message   *Message `json:"message"`
}

// Change wraps the same event when it arrives on the changes field, which
// some Instagram subscriptions use instead of messaging.
type Change struct {
	Field string         `json:"field"`
	Value MessagingEvent `json:"value"`
}

type Party struct {
	ID string `json:"id"`
}

type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL          string `json:"url"`
		AttachmentID string `json:"attachment_id"`
	} `json:"payload"`
}

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// body. An empty secret disables verification (local development).
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return nil
	}
	sig := strings.TrimPrefix(header, "sha256=")
	if sig == "" {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrBadSignature
	}
	return nil
}

// Parse decodes a webhook body into its envelope.
func Parse(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, ErrBadPayload
	}
	return p, nil
}

// Normalize flattens both payload shapes into pipeline events. Entries
// without a message (delivery receipts, read markers) are skipped.
func Normalize(p Payload) []pipeline.InboundEvent {
	var out []pipeline.InboundEvent
	for _, entry := range p.Entry {
		for _, m := range entry.Messaging {
			if ev, ok := toEvent(m); ok {
				out = append(out, ev)
			}
		}
		for _, ch := range entry.Changes {
			if ev, ok := toEvent(ch.Value); ok {
				out = append(out, ev)
			}
		}
	}
	return out
}

func toEvent(m MessagingEvent) (pipeline.InboundEvent, bool) {
	if m.Message == nil {
		return pipeline.InboundEvent{}, false
	}
	ev := pipeline.InboundEvent{
		SenderID:    m.Sender.ID,
		RecipientID: m.Recipient.ID,
		Text:        m.Message.Text,
		IsEcho:      m.Message.IsEcho,
	}
	for _, att := range m.Message.Attachments {
		switch att.Type {
		case "image", "share":
			if att.Payload.URL != "" {
				ev.Attachments = append(ev.Attachments, att.Payload.URL)
			} else if att.Payload.AttachmentID != "" {
				ev.Attachments = append(ev.Attachments, att.Payload.AttachmentID)
			}
		}
	}
	if ev.Text == "" && len(ev.Attachments) == 0 {
		return pipeline.InboundEvent{}, false
	}
	return ev, true
}
