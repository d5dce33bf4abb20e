package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/conversation"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/events"
)

type stubEventStore struct {
	events     []events.WebhookEvent
	clicked    []string
	clickErr   error
	listLimit  int
	listSender string
}

func (s *stubEventStore) CreateEvent(context.Context, events.CreateEventInput) (events.WebhookEvent, error) {
	return events.WebhookEvent{}, nil
}

func (s *stubEventStore) GetConversationContext(context.Context, string, int) ([]conversation.Turn, error) {
	return nil, nil
}

func (s *stubEventStore) MarkDeepLinkClicked(_ context.Context, eventID string) error {
	if s.clickErr != nil {
		return s.clickErr
	}
	s.clicked = append(s.clicked, eventID)
	return nil
}

func (s *stubEventStore) ListRecentEvents(_ context.Context, senderID string, limit int) ([]events.WebhookEvent, error) {
	s.listSender = senderID
	s.listLimit = limit
	return s.events, nil
}

func (s *stubEventStore) ListAnalyzedMedia(context.Context, string) ([]string, error) {
	return nil, nil
}
func (s *stubEventStore) MarkMediaAnalyzed(context.Context, string, []string) error { return nil }

func TestListEvents(t *testing.T) {
	t.Parallel()

	store := &stubEventStore{events: []events.WebhookEvent{{ID: "e1"}, {ID: "e2"}}}
	h := NewEventsHandler(nil, store)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=10&sender_id=u1", nil)
	rec := httptest.NewRecorder()

	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.listLimit != 10 || store.listSender != "u1" {
		t.Fatalf("query passed limit=%d sender=%q", store.listLimit, store.listSender)
	}
}

func TestListEventsBadLimit(t *testing.T) {
	t.Parallel()

	h := NewEventsHandler(nil, &stubEventStore{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=-1", nil)
	rec := httptest.NewRecorder()

	err := h.List(e.NewContext(req, rec))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("err = %v", err)
	}
}

func TestMarkDeepLinkClicked(t *testing.T) {
	t.Parallel()

	store := &stubEventStore{}
	h := NewEventsHandler(nil, store)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/events/:id/deep-link-click")
	c.SetParamNames("id")
	c.SetParamValues("evt-1")

	if err := h.MarkDeepLinkClicked(c); err != nil {
		t.Fatal(err)
	}
	if len(store.clicked) != 1 || store.clicked[0] != "evt-1" {
		t.Fatalf("clicked = %v", store.clicked)
	}
}

func TestMarkDeepLinkClickedNotFound(t *testing.T) {
	t.Parallel()

	store := &stubEventStore{clickErr: pgx.ErrNoRows}
	h := NewEventsHandler(nil, store)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/events/:id/deep-link-click")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.MarkDeepLinkClicked(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("err = %v", err)
	}
}
