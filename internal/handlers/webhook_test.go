package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newWebhookContext(t *testing.T, method, target string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWebhookVerifyChallenge(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler(nil, "verify-me", "", nil)
	c, rec := newWebhookContext(t, http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345")

	if err := h.Verify(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestWebhookVerifyRejectsBadToken(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler(nil, "verify-me", "", nil)
	c, _ := newWebhookContext(t, http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345")

	err := h.Verify(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("err = %v", err)
	}
}
