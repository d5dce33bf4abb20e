package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/pipeline"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/webhook"
)

const maxWebhookBody = 1 << 20

// WebhookHandler terminates Meta webhook traffic: subscription verification
// on GET, event delivery on POST.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	pipeline    *pipeline.Pipeline
	logger      *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, verifyToken, appSecret string, p *pipeline.Pipeline) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		pipeline:    p,
		logger:      log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhook", h.Verify)
	e.POST("/webhook", h.Receive)
}

// Verify answers Meta's subscription handshake.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		h.logger.Info("webhook verified")
		return c.String(http.StatusOK, challenge)
	}
	h.logger.Warn("webhook verification rejected", slog.String("mode", mode))
	return echo.NewHTTPError(http.StatusForbidden, "verification failed")
}

// Receive acknowledges a delivery immediately and processes its events in
// the background. Meta retries slow responders, so nothing model-shaped
// happens on this request path.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	sig := c.Request().Header.Get("X-Hub-Signature-256")
	if err := webhook.VerifySignature(h.appSecret, body, sig); err != nil {
		h.logger.Warn("signature rejected")
		return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
	}

	payload, err := webhook.Parse(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	events := webhook.Normalize(payload)
	bg := context.WithoutCancel(c.Request().Context())
	for _, ev := range events {
		ev := ev
		go func() {
			if err := h.pipeline.Process(bg, ev); err != nil {
				h.logger.Error("event processing failed",
					slog.String("sender_id", ev.SenderID),
					slog.String("error", err.Error()))
			}
		}()
	}
	return c.String(http.StatusOK, "EVENT_RECEIVED")
}
