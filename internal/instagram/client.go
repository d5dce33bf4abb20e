// Package instagram sends messages through the Instagram Graph messaging API.
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/directive"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	maxResponseBytes   = 1 << 20
)

// ClientConfig carries the credentials and tuning for outbound delivery.
type ClientConfig struct {
	BaseURL      string
	GraphVersion string
	AccessToken  string
	DeepLinkBase string
	MaxAttempts  int
	BaseDelay    time.Duration
}

// Client delivers messages to Instagram users. All sends pass through the
// sliding-window limiter plus a short-interval smoother so bursts inside the
// window still pace out.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *RateLimiter
	smoother   *rate.Limiter
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

// NewClient builds a delivery client. limiter may be nil to disable capping.
func NewClient(log *slog.Logger, cfg ClientConfig, limiter *RateLimiter) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    limiter,
		smoother:   rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		logger:     log.With(slog.String("service", "instagram")),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type quickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

type messagePayload struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text         string       `json:"text"`
		QuickReplies []quickReply `json:"quick_replies,omitempty"`
	} `json:"message"`
}

// SendText delivers text to userID. Any [ACTION] blocks are stripped before
// delivery; the directive's deep link (or the configured default) rides along
// as a quick reply so the user always has a path into the dashboard.
func (c *Client) SendText(ctx context.Context, userID, text string, d directive.Directive) error {
	clean := directive.Strip(text)
	if clean == "" {
		return fmt.Errorf("instagram: refusing to send empty message to %s", userID)
	}

	deepLink := d.DeepLink
	if deepLink == "" {
		deepLink = c.cfg.DeepLinkBase
	}

	var payload messagePayload
	payload.Recipient.ID = userID
	payload.Message.Text = clean
	if deepLink != "" {
		payload.Message.QuickReplies = []quickReply{{
			ContentType: "text",
			Title:       "Open Dashboard",
			Payload:     deepLink,
		}}
	}
	return c.post(ctx, payload)
}

// MarkSeen acknowledges the user's last message.
func (c *Client) MarkSeen(ctx context.Context, userID string) error {
	return c.senderAction(ctx, userID, "mark_seen")
}

// SetTyping toggles the typing indicator.
func (c *Client) SetTyping(ctx context.Context, userID string, on bool) error {
	action := "typing_on"
	if !on {
		action = "typing_off"
	}
	return c.senderAction(ctx, userID, action)
}

func (c *Client) senderAction(ctx context.Context, userID, action string) error {
	body := map[string]any{
		"recipient":     map[string]string{"id": userID},
		"sender_action": action,
	}
	return c.post(ctx, body)
}

// post sends one Graph API request with retries. Every outbound call,
// sender actions included, spends the same hourly window. Server-side
// failures back off exponentially; 4xx responses abort immediately since
// retrying a rejected payload cannot succeed.
func (c *Client) post(ctx context.Context, body any) error {
	if c.limiter != nil {
		if err := c.limiter.Allow(); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/me/messages?access_token=%s",
		c.cfg.BaseURL, c.cfg.GraphVersion, c.cfg.AccessToken)

	var lastErr error
	delay := c.cfg.BaseDelay
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
		if err := c.smoother.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.doOnce(ctx, endpoint, raw)
		if lastErr == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return lastErr
		}
		c.logger.Warn("send attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()))
	}
	return fmt.Errorf("send after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, endpoint string, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph api request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}

// ResolveAttachment looks up the CDN URL behind a message attachment id.
// Satisfies the media proxy's resolver.
func (c *Client) ResolveAttachment(ctx context.Context, attachmentID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s?fields=file_url,image_data&access_token=%s",
		c.cfg.BaseURL, c.cfg.GraphVersion, attachmentID, c.cfg.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph api request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var payload struct {
		FileURL   string `json:"file_url"`
		URL       string `json:"url"`
		ImageData struct {
			URL string `json:"url"`
		} `json:"image_data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("decode attachment: %w", err)
	}
	switch {
	case payload.FileURL != "":
		return payload.FileURL, nil
	case payload.ImageData.URL != "":
		return payload.ImageData.URL, nil
	case payload.URL != "":
		return payload.URL, nil
	}
	return "", fmt.Errorf("attachment %s has no media url", attachmentID)
}

// APIError is a non-2xx Graph API response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api status %d: %s", e.Status, e.Body)
}
