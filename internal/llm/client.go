package llm

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
)

// ErrMissingAPIKey indicates the backend credential is not configured.
var ErrMissingAPIKey = errors.New("llm api key is not configured")

const responseMaxBodyBytes int64 = 4 << 20 // 4 MiB

// Client calls an OpenAI-compatible chat-completions backend. Clients are
// constructor-injected so tests can substitute fakes without module-state
// reset.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a chat-completions client.
func NewClient(log *slog.Logger, apiKey, baseURL string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("service", "llm")),
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []Tool        `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat performs one chat-completion call.
func (c *Client) Chat(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return Result{}, ErrMissingAPIKey
	}
	if req.Model == "" {
		return Result{}, fmt.Errorf("model is required")
	}

	payload := chatPayload{
		Model:       req.Model,
		Tools:       req.Tools,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	for _, msg := range req.Messages {
		wire := wireMessage{Role: msg.Role}
		if len(msg.Parts) > 0 {
			wire.Content = msg.Parts
		} else {
			wire.Content = msg.Content
		}
		payload.Messages = append(payload.Messages, wire)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, responseMaxBodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode chat response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return Result{}, fmt.Errorf("chat backend error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("chat backend status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("chat backend returned no choices")
	}

	choice := parsed.Choices[0]
	return Result{
		Content:   choice.Message.Content,
		ToolCalls: choice.Message.ToolCalls,
	}, nil
}

// AnalyzeImage runs a single-image vision request and returns the raw model
// output.
func (c *Client) AnalyzeImage(ctx context.Context, model, imageURL, prompt string) (string, error) {
	result, err := c.Chat(ctx, Request{
		Model:     model,
		MaxTokens: 500,
		Messages: []Message{
			{
				Role: RoleUser,
				Parts: []ContentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &ImageRef{URL: imageURL}},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return result.Content, nil
}
