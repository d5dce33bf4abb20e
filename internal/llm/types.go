// Package llm provides the chat-completion client and model selection rules.
package llm

import "encoding/json"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat-completion message. Content is a plain string for text
// turns; vision turns use Parts instead.
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"-"`
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

// ImageRef wraps an image URL or data URI.
type ImageRef struct {
	URL string `json:"url"`
}

// Tool declares one callable function to the model.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a function's name and JSON-schema parameters.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ParsedArguments decodes the tool call's JSON argument string.
func (tc ToolCall) ParsedArguments() map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return map[string]any{}
	}
	return args
}

// Request is one chat-completion invocation.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []Tool
	MaxTokens   int
	Temperature float32
}

// Result is the model's reply.
type Result struct {
	Content   string
	ToolCalls []ToolCall
}
