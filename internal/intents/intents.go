// Package intents maps model function calls to routing intents and deep links.
package intents

import (
	"context"
	"strings"
)

// Well-known intents.
const (
	IntentMoodboardAdd      = "moodboard.add"
	IntentNetworkSuggest    = "network.suggest"
	IntentTaskCreate        = "task.create"
	IntentStrategyRecommend = "strategy.recommend"
	IntentChatGeneric       = "chat.generic"
	IntentNone              = "none"
)

// functionIntents is the closed mapping from tool function names to intents.
// Unknown functions fall through to chat.generic.
var functionIntents = map[string]string{
	"save_to_moodboard":     IntentMoodboardAdd,
	"search_music_contacts": IntentNetworkSuggest,
	"create_reminder_task":  IntentTaskCreate,
	"get_artist_analytics":  IntentStrategyRecommend,
	"quick_music_tip":       IntentChatGeneric,
	"identify_user_need":    IntentNone,
}

// IntentForFunction resolves a tool function name to its routing intent.
func IntentForFunction(name string) string {
	if intent, ok := functionIntents[strings.TrimSpace(name)]; ok {
		return intent
	}
	return IntentChatGeneric
}

// Guidance is the routing result for one resolved intent.
type Guidance struct {
	DeepLink        string `json:"deep_link,omitempty"`
	GuidanceMessage string `json:"guidance_message,omitempty"`
}

// GuidanceProvider produces deep links and guidance copy for an intent.
// The orchestrator treats it as authoritative when the model's own directive
// lacks a deep link. External collaborator; non-mutating.
type GuidanceProvider interface {
	ProcessIntent(ctx context.Context, intent string, entities map[string]any) (Guidance, error)
}

// StaticGuidance maps intents to dashboard deep links under a base URL.
type StaticGuidance struct {
	baseURL string
}

// NewStaticGuidance creates the default guidance provider.
func NewStaticGuidance(baseURL string) *StaticGuidance {
	return &StaticGuidance{baseURL: strings.TrimRight(baseURL, "/")}
}

var intentPaths = map[string]string{
	IntentMoodboardAdd:      "/moodboard",
	IntentNetworkSuggest:    "/network",
	IntentTaskCreate:        "/tasks",
	IntentStrategyRecommend: "/analytics",
}

// ProcessIntent returns the deep link for an intent. Intents without a
// dashboard surface return empty guidance.
func (g *StaticGuidance) ProcessIntent(_ context.Context, intent string, _ map[string]any) (Guidance, error) {
	path, ok := intentPaths[intent]
	if !ok {
		return Guidance{}, nil
	}
	return Guidance{DeepLink: g.baseURL + path}, nil
}
