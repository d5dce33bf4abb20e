// Package conversation defines conversation turns and the topic-continuity signal.
package conversation

// Intent values that carry no topical weight.
const (
	IntentGeneric = "chat.generic"
	IntentNone    = "none"
)

// Turn is one half of an exchange: either a user message or an assistant
// reply. A full exchange is two adjacent turns (user first), and sequences
// are ordered oldest-first when presented to the model.
type Turn struct {
	UserText      string `json:"user_text,omitempty"`
	AssistantText string `json:"assistant_text,omitempty"`
	Intent        string `json:"intent,omitempty"`
}

// IsUser reports whether the turn is the user half of an exchange.
func (t Turn) IsUser() bool {
	return t.UserText != ""
}

// IsAssistant reports whether the turn is the assistant half of an exchange.
func (t Turn) IsAssistant() bool {
	return t.AssistantText != ""
}

// TopicRun describes how long the conversation has stayed on one topic.
// The signal is surfaced but not acted upon; routing decisions based on it
// are pending product direction.
type TopicRun struct {
	SameTopicCount int    `json:"same_topic_count"`
	CurrentTopic   string `json:"current_topic,omitempty"`
}

// trivialIntent reports whether the intent carries no topical signal.
func trivialIntent(intent string) bool {
	return intent == "" || intent == IntentGeneric || intent == IntentNone
}

// AnalyzeTopicRun scans backward from the most recent turn and counts how
// many consecutive turns share the newest non-trivial intent. Turns without
// a topical intent are skipped; the first differing non-trivial intent stops
// the scan.
func AnalyzeTopicRun(turns []Turn) TopicRun {
	var run TopicRun
	for i := len(turns) - 1; i >= 0; i-- {
		intent := turns[i].Intent
		if trivialIntent(intent) {
			continue
		}
		if run.CurrentTopic == "" {
			run.CurrentTopic = intent
			run.SameTopicCount = 1
			continue
		}
		if intent != run.CurrentTopic {
			break
		}
		run.SameTopicCount++
	}
	return run
}
