// Package directive parses and renders the [ACTION] control blocks that the
// model embeds in its replies to signal routing decisions.
package directive

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var actionPattern = regexp.MustCompile(`(?s)\[ACTION\](.*?)\[/ACTION\]`)

// Directive carries the routing decision extracted from a reply.
type Directive struct {
	Intent   string         `json:"intent"`
	Entities map[string]any `json:"entities,omitempty"`
	DeepLink string         `json:"deep_link,omitempty"`
}

// IsZero reports whether the directive carries no routing information.
func (d Directive) IsZero() bool {
	return d.Intent == "" && d.DeepLink == "" && len(d.Entities) == 0
}

// Parse extracts the first [ACTION] block from text. Malformed JSON inside
// the block is repaired when possible and swallowed otherwise, so a garbled
// directive never blocks the reply itself.
func Parse(text string) (Directive, bool) {
	match := actionPattern.FindStringSubmatch(text)
	if match == nil {
		return Directive{}, false
	}
	payload := strings.TrimSpace(match[1])
	if payload == "" {
		return Directive{}, false
	}

	var d Directive
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(payload)
		if repairErr != nil {
			return Directive{}, false
		}
		if err := json.Unmarshal([]byte(repaired), &d); err != nil {
			return Directive{}, false
		}
	}
	if d.IsZero() {
		return Directive{}, false
	}
	return d, true
}

// Strip removes every [ACTION] block from text and tidies the remaining
// whitespace. This is what actually gets delivered to the user.
func Strip(text string) string {
	cleaned := actionPattern.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, "\n\n\n", "\n\n")
	return strings.TrimSpace(cleaned)
}

// Merge combines a tool-derived directive with one parsed from the reply
// text. The tool call wins on conflicts since it is the structured source.
func Merge(tool, parsed Directive) Directive {
	out := tool
	if out.Intent == "" {
		out.Intent = parsed.Intent
	}
	if out.DeepLink == "" {
		out.DeepLink = parsed.DeepLink
	}
	if len(out.Entities) == 0 {
		out.Entities = parsed.Entities
	}
	return out
}

// Append renders d as a canonical [ACTION] block and appends it to text.
// A zero directive leaves the text untouched.
func Append(text string, d Directive) string {
	if d.IsZero() {
		return text
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return text
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return "[ACTION]" + string(raw) + "[/ACTION]"
	}
	return body + "\n\n[ACTION]" + string(raw) + "[/ACTION]"
}
