package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// systemPolicy is the built-in persona and directive contract. A prompt
// profile file can replace it without a redeploy.
const systemPolicy = `You are MC, Nickloop's music career assistant on Instagram.
You help artists grow: feedback on their content, networking suggestions,
release strategy, and quick practical tips. Keep replies short and warm,
suitable for a DM thread. Never invent analytics numbers.

When the conversation calls for a dashboard action, call the matching
function. You may also append exactly one control block at the very end of
your reply, on its own lines:

[ACTION]{"intent":"<intent>","entities":{...},"deep_link":"<url>"}[/ACTION]

Valid intents: moodboard.add, network.suggest, task.create,
strategy.recommend, chat.generic, none. Never mention the block to the user.`

const (
	fallbackCredential = "I'm having trouble reaching my brain right now. The team has been notified, please try again in a bit."
	fallbackModelCompat = "I hit a snag processing that one. Mind sending it again as plain text?"
	fallbackGeneric     = "Sorry, something went wrong on my end. Give me a moment and try again."
)

// Profile overrides the built-in prompt and fallback copy.
type Profile struct {
	SystemPrompt string `yaml:"system_prompt"`
	Fallbacks    struct {
		Credential  string `yaml:"credential"`
		ModelCompat string `yaml:"model_compat"`
		Generic     string `yaml:"generic"`
	} `yaml:"fallbacks"`
}

// LoadProfile reads a YAML prompt profile. An empty path returns the
// built-in defaults.
func LoadProfile(path string) (Profile, error) {
	p := Profile{SystemPrompt: systemPolicy}
	p.Fallbacks.Credential = fallbackCredential
	p.Fallbacks.ModelCompat = fallbackModelCompat
	p.Fallbacks.Generic = fallbackGeneric
	if path == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompt profile: %w", err)
	}
	var override Profile
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return p, fmt.Errorf("parse prompt profile: %w", err)
	}
	if override.SystemPrompt != "" {
		p.SystemPrompt = override.SystemPrompt
	}
	if override.Fallbacks.Credential != "" {
		p.Fallbacks.Credential = override.Fallbacks.Credential
	}
	if override.Fallbacks.ModelCompat != "" {
		p.Fallbacks.ModelCompat = override.Fallbacks.ModelCompat
	}
	if override.Fallbacks.Generic != "" {
		p.Fallbacks.Generic = override.Fallbacks.Generic
	}
	return p, nil
}
