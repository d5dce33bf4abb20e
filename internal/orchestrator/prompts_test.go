package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProfileDefaults(t *testing.T) {
	t.Parallel()

	p, err := LoadProfile("")
	if err != nil {
		t.Fatal(err)
	}
	if p.SystemPrompt == "" {
		t.Fatal("no system prompt")
	}
	if p.Fallbacks.Credential == "" || p.Fallbacks.ModelCompat == "" || p.Fallbacks.Generic == "" {
		t.Fatalf("fallbacks = %+v", p.Fallbacks)
	}
}

func TestLoadProfileOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := `
system_prompt: "You are a test persona."
fallbacks:
  generic: "Custom generic copy."
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.SystemPrompt != "You are a test persona." {
		t.Fatalf("system prompt = %q", p.SystemPrompt)
	}
	if p.Fallbacks.Generic != "Custom generic copy." {
		t.Fatalf("generic = %q", p.Fallbacks.Generic)
	}
	// Unspecified fields keep the built-in copy.
	if p.Fallbacks.Credential != fallbackCredential {
		t.Fatalf("credential = %q", p.Fallbacks.Credential)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing profile")
	}
}
