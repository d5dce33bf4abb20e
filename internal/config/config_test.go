package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Delivery.RateMax != DefaultSendRateMax {
		t.Fatalf("rate max = %d", cfg.Delivery.RateMax)
	}
	if cfg.Instagram.APIVersion != DefaultGraphVersion {
		t.Fatalf("api version = %q", cfg.Instagram.APIVersion)
	}
	if cfg.Pipeline.ContextLimit != DefaultContextLimit {
		t.Fatalf("context limit = %d", cfg.Pipeline.ContextLimit)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9000"

[instagram]
verify_token = "vt"
page_token = "pt"

[openai]
reasoning_model = "o1-mini"

[delivery]
rate_max = 100
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Delivery.RateMax != 100 {
		t.Fatalf("rate max = %d", cfg.Delivery.RateMax)
	}
	if cfg.OpenAI.ReasoningModel != "o1-mini" {
		t.Fatalf("reasoning model = %q", cfg.OpenAI.ReasoningModel)
	}
	// Untouched sections keep their defaults.
	if cfg.OpenAI.Model != DefaultChatModel {
		t.Fatalf("model = %q", cfg.OpenAI.Model)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRequiresInstagramCredentials(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing tokens should fail validation")
	}
}
