package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("COMMANDER_STATE_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.IdleThreshold != 1500*time.Millisecond {
		t.Errorf("IdleThreshold = %v", cfg.IdleThreshold)
	}
	if cfg.NotifyInterval != 2*time.Second {
		t.Errorf("NotifyInterval = %v", cfg.NotifyInterval)
	}
	if cfg.CaptureLines != 200 {
		t.Errorf("CaptureLines = %d", cfg.CaptureLines)
	}
	if cfg.SummarizerTimeout != 30*time.Second {
		t.Errorf("SummarizerTimeout = %v", cfg.SummarizerTimeout)
	}
	if cfg.OpenRouterModel == "" {
		t.Error("OpenRouterModel default missing")
	}
}

func TestValidateRequiresToken(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("missing token must fail validation")
	}
}

func TestSummarizerConfigured(t *testing.T) {
	if (&Config{}).SummarizerConfigured() {
		t.Error("no keys: summarizer should be unconfigured")
	}
	if !(&Config{OpenRouterAPIKey: "k"}).SummarizerConfigured() {
		t.Error("openrouter key should configure the summarizer")
	}
	if !(&Config{AnthropicAPIKey: "k"}).SummarizerConfigured() {
		t.Error("anthropic key should configure the summarizer")
	}
}

func TestStateDirExpansion(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("COMMANDER_STATE_DIR", "~/.commander-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateDir == "~/.commander-test" {
		t.Error("home directory not expanded")
	}
}
