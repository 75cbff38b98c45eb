package config

import (
	"fmt"
	"time"

	"github.com/bobmatnyc/commander/pkg/utils"
	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, read from the environment. Tuning
// knobs carry defaults that match the polling state machine's contract.
type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`

	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel  string `env:"OPENROUTER_MODEL" envDefault:"anthropic/claude-3.5-haiku"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel   string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-20241022"`

	StateDir string `env:"COMMANDER_STATE_DIR" envDefault:"~/.commander"`

	JSONLog bool `env:"COMMANDER_JSON_LOG" envDefault:"false"`

	PollInterval      time.Duration `env:"COMMANDER_POLL_INTERVAL" envDefault:"500ms"`
	IdleThreshold     time.Duration `env:"COMMANDER_IDLE_THRESHOLD" envDefault:"1500ms"`
	NotifyInterval    time.Duration `env:"COMMANDER_NOTIFY_INTERVAL" envDefault:"2s"`
	CaptureLines      int           `env:"COMMANDER_CAPTURE_LINES" envDefault:"200"`
	SummarizerTimeout time.Duration `env:"COMMANDER_SUMMARIZER_TIMEOUT" envDefault:"30s"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.StateDir = utils.ExpandHome(cfg.StateDir)
	return cfg, nil
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// SummarizerConfigured reports whether any LLM credential is present.
func (c *Config) SummarizerConfigured() bool {
	return c.OpenRouterAPIKey != "" || c.AnthropicAPIKey != ""
}
