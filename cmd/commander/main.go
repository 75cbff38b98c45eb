package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/bobmatnyc/commander/pkg/adapters"
	"github.com/bobmatnyc/commander/pkg/bridge"
	"github.com/bobmatnyc/commander/pkg/channels"
	"github.com/bobmatnyc/commander/pkg/config"
	"github.com/bobmatnyc/commander/pkg/filter"
	"github.com/bobmatnyc/commander/pkg/logger"
	"github.com/bobmatnyc/commander/pkg/providers"
	"github.com/bobmatnyc/commander/pkg/session"
	"github.com/bobmatnyc/commander/pkg/state"
	"github.com/bobmatnyc/commander/pkg/summarizer"
	"github.com/bobmatnyc/commander/pkg/tmux"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "commander: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.SetJSONMode(cfg.JSONLog)

	stateDir, err := state.Dir(cfg.StateDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	projects := state.NewProjectStore(stateDir)
	pairings := state.NewPairingStore(stateDir)
	authorized := state.NewAuthorizedChats(stateDir)
	groups := state.NewGroupConfigStore(stateDir)
	version := state.NewVersionStore(stateDir)
	notifications := state.NewNotificationQueue(stateDir)

	outputFilter := filter.New(promptPatterns())
	mux := tmux.NewClient()
	summ := summarizer.New(buildProvider(cfg), outputFilter, cfg.SummarizerTimeout)
	if summ.Available() {
		logger.InfoCF("main", "Summarizer enabled", nil)
	} else {
		logger.InfoCF("main", "No LLM credentials, summarizer running in fallback mode", nil)
	}

	registry := session.NewRegistry(session.Options{
		StateDir:      stateDir,
		Mux:           mux,
		Filter:        outputFilter,
		Summarizer:    summ,
		Projects:      projects,
		Pairings:      pairings,
		Authorized:    authorized,
		CaptureLines:  cfg.CaptureLines,
		IdleThreshold: cfg.IdleThreshold,
	})

	telegram, err := channels.NewTelegram(cfg.TelegramBotToken)
	if err != nil {
		return err
	}

	service := bridge.New(bridge.Options{
		Config:        cfg,
		Registry:      registry,
		Chat:          telegram,
		Mux:           mux,
		Filter:        outputFilter,
		Projects:      projects,
		Groups:        groups,
		Authorized:    authorized,
		Version:       version,
		Notifications: notifications,
	})
	telegram.SetDispatcher(service)

	if _, err := service.Startup(ctx); err != nil {
		return err
	}
	if err := telegram.RegisterCommands(ctx); err != nil {
		logger.WarnCF("main", "Could not register command menu", map[string]interface{}{
			"error": err.Error(),
		})
	}

	go func() {
		if err := telegram.Run(ctx); err != nil {
			logger.ErrorCF("main", "Telegram channel stopped", map[string]interface{}{
				"error": err.Error(),
			})
			stop()
		}
	}()

	return service.Run(ctx)
}

// buildProvider selects the LLM endpoint: Anthropic direct when configured,
// with OpenRouter as fallback; OpenRouter alone otherwise; nil when no
// credential is present.
func buildProvider(cfg *config.Config) providers.Provider {
	switch {
	case cfg.AnthropicAPIKey != "" && cfg.OpenRouterAPIKey != "":
		return providers.NewFallbackProvider(
			providers.NewClaudeProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel),
			providers.NewOpenRouterProvider(cfg.OpenRouterAPIKey, cfg.OpenRouterModel),
		)
	case cfg.AnthropicAPIKey != "":
		return providers.NewClaudeProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case cfg.OpenRouterAPIKey != "":
		return providers.NewOpenRouterProvider(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
	default:
		return nil
	}
}

// promptPatterns is the closed, ordered ready-prompt list: the defaults
// plus every adapter's idle patterns.
func promptPatterns() []*regexp.Regexp {
	patterns := filter.DefaultPromptPatterns()
	for _, a := range adapters.All() {
		patterns = append(patterns, a.IdlePatterns()...)
	}
	return patterns
}
