package providers

import (
	"context"
	"fmt"

	"github.com/bobmatnyc/commander/pkg/logger"
)

// FallbackProvider wraps a primary and a fallback Provider. If the primary
// fails, it transparently retries with the fallback.
type FallbackProvider struct {
	primary  Provider
	fallback Provider
}

func NewFallbackProvider(primary, fallback Provider) *FallbackProvider {
	return &FallbackProvider{primary: primary, fallback: fallback}
}

func (p *FallbackProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	content, err := p.primary.Complete(ctx, systemPrompt, userPrompt, maxTokens)
	if err == nil {
		return content, nil
	}

	logger.WarnCF("providers", fmt.Sprintf("Primary provider failed (%s), falling back to %s: %v",
		p.primary.DefaultModel(), p.fallback.DefaultModel(), err), nil)

	fbContent, fbErr := p.fallback.Complete(ctx, systemPrompt, userPrompt, maxTokens)
	if fbErr != nil {
		return "", fmt.Errorf("primary failed: %w; fallback also failed: %v", err, fbErr)
	}
	return fbContent, nil
}

func (p *FallbackProvider) DefaultModel() string {
	return p.primary.DefaultModel()
}
