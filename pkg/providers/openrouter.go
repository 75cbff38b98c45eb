package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider talks to OpenRouter through its OpenAI-compatible
// chat completions endpoint.
type OpenRouterProvider struct {
	client openai.Client
	model  string
}

// NewOpenRouterProvider creates a provider for the given key and model.
func NewOpenRouterProvider(apiKey, model string) *OpenRouterProvider {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(openRouterBaseURL),
	)
	if model == "" {
		model = "anthropic/claude-3.5-haiku"
	}
	return &OpenRouterProvider{client: client, model: model}
}

func (p *OpenRouterProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(p.model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("openrouter API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenRouterProvider) DefaultModel() string {
	return p.model
}
