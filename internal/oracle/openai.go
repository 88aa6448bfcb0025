package oracle

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

// OpenAIOracle talks to the OpenAI chat completion API, or any
// API-compatible endpoint via baseURL.
type OpenAIOracle struct {
	client *openai.Client
	model  string
}

// NewOpenAIOracle creates the backend.
func NewOpenAIOracle(apiKey, baseURL, model string) (*OpenAIOracle, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIOracle{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Name implements Oracle.
func (o *OpenAIOracle) Name() string {
	return "openai"
}

// IsAvailable implements Oracle.
func (o *OpenAIOracle) IsAvailable() bool {
	return o.client != nil
}

// ExtractPatterns implements Oracle.
func (o *OpenAIOracle) ExtractPatterns(ctx context.Context, t *transcript.Transcript) ([]store.Draft, error) {
	return extractPatterns(ctx, o.complete, t)
}

// CheckSimilarity implements Oracle.
func (o *OpenAIOracle) CheckSimilarity(ctx context.Context, a, b string) (bool, error) {
	return checkSimilarity(ctx, o.complete, a, b)
}

func (o *OpenAIOracle) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
