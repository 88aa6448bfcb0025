package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

// GeminiOracle talks to Google's Gemini API.
type GeminiOracle struct {
	client *genai.Client
	model  string
}

// NewGeminiOracle creates the backend.
func NewGeminiOracle(apiKey, model string) (*GeminiOracle, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-pro-latest"
	}

	return &GeminiOracle{client: client, model: model}, nil
}

// Name implements Oracle.
func (o *GeminiOracle) Name() string {
	return "gemini"
}

// IsAvailable implements Oracle.
func (o *GeminiOracle) IsAvailable() bool {
	return o.client != nil
}

// ExtractPatterns implements Oracle.
func (o *GeminiOracle) ExtractPatterns(ctx context.Context, t *transcript.Transcript) ([]store.Draft, error) {
	return extractPatterns(ctx, o.complete, t)
}

// CheckSimilarity implements Oracle.
func (o *GeminiOracle) CheckSimilarity(ctx context.Context, a, b string) (bool, error) {
	return checkSimilarity(ctx, o.complete, a, b)
}

func (o *GeminiOracle) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.GenerativeModel(o.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("no candidates returned")
	}

	var content string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			content += string(text)
		}
	}
	return content, nil
}
