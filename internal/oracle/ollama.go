package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/ollama/ollama/api"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

// OllamaOracle talks to a local Ollama server.
type OllamaOracle struct {
	client *api.Client
	model  string
}

// NewOllamaOracle creates the backend. The server address comes from
// OLLAMA_HOST, defaulting to localhost.
func NewOllamaOracle(model string) (*OllamaOracle, error) {
	if model == "" {
		model = "llama3.2"
	}

	baseURL := "http://localhost:11434"
	if envURL := os.Getenv("OLLAMA_HOST"); envURL != "" {
		baseURL = envURL
	}
	uri, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host: %w", err)
	}

	return &OllamaOracle{
		client: api.NewClient(uri, http.DefaultClient),
		model:  model,
	}, nil
}

// Name implements Oracle.
func (o *OllamaOracle) Name() string {
	return "ollama"
}

// IsAvailable implements Oracle: the server must answer a heartbeat.
func (o *OllamaOracle) IsAvailable() bool {
	return o.client.Heartbeat(context.Background()) == nil
}

// ExtractPatterns implements Oracle.
func (o *OllamaOracle) ExtractPatterns(ctx context.Context, t *transcript.Transcript) ([]store.Draft, error) {
	return extractPatterns(ctx, o.complete, t)
}

// CheckSimilarity implements Oracle.
func (o *OllamaOracle) CheckSimilarity(ctx context.Context, a, b string) (bool, error) {
	return checkSimilarity(ctx, o.complete, a, b)
}

func (o *OllamaOracle) complete(ctx context.Context, prompt string) (string, error) {
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Stream: new(bool), // false
	}

	var content string
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return content, nil
}
