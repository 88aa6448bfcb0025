// Package oracle sends transcripts and observation pairs to a language
// model for the judgments the programmatic analyzers cannot make: free-form
// pattern extraction and semantic similarity. Every backend speaks the same
// plain-text protocol, so the engine treats them interchangeably.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

// ErrUnavailable is returned when a backend cannot reach its model.
var ErrUnavailable = errors.New("oracle backend unavailable")

// Oracle judges transcripts and observations semantically.
type Oracle interface {
	// Name returns the backend identifier (e.g. "cli", "openai").
	Name() string

	// IsAvailable reports whether the backend can serve requests now.
	// Callers should skip oracle work rather than fail when it is false.
	IsAvailable() bool

	// ExtractPatterns asks the model for behavioral patterns the
	// programmatic analyzers cannot see. An empty slice is a valid answer.
	ExtractPatterns(ctx context.Context, t *transcript.Transcript) ([]store.Draft, error)

	// CheckSimilarity reports whether two observation descriptions
	// describe the same underlying behavior.
	CheckSimilarity(ctx context.Context, a, b string) (bool, error)
}

// completeFunc is one round trip to a model: prompt in, raw text out.
type completeFunc func(ctx context.Context, prompt string) (string, error)

// maxPromptTranscript bounds how much rendered transcript goes into one
// extraction prompt.
const maxPromptTranscript = 16000

// Options selects and configures a backend.
type Options struct {
	Backend string
	Model   string
	Binary  string
	Args    []string
	APIKey  string
	BaseURL string
}

// New creates the backend named by opts.Backend. The plugin backend is
// wired separately by the caller because it carries its own lifecycle.
func New(opts Options) (Oracle, error) {
	switch opts.Backend {
	case "", "cli":
		return NewCLIOracle(opts.Binary, opts.Args...)
	case "openai":
		return NewOpenAIOracle(opts.APIKey, opts.BaseURL, opts.Model)
	case "gemini":
		return NewGeminiOracle(opts.APIKey, opts.Model)
	case "ollama":
		return NewOllamaOracle(opts.Model)
	case "stub":
		return NewStubOracle(), nil
	default:
		return nil, fmt.Errorf("unknown oracle backend %q", opts.Backend)
	}
}

// extractedPattern is the JSON shape backends must reply with.
type extractedPattern struct {
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
}

// extractPatterns runs the shared extraction protocol over one completion.
func extractPatterns(ctx context.Context, complete completeFunc, t *transcript.Transcript) ([]store.Draft, error) {
	reply, err := complete(ctx, extractionPrompt(t))
	if err != nil {
		return nil, err
	}
	return parseExtraction(reply, t.ID), nil
}

// checkSimilarity runs the shared similarity protocol over one completion.
func checkSimilarity(ctx context.Context, complete completeFunc, a, b string) (bool, error) {
	reply, err := complete(ctx, similarityPrompt(a, b))
	if err != nil {
		return false, err
	}
	return parseSimilarity(reply), nil
}

func extractionPrompt(t *transcript.Transcript) string {
	var b strings.Builder
	b.WriteString("You are reviewing a coding-assistant session transcript. ")
	b.WriteString("Identify recurring user behaviors, preferences, and workflow habits worth remembering across sessions.\n\n")
	b.WriteString("Reply with ONLY a JSON array. Each element: ")
	b.WriteString(`{"description": "one sentence", "category": "preference|pattern|workflow|tool-choice|style|other", "tags": ["optional"]}`)
	b.WriteString("\nReply with [] if nothing stands out.\n\nTranscript:\n")
	b.WriteString(renderTranscript(t))
	return b.String()
}

func similarityPrompt(a, b string) string {
	return fmt.Sprintf(
		"Do these two observations describe the same underlying behavior?\n\nA: %s\nB: %s\n\nAnswer with exactly YES or NO.",
		a, b)
}

// parseExtraction pulls the first JSON array out of the reply. Models wrap
// answers in prose or code fences; anything unparseable counts as zero
// patterns rather than an error.
func parseExtraction(reply, transcriptID string) []store.Draft {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil
	}

	var patterns []extractedPattern
	if err := json.Unmarshal([]byte(reply[start:end+1]), &patterns); err != nil {
		return nil
	}

	var drafts []store.Draft
	for _, p := range patterns {
		desc := strings.TrimSpace(p.Description)
		if desc == "" {
			continue
		}
		category := store.Category(p.Category)
		if !category.Valid() {
			category = store.CategoryOther
		}
		drafts = append(drafts, store.Draft{
			Description:  desc,
			Category:     category,
			TranscriptID: transcriptID,
			Tags:         p.Tags,
			Metadata:     map[string]string{"analyzer": "oracle"},
		})
	}
	return drafts
}

// parseSimilarity treats anything that does not clearly affirm as NO, so a
// confused model merges nothing.
func parseSimilarity(reply string) bool {
	head := strings.ToUpper(strings.TrimSpace(reply))
	return strings.HasPrefix(head, "YES")
}

// renderTranscript flattens messages and tool calls into the compact text
// form the prompts embed, truncated to maxPromptTranscript.
func renderTranscript(t *transcript.Transcript) string {
	var b strings.Builder
	for _, m := range t.Messages {
		if text := strings.TrimSpace(m.Text); text != "" {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, text)
		}
		for _, c := range m.ToolCalls {
			if c.Failed() {
				fmt.Fprintf(&b, "  [tool %s FAILED: %s]\n", c.Name, c.Result)
			} else {
				fmt.Fprintf(&b, "  [tool %s]\n", c.Name)
			}
		}
		if b.Len() > maxPromptTranscript {
			break
		}
	}
	s := b.String()
	if len(s) > maxPromptTranscript {
		s = s[:maxPromptTranscript]
	}
	return s
}
