package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

func TestParseExtraction(t *testing.T) {
	reply := "Here is what I found:\n```json\n" +
		`[{"description": "Prefers table-driven tests", "category": "style", "tags": ["testing"]},` +
		`{"description": "Runs make lint before committing", "category": "workflow"}]` +
		"\n```"

	drafts := parseExtraction(reply, "sess-1")
	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2: %+v", len(drafts), drafts)
	}
	if drafts[0].Description != "Prefers table-driven tests" {
		t.Errorf("description = %q", drafts[0].Description)
	}
	if drafts[0].Category != store.CategoryStyle {
		t.Errorf("category = %q, want style", drafts[0].Category)
	}
	if drafts[0].TranscriptID != "sess-1" {
		t.Errorf("transcript ID = %q, want sess-1", drafts[0].TranscriptID)
	}
	if drafts[1].Category != store.CategoryWorkflow {
		t.Errorf("category = %q, want workflow", drafts[1].Category)
	}
}

func TestParseExtractionUnknownCategory(t *testing.T) {
	reply := `[{"description": "Something odd", "category": "mystery"}]`
	drafts := parseExtraction(reply, "s")
	if len(drafts) != 1 {
		t.Fatalf("got %d drafts, want 1", len(drafts))
	}
	if drafts[0].Category != store.CategoryOther {
		t.Errorf("unknown category = %q, want other", drafts[0].Category)
	}
}

func TestParseExtractionGarbage(t *testing.T) {
	for _, reply := range []string{
		"I could not find any patterns.",
		"[not json at all",
		"",
		"[]",
		`[{"description": "   ", "category": "style"}]`,
	} {
		if drafts := parseExtraction(reply, "s"); len(drafts) != 0 {
			t.Errorf("parseExtraction(%q) = %+v, want none", reply, drafts)
		}
	}
}

func TestParseSimilarity(t *testing.T) {
	cases := []struct {
		reply string
		want  bool
	}{
		{"YES", true},
		{"yes", true},
		{"  Yes, these match.", true},
		{"NO", false},
		{"These are different.", false},
		{"", false},
		{"Maybe", false},
	}
	for _, c := range cases {
		if got := parseSimilarity(c.reply); got != c.want {
			t.Errorf("parseSimilarity(%q) = %v, want %v", c.reply, got, c.want)
		}
	}
}

func TestRenderTranscriptMarksFailures(t *testing.T) {
	ok, bad := true, false
	tr := &transcript.Transcript{
		ID: "s",
		Messages: []transcript.Message{
			{Role: "user", Text: "fix the bug"},
			{Role: "assistant", ToolCalls: []transcript.ToolCall{
				{Name: "edit", Success: &bad, Result: "old_string not found"},
				{Name: "read", Success: &ok},
			}},
		},
	}

	rendered := renderTranscript(tr)
	if !strings.Contains(rendered, "user: fix the bug") {
		t.Errorf("missing user text in %q", rendered)
	}
	if !strings.Contains(rendered, "[tool edit FAILED: old_string not found]") {
		t.Errorf("missing failure marker in %q", rendered)
	}
	if !strings.Contains(rendered, "[tool read]") {
		t.Errorf("missing success marker in %q", rendered)
	}
}

func TestOpenAIOracle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "YES", "role": "assistant"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 1, "total_tokens": 11}
		}`))
	}))
	defer server.Close()

	o, err := NewOpenAIOracle("test-key", server.URL, "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	if o.Name() != "openai" {
		t.Errorf("Name = %q, want openai", o.Name())
	}

	similar, err := o.CheckSimilarity(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("CheckSimilarity failed: %v", err)
	}
	if !similar {
		t.Error("expected YES reply to mean similar")
	}
}

func TestOllamaOracle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": {"content": "NO"}, "done": true}`))
	}))
	defer server.Close()

	t.Setenv("OLLAMA_HOST", server.URL)

	o, err := NewOllamaOracle("llama3")
	if err != nil {
		t.Fatal(err)
	}
	similar, err := o.CheckSimilarity(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("CheckSimilarity failed: %v", err)
	}
	if similar {
		t.Error("expected NO reply to mean not similar")
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New(Options{Backend: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestStubOracle(t *testing.T) {
	o := NewStubOracle()
	o.Drafts = []store.Draft{{Description: "d", Category: store.CategoryPattern}}
	o.SimilarFunc = func(a, b string) bool { return a == b }

	drafts, err := o.ExtractPatterns(context.Background(), &transcript.Transcript{ID: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 1 || drafts[0].TranscriptID != "s" {
		t.Fatalf("unexpected drafts: %+v", drafts)
	}

	similar, err := o.CheckSimilarity(context.Background(), "x", "x")
	if err != nil {
		t.Fatal(err)
	}
	if !similar {
		t.Error("expected similar")
	}
	if o.ExtractCalls != 1 || o.SimilarityCalls != 1 {
		t.Errorf("call counts = %d/%d, want 1/1", o.ExtractCalls, o.SimilarityCalls)
	}
}
