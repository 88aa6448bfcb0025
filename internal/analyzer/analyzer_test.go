package analyzer

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

func okCall(name string, input map[string]any) transcript.ToolCall {
	ok := true
	return transcript.ToolCall{Name: name, Input: input, Success: &ok}
}

func failCall(name, result string) transcript.ToolCall {
	ok := false
	return transcript.ToolCall{Name: name, Result: result, Success: &ok}
}

func msg(calls ...transcript.ToolCall) transcript.Message {
	return transcript.Message{Role: "assistant", ToolCalls: calls}
}

func session(id string, messages ...transcript.Message) *transcript.Transcript {
	return &transcript.Transcript{ID: id, Tool: "claude-code", Messages: messages}
}

// chainSession builds a transcript with one tool call per message.
func chainSession(tools ...string) *transcript.Transcript {
	messages := make([]transcript.Message, len(tools))
	for i, name := range tools {
		messages[i] = msg(okCall(name, nil))
	}
	return session("chain", messages...)
}

func draftsWithCategory(drafts []store.Draft, c store.Category) []store.Draft {
	var out []store.Draft
	for _, d := range drafts {
		if d.Category == c {
			out = append(out, d)
		}
	}
	return out
}

func draftsContaining(drafts []store.Draft, substr string) []store.Draft {
	var out []store.Draft
	for _, d := range drafts {
		if strings.Contains(d.Description, substr) {
			out = append(out, d)
		}
	}
	return out
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewToolUsage()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(NewToolUsage()); err == nil {
		t.Fatal("expected error registering duplicate analyzer")
	}
}

func TestRegistryRunsInRegistrationOrder(t *testing.T) {
	r := Default()
	want := []string{"tool-usage", "error-pattern", "file-interaction", "workflow"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("got %d analyzers, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("analyzer %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAnalyzeAllStampsDrafts(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewToolUsage()); err != nil {
		t.Fatal(err)
	}
	tr := session("sess-1",
		msg(okCall("bash", nil)),
		msg(okCall("bash", nil)),
		msg(okCall("bash", nil)),
	)

	drafts := r.AnalyzeAll(tr)
	if len(drafts) == 0 {
		t.Fatal("expected drafts from a tool used three times")
	}
	for _, d := range drafts {
		if d.TranscriptID != "sess-1" {
			t.Errorf("TranscriptID = %q, want sess-1", d.TranscriptID)
		}
		if d.Metadata["analyzer"] != "tool-usage" {
			t.Errorf("analyzer metadata = %q, want tool-usage", d.Metadata["analyzer"])
		}
	}
}
