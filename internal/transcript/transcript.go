// Package transcript models parsed AI-assistant conversation transcripts and
// the sources that supply them.
package transcript

import (
	"context"
	"time"
)

// ToolCall is one tool invocation recorded inside a message.
type ToolCall struct {
	Name   string         `json:"name"`
	Input  map[string]any `json:"input,omitempty"`
	Result string         `json:"result,omitempty"`
	// Success is nil when the transcript carries no outcome for the call.
	Success *bool `json:"success,omitempty"`
}

// Failed reports whether the call is explicitly marked unsuccessful.
func (c ToolCall) Failed() bool {
	return c.Success != nil && !*c.Success
}

// Message is one turn of the conversation with its ordered tool calls.
type Message struct {
	Role      string     `json:"role"`
	Text      string     `json:"text,omitempty"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Transcript is one parsed session, consumed read-only by the engine.
type Transcript struct {
	ID        string    `json:"id"`
	Tool      string    `json:"tool"` // originating assistant, e.g. "claude-code"
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
	Content   string    `json:"content,omitempty"`
	Messages  []Message `json:"messages"`
}

// ToolChain flattens the ordered tool names across all tool-bearing messages.
func (t *Transcript) ToolChain() []string {
	var chain []string
	for _, m := range t.Messages {
		for _, c := range m.ToolCalls {
			chain = append(chain, c.Name)
		}
	}
	return chain
}

// Source supplies transcripts filtered by recency. Sessions returns an empty
// list, never an error, when the source has nothing or is unreachable for
// non-fatal reasons.
type Source interface {
	// Name identifies the source in run results and logs.
	Name() string

	// IsAvailable reports whether the source can be polled at all.
	IsAvailable() bool

	// Sessions returns transcripts newest-first, filtered to
	// timestamp >= since when since is non-nil.
	Sessions(ctx context.Context, since *time.Time) ([]*Transcript, error)
}
