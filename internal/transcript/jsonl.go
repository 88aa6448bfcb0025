package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// jsonlLine is a single line of a Claude Code JSONL session file.
type jsonlLine struct {
	Type      string          `json:"type"`
	IsMeta    bool            `json:"isMeta,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// jsonlMessage is the message field of a line.
type jsonlMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// contentBlock is one typed block inside message content. tool_use blocks
// carry the invocation, tool_result blocks (in the following user line)
// carry the outcome keyed by ToolUseID.
type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   *bool           `json:"is_error,omitempty"`
}

// ParseJSONL reads a Claude Code JSONL transcript file into a Transcript.
// Malformed lines are skipped; tool results are joined to their tool_use
// blocks by id.
func ParseJSONL(path string) (*Transcript, error) {
	f, err := os.Open(path) // #nosec G304 -- path from configured source roots
	if err != nil {
		return nil, fmt.Errorf("opening transcript %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	t := &Transcript{
		ID:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Tool: "claude-code",
		Path: path,
	}

	// Index of pending tool_use blocks waiting for their result line.
	pending := make(map[string]*ToolCall)
	var raw strings.Builder

	scanner := bufio.NewScanner(f)
	// Assistant lines with embedded tool output can be very large.
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry jsonlLine
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if entry.SessionID != "" {
			t.ID = entry.SessionID
		}
		ts := parseTimestamp(entry.Timestamp)
		if t.Timestamp.IsZero() && !ts.IsZero() {
			t.Timestamp = ts
		}

		switch entry.Type {
		case "user":
			if entry.IsMeta {
				continue
			}
			text, results := parseUserContent(entry.Message)
			for _, res := range results {
				if call, ok := pending[res.ToolUseID]; ok {
					call.Result = blockText(res.Content)
					success := res.IsError == nil || !*res.IsError
					call.Success = &success
					delete(pending, res.ToolUseID)
				}
			}
			if text == "" {
				continue
			}
			raw.WriteString(text)
			raw.WriteString("\n")
			t.Messages = append(t.Messages, Message{Role: "user", Text: text, Timestamp: ts})

		case "assistant":
			text, calls := parseAssistantContent(entry.Message, pending)
			if text == "" && len(calls) == 0 {
				continue
			}
			if text != "" {
				raw.WriteString(text)
				raw.WriteString("\n")
			}
			t.Messages = append(t.Messages, Message{
				Role:      "assistant",
				Text:      text,
				Timestamp: ts,
				ToolCalls: calls,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript %s: %w", path, err)
	}

	t.Content = raw.String()
	if t.Timestamp.IsZero() {
		if info, err := os.Stat(path); err == nil {
			t.Timestamp = info.ModTime()
		}
	}
	return t, nil
}

// parseUserContent returns the user text plus any tool_result blocks.
func parseUserContent(rawMsg json.RawMessage) (string, []contentBlock) {
	blocks, plain, ok := decodeContent(rawMsg)
	if !ok {
		return "", nil
	}
	if blocks == nil {
		return plain, nil
	}
	var parts []string
	var results []contentBlock
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "tool_result":
			results = append(results, b)
		}
	}
	return strings.Join(parts, "\n"), results
}

// parseAssistantContent returns assistant text and tool calls, registering
// each call in pending so a later tool_result can attach its outcome.
// Thinking blocks are skipped.
func parseAssistantContent(rawMsg json.RawMessage, pending map[string]*ToolCall) (string, []ToolCall) {
	blocks, plain, ok := decodeContent(rawMsg)
	if !ok {
		return "", nil
	}
	if blocks == nil {
		return plain, nil
	}
	var parts []string
	calls := make([]ToolCall, 0, len(blocks))
	var ids []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "tool_use":
			if b.Name == "" {
				continue
			}
			calls = append(calls, ToolCall{Name: b.Name, Input: b.Input})
			ids = append(ids, b.ID)
		}
	}
	// The slice will not grow again, so pointers into it stay valid for
	// the result-joining pass.
	for i, id := range ids {
		if id != "" {
			pending[id] = &calls[i]
		}
	}
	return strings.Join(parts, "\n"), calls
}

// decodeContent handles message content that is either a plain string or an
// array of typed blocks. blocks is nil when the content was a plain string.
func decodeContent(rawMsg json.RawMessage) (blocks []contentBlock, plain string, ok bool) {
	if len(rawMsg) == 0 {
		return nil, "", false
	}
	var msg jsonlMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		return nil, "", false
	}
	if len(msg.Content) == 0 {
		return nil, "", false
	}
	if err := json.Unmarshal(msg.Content, &plain); err == nil {
		return nil, plain, true
	}
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return nil, "", false
	}
	return blocks, "", true
}

// blockText renders a tool_result content field, which is either a string
// or an array of text blocks.
func blockText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// parseTimestamp parses an ISO 8601 timestamp, falling back to zero time.
func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, ts); err != nil {
			return time.Time{}
		}
	}
	return t
}
