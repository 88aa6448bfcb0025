package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// FileSource discovers transcript files under a root directory with a glob
// pattern and parses them on demand. Unreadable files are skipped, never
// fatal: a source that cannot deliver simply delivers less.
type FileSource struct {
	name string
	root string
	glob string
}

// NewFileSource creates a source reading files matching glob (doublestar
// syntax, e.g. "**/*.jsonl") under root. A leading ~ in root expands to the
// user's home directory.
func NewFileSource(name, root, glob string) *FileSource {
	if strings.HasPrefix(root, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			root = filepath.Join(home, strings.TrimPrefix(root, "~"))
		}
	}
	if glob == "" {
		glob = "**/*.jsonl"
	}
	return &FileSource{name: name, root: root, glob: glob}
}

// Name identifies the source in run results.
func (s *FileSource) Name() string {
	return s.name
}

// IsAvailable reports whether the root directory exists.
func (s *FileSource) IsAvailable() bool {
	info, err := os.Stat(s.root)
	return err == nil && info.IsDir()
}

// Sessions returns parsed transcripts newest-first, filtered to
// timestamp >= since when since is non-nil. Discovery or parse trouble with
// individual files is non-fatal and results in fewer transcripts.
func (s *FileSource) Sessions(ctx context.Context, since *time.Time) ([]*Transcript, error) {
	return collect(ctx, s.root, s.glob, since, ParseJSONL)
}

// JSONSource reads transcripts already in the native JSON shape, one
// transcript object per file. It covers exports from assistants that do not
// speak the Claude Code JSONL format.
type JSONSource struct {
	name string
	root string
	glob string
}

// NewJSONSource creates a source for pre-parsed transcript files under root.
func NewJSONSource(name, root, glob string) *JSONSource {
	if strings.HasPrefix(root, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			root = filepath.Join(home, strings.TrimPrefix(root, "~"))
		}
	}
	if glob == "" {
		glob = "**/*.json"
	}
	return &JSONSource{name: name, root: root, glob: glob}
}

func (s *JSONSource) Name() string {
	return s.name
}

func (s *JSONSource) IsAvailable() bool {
	info, err := os.Stat(s.root)
	return err == nil && info.IsDir()
}

func (s *JSONSource) Sessions(ctx context.Context, since *time.Time) ([]*Transcript, error) {
	return collect(ctx, s.root, s.glob, since, parseJSONFile)
}

func parseJSONFile(path string) (*Transcript, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from configured source roots
	if err != nil {
		return nil, err
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding transcript %s: %w", path, err)
	}
	if t.ID == "" {
		t.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if t.Path == "" {
		t.Path = path
	}
	if t.Timestamp.IsZero() {
		if info, err := os.Stat(path); err == nil {
			t.Timestamp = info.ModTime()
		}
	}
	return &t, nil
}

// collect is the shared discover-filter-sort loop behind both sources.
func collect(ctx context.Context, root, glob string, since *time.Time, parse func(string) (*Transcript, error)) ([]*Transcript, error) {
	matches, err := doublestar.Glob(os.DirFS(root), glob)
	if err != nil {
		// A bad pattern yields nothing rather than failing the run.
		return nil, nil
	}

	var out []*Transcript
	for _, rel := range matches {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		path := filepath.Join(root, rel)
		if since != nil {
			// Cheap pre-filter on mtime before paying for a parse.
			if info, err := os.Stat(path); err == nil && info.ModTime().Before(*since) {
				continue
			}
		}
		t, err := parse(path)
		if err != nil {
			continue
		}
		if len(t.Messages) == 0 {
			continue
		}
		if since != nil && t.Timestamp.Before(*since) {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
