package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

const (
	// minWriteOps is how many write-class operations a path needs before
	// repeated modification counts as a pattern.
	minWriteOps = 3
	// hotspotWriteOps escalates a path to a hotspot observation.
	hotspotWriteOps = 10
	// minLeaderInteractions gates the top-paths ranking on the
	// most-interacted path having real traffic.
	minLeaderInteractions = 3
	// rankingSize is how many paths the ranking observation names.
	rankingSize = 5
)

// pathKeys is the priority list of tool-input keys that may carry a file
// path; the first present key wins.
var pathKeys = []string{"file_path", "filePath", "path", "file", "notebook_path", "filename"}

// FileInteraction tracks which files a session touches and how: read, write
// and edit counts per normalized path, write-heavy paths, and an overall
// ranking of the most-touched files.
type FileInteraction struct{}

// NewFileInteraction creates the analyzer.
func NewFileInteraction() *FileInteraction {
	return &FileInteraction{}
}

// Name implements Analyzer.
func (a *FileInteraction) Name() string { return "file-interaction" }

type pathStats struct {
	reads  int
	writes int
	edits  int
}

func (p pathStats) total() int      { return p.reads + p.writes + p.edits }
func (p pathStats) writeClass() int { return p.writes + p.edits }

// Analyze implements Analyzer.
func (a *FileInteraction) Analyze(t *transcript.Transcript) []store.Draft {
	stats := make(map[string]*pathStats)
	for _, m := range t.Messages {
		for _, c := range m.ToolCalls {
			path := extractPath(c.Input)
			if path == "" {
				continue
			}
			s := stats[path]
			if s == nil {
				s = &pathStats{}
				stats[path] = s
			}
			switch classifyOp(c.Name) {
			case "write":
				s.writes++
			case "edit":
				s.edits++
			default:
				s.reads++
			}
		}
	}
	if len(stats) == 0 {
		return nil
	}

	paths := make([]string, 0, len(stats))
	for p := range stats {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var drafts []store.Draft
	for _, p := range paths {
		s := stats[p]
		switch {
		case s.writeClass() >= hotspotWriteOps:
			drafts = append(drafts, store.Draft{
				Description: fmt.Sprintf("Hotspot file %s: %d write operations in one session", p, s.writeClass()),
				Category:    store.CategoryPattern,
				Tags:        []string{"hotspot"},
				Metadata:    map[string]string{"path": p},
			})
		case s.writeClass() >= minWriteOps:
			drafts = append(drafts, store.Draft{
				Description: fmt.Sprintf("Repeatedly modifies %s (%d write operations)", p, s.writeClass()),
				Category:    store.CategoryPattern,
				Metadata:    map[string]string{"path": p},
			})
		}
	}

	if d, ok := a.rankingDraft(paths, stats); ok {
		drafts = append(drafts, d)
	}
	return drafts
}

// rankingDraft reports the top paths by total interaction count, when
// enough distinct paths exist and the leader has real traffic.
func (a *FileInteraction) rankingDraft(paths []string, stats map[string]*pathStats) (store.Draft, bool) {
	if len(paths) < 2 {
		return store.Draft{}, false
	}
	ranked := append([]string(nil), paths...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return stats[ranked[i]].total() > stats[ranked[j]].total()
	})
	if stats[ranked[0]].total() < minLeaderInteractions {
		return store.Draft{}, false
	}
	if len(ranked) > rankingSize {
		ranked = ranked[:rankingSize]
	}
	parts := make([]string, len(ranked))
	for i, p := range ranked {
		parts[i] = fmt.Sprintf("%s (%d)", p, stats[p].total())
	}
	return store.Draft{
		Description: "Most-touched files this session: " + strings.Join(parts, ", "),
		Category:    store.CategoryPattern,
	}, true
}

// extractPath pulls a file path out of tool input using the key priority
// list, then normalizes separators.
func extractPath(input map[string]any) string {
	for _, key := range pathKeys {
		raw, ok := input[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok || s == "" {
			continue
		}
		return normalizePath(s)
	}
	return ""
}

// normalizePath collapses repeated separators and trims a trailing one,
// keeping a bare root intact.
func normalizePath(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// classifyOp buckets a tool name into read, write or edit.
func classifyOp(tool string) string {
	name := strings.ToLower(tool)
	switch {
	case strings.Contains(name, "edit"):
		return "edit"
	case strings.Contains(name, "write"), strings.Contains(name, "create"):
		return "write"
	default:
		return "read"
	}
}
