package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/quirk/internal/store"
)

const (
	recordsFile  = "records.json"
	documentFile = "longterm.md"

	documentVersion = 1
)

// Document is the long-term memory store: a JSON record file that is the
// source of truth, and a human-readable markdown rendering kept alongside
// it. Both are rewritten atomically on every change.
type Document struct {
	dir     string
	order   []string
	records map[string]*LongTermMemory
}

type recordsEnvelope struct {
	Version int               `json:"version"`
	SavedAt time.Time         `json:"saved_at"`
	Records []*LongTermMemory `json:"records"`
}

// OpenDocument loads the long-term memory rooted at dir, creating an empty
// one when nothing is there yet.
func OpenDocument(dir string) (*Document, error) {
	d := &Document{
		dir:     dir,
		records: make(map[string]*LongTermMemory),
	}

	data, err := os.ReadFile(filepath.Join(dir, recordsFile))
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read long-term records: %w", err)
	}

	var env recordsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse long-term records: %w", err)
	}
	if env.Version > documentVersion {
		return nil, fmt.Errorf("long-term records version %d is newer than supported %d", env.Version, documentVersion)
	}
	for _, r := range env.Records {
		d.order = append(d.order, r.ID)
		d.records[r.ID] = r
	}
	return d, nil
}

// Get returns the entry for id, or nil.
func (d *Document) Get(id string) *LongTermMemory {
	return d.records[id]
}

// All returns entries in insertion order.
func (d *Document) All() []*LongTermMemory {
	out := make([]*LongTermMemory, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.records[id])
	}
	return out
}

// Put inserts or replaces an entry and persists both files.
func (d *Document) Put(ltm *LongTermMemory) error {
	if _, exists := d.records[ltm.ID]; !exists {
		d.order = append(d.order, ltm.ID)
	}
	d.records[ltm.ID] = ltm
	return d.save()
}

func (d *Document) save() error {
	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create long-term directory: %w", err)
	}

	env := recordsEnvelope{
		Version: documentVersion,
		SavedAt: time.Now().UTC(),
		Records: d.All(),
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode long-term records: %w", err)
	}
	if err := atomicWrite(filepath.Join(d.dir, recordsFile), data); err != nil {
		return err
	}
	return atomicWrite(filepath.Join(d.dir, documentFile), []byte(d.render()))
}

// render produces the markdown document, grouped by category in canonical
// order, one parseable line per active entry.
func (d *Document) render() string {
	var b strings.Builder
	b.WriteString("# Long-Term Memory\n")

	for _, category := range store.Categories {
		var lines []string
		for _, id := range d.order {
			r := d.records[id]
			if r.Status == LTMDenied || r.Observation.Category != category {
				continue
			}
			lines = append(lines, formatDocumentLine(r))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", category)
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatDocumentLine(r *LongTermMemory) string {
	return fmt.Sprintf("- %s [id:%s count:%d]", r.Observation.Description, r.ID, r.Observation.Count)
}

// DocumentEntry is one parsed line of the markdown document.
type DocumentEntry struct {
	Description string
	ID          string
	Count       int
	Category    store.Category
}

var documentLine = regexp.MustCompile(`^- (.+) \[id:(\S+) count:(\d+)\]$`)

// ParseDocument reads entries back out of the markdown rendering. It is the
// inverse of render for well-formed documents; unknown lines are skipped.
func ParseDocument(text string) []DocumentEntry {
	var entries []DocumentEntry
	var category store.Category
	for _, line := range strings.Split(text, "\n") {
		if rest, ok := strings.CutPrefix(line, "## "); ok {
			category = store.Category(strings.TrimSpace(rest))
			continue
		}
		m := documentLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		count, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		entries = append(entries, DocumentEntry{
			Description: m[1],
			ID:          m[2],
			Count:       count,
			Category:    category,
		})
	}
	return entries
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
