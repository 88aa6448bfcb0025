// Package analyzer mines a transcript's structured message sequence for
// behavioral patterns without calling the semantic oracle. Each analyzer is
// a pure function over one transcript; their outputs are concatenated.
package analyzer

import (
	"fmt"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

// Analyzer mines one transcript for pattern drafts.
type Analyzer interface {
	// Name identifies the analyzer in draft metadata and logs.
	Name() string

	// Analyze inspects the transcript and returns zero or more drafts.
	// It must not mutate the transcript.
	Analyze(t *transcript.Transcript) []store.Draft
}

// Registry manages the set of analyzers and runs them in registration order.
type Registry struct {
	order     []string
	analyzers map[string]Analyzer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[string]Analyzer)}
}

// Register adds an analyzer. Registering the same name twice is an error.
func (r *Registry) Register(a Analyzer) error {
	if _, exists := r.analyzers[a.Name()]; exists {
		return fmt.Errorf("analyzer %q already registered", a.Name())
	}
	r.order = append(r.order, a.Name())
	r.analyzers[a.Name()] = a
	return nil
}

// Get returns an analyzer by name.
func (r *Registry) Get(name string) (Analyzer, bool) {
	a, ok := r.analyzers[name]
	return a, ok
}

// Names returns analyzer names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// AnalyzeAll runs every analyzer over the transcript and concatenates their
// drafts, stamping each with the producing analyzer's name.
func (r *Registry) AnalyzeAll(t *transcript.Transcript) []store.Draft {
	var out []store.Draft
	for _, name := range r.order {
		for _, d := range r.analyzers[name].Analyze(t) {
			if d.TranscriptID == "" {
				d.TranscriptID = t.ID
			}
			if d.Metadata == nil {
				d.Metadata = map[string]string{}
			}
			d.Metadata["analyzer"] = name
			out = append(out, d)
		}
	}
	return out
}

// Default returns a registry with all four programmatic analyzers.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(NewToolUsage())
	_ = r.Register(NewErrorPattern(0))
	_ = r.Register(NewFileInteraction())
	_ = r.Register(NewWorkflow())
	return r
}
