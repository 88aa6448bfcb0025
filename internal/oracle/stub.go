package oracle

import (
	"context"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

// StubOracle is a scriptable backend for tests.
type StubOracle struct {
	Available     bool
	Drafts        []store.Draft
	ExtractErr    error
	SimilarFunc   func(a, b string) bool
	SimilarityErr error

	ExtractCalls    int
	SimilarityCalls int
}

// NewStubOracle creates an available stub that extracts nothing and judges
// nothing similar.
func NewStubOracle() *StubOracle {
	return &StubOracle{Available: true}
}

// Name implements Oracle.
func (o *StubOracle) Name() string {
	return "stub"
}

// IsAvailable implements Oracle.
func (o *StubOracle) IsAvailable() bool {
	return o.Available
}

// ExtractPatterns implements Oracle.
func (o *StubOracle) ExtractPatterns(ctx context.Context, t *transcript.Transcript) ([]store.Draft, error) {
	o.ExtractCalls++
	if o.ExtractErr != nil {
		return nil, o.ExtractErr
	}
	drafts := make([]store.Draft, len(o.Drafts))
	for i, d := range o.Drafts {
		if d.TranscriptID == "" {
			d.TranscriptID = t.ID
		}
		drafts[i] = d
	}
	return drafts, nil
}

// CheckSimilarity implements Oracle.
func (o *StubOracle) CheckSimilarity(ctx context.Context, a, b string) (bool, error) {
	o.SimilarityCalls++
	if o.SimilarityErr != nil {
		return false, o.SimilarityErr
	}
	if o.SimilarFunc == nil {
		return false, nil
	}
	return o.SimilarFunc(a, b), nil
}
