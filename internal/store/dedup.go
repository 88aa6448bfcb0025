package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SimilarityJudge decides whether two pattern statements describe the same
// underlying behavior. It is conservative: errors and ambiguity count as
// "not similar".
type SimilarityJudge interface {
	CheckSimilarity(ctx context.Context, a, b string) (bool, error)
}

// Outcome says what Deduplicate did with a draft.
type Outcome int

const (
	// OutcomeCreated means no stored observation matched and a new row
	// was created with count 1.
	OutcomeCreated Outcome = iota
	// OutcomeMerged means an existing observation absorbed the draft.
	OutcomeMerged
)

// Deduplicator folds new drafts into the store. For each draft it scans all
// non-denied observations sharing the draft's category, in insertion order,
// and merges into the first one the judge calls similar; otherwise it
// creates a new row. A failing similarity check only disqualifies that one
// candidate, never the rest of the scan.
type Deduplicator struct {
	store Store
	judge SimilarityJudge
	now   func() time.Time
}

// NewDeduplicator wires a store to a similarity judge. A nil judge merges
// exact duplicates only.
func NewDeduplicator(s Store, judge SimilarityJudge) *Deduplicator {
	return &Deduplicator{store: s, judge: judge, now: time.Now}
}

// Deduplicate processes one draft and returns the outcome together with the
// observation that now holds it.
func (d *Deduplicator) Deduplicate(ctx context.Context, draft Draft) (Outcome, *Observation, error) {
	if draft.Description == "" {
		return OutcomeCreated, nil, fmt.Errorf("draft has no description")
	}
	if !draft.Category.Valid() {
		draft.Category = CategoryOther
	}

	// The scan deliberately covers expired entries: "all non-denied" is
	// the contract, and merging refreshes last-seen anyway.
	candidates, err := d.store.Query(ctx, Query{
		Category:       &draft.Category,
		IncludeExpired: true,
	})
	if err != nil {
		return OutcomeCreated, nil, fmt.Errorf("scanning candidates: %w", err)
	}

	now := d.now()
	for _, cand := range candidates {
		if cand.Status == StatusDenied {
			continue
		}
		// Identical wording needs no judgment call.
		if cand.Description != draft.Description {
			if d.judge == nil {
				continue
			}
			similar, err := d.judge.CheckSimilarity(ctx, draft.Description, cand.Description)
			if err != nil || !similar {
				continue
			}
		}
		if err := d.store.IncrementCount(ctx, cand.ID, draft.TranscriptID, now); err != nil {
			return OutcomeMerged, nil, fmt.Errorf("merging into %s: %w", cand.ID, err)
		}
		merged, err := d.store.Get(ctx, cand.ID)
		if err != nil {
			return OutcomeMerged, nil, err
		}
		return OutcomeMerged, merged, nil
	}

	obs := &Observation{
		ID:          uuid.NewString(),
		Description: draft.Description,
		Category:    draft.Category,
		Count:       1,
		Status:      StatusPending,
		FirstSeen:   now,
		LastSeen:    now,
		Tags:        append([]string(nil), draft.Tags...),
	}
	if draft.TranscriptID != "" {
		obs.TranscriptIDs = []string{draft.TranscriptID}
	}
	if len(draft.Metadata) > 0 {
		obs.Metadata = make(map[string]string, len(draft.Metadata))
		for k, v := range draft.Metadata {
			obs.Metadata[k] = v
		}
	}
	if err := d.store.Create(ctx, obs); err != nil {
		return OutcomeCreated, nil, fmt.Errorf("creating observation: %w", err)
	}
	return OutcomeCreated, obs, nil
}
