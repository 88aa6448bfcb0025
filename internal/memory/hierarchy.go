package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/quirk/internal/store"
)

// Hierarchy runs the two promotion steps over a store, a long-term
// document, and the configured core destinations.
type Hierarchy struct {
	store      store.Store
	doc        *Document
	thresholds Thresholds
	targets    []Destination
	now        func() time.Time
}

// NewHierarchy creates the hierarchy. Zero threshold fields fall back to
// the defaults.
func NewHierarchy(st store.Store, doc *Document, thresholds Thresholds, targets ...Destination) *Hierarchy {
	defaults := DefaultThresholds()
	if thresholds.MinCountLongTerm <= 0 {
		thresholds.MinCountLongTerm = defaults.MinCountLongTerm
	}
	if thresholds.MinCountCore <= 0 {
		thresholds.MinCountCore = defaults.MinCountCore
	}
	if thresholds.MinAgeDays <= 0 {
		thresholds.MinAgeDays = defaults.MinAgeDays
	}
	return &Hierarchy{
		store:      st,
		doc:        doc,
		thresholds: thresholds,
		targets:    targets,
		now:        time.Now,
	}
}

// PromoteToLongTerm moves an observation into long-term memory. Pending
// observations are approved on the way. Promoting an observation that is
// already long-term refreshes its frozen snapshot instead of failing.
func (h *Hierarchy) PromoteToLongTerm(ctx context.Context, id string) (*LongTermMemory, error) {
	obs, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if obs.Status == store.StatusDenied {
		return nil, fmt.Errorf("%w: observation %s is denied", store.ErrInvalidTransition, id)
	}
	if obs.Count < h.thresholds.MinCountLongTerm {
		return nil, &ShortfallError{Field: "count", Current: obs.Count, Required: h.thresholds.MinCountLongTerm}
	}

	if obs.Status == store.StatusPending {
		if err := h.store.Transition(ctx, id, store.StatusApproved); err != nil {
			return nil, err
		}
		obs.Status = store.StatusApproved
	}
	if obs.Status == store.StatusApproved {
		if err := h.store.Transition(ctx, id, store.StatusLongTerm); err != nil {
			return nil, err
		}
		obs.Status = store.StatusLongTerm
	}

	ltm := h.doc.Get(id)
	if ltm == nil {
		ltm = &LongTermMemory{
			ID:         id,
			PromotedAt: h.now().UTC(),
			Status:     LTMApproved,
		}
	}
	ltm.Observation = *obs
	if err := h.doc.Put(ltm); err != nil {
		return nil, err
	}
	return ltm, nil
}

// DestinationFailure records one destination that could not be written.
type DestinationFailure struct {
	Name string
	Err  error
}

// CoreResult reports where a core promotion landed. A promotion succeeds
// when at least one destination took the entry; Failures lists the rest.
type CoreResult struct {
	Entry    string
	Written  []string
	Failures []DestinationFailure
}

// PromoteToCore appends a long-term entry to core destinations. With no
// names given it writes to every configured destination.
func (h *Hierarchy) PromoteToCore(ctx context.Context, id string, names ...string) (*CoreResult, error) {
	ltm := h.doc.Get(id)
	if ltm == nil {
		return nil, fmt.Errorf("%w: %s is not in long-term memory", store.ErrNotFound, id)
	}
	if ltm.Status == LTMDenied {
		return nil, fmt.Errorf("%w: long-term entry %s is denied", store.ErrInvalidTransition, id)
	}

	obs, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if obs.Count < h.thresholds.MinCountCore {
		return nil, &ShortfallError{Field: "count", Current: obs.Count, Required: h.thresholds.MinCountCore}
	}
	// Age is measured from the long-term promotion, not first detection:
	// an entry has to survive a week of long-term scrutiny before it can
	// harden into core.
	if age := store.AgeDays(ltm.PromotedAt, h.now()); age < h.thresholds.MinAgeDays {
		return nil, &ShortfallError{Field: "age in days", Current: age, Required: h.thresholds.MinAgeDays}
	}

	targets, err := h.resolveTargets(names)
	if err != nil {
		return nil, err
	}

	result := &CoreResult{Entry: coreEntry(obs)}
	for _, target := range targets {
		if err := target.Append(result.Entry); err != nil {
			result.Failures = append(result.Failures, DestinationFailure{Name: target.Name(), Err: err})
			continue
		}
		result.Written = append(result.Written, target.Name())
	}
	if len(result.Written) == 0 {
		msgs := make([]string, len(result.Failures))
		for i, f := range result.Failures {
			msgs[i] = fmt.Sprintf("%s: %v", f.Name, f.Err)
		}
		return nil, fmt.Errorf("all core destinations failed: %s", strings.Join(msgs, "; "))
	}

	if obs.Status != store.StatusCore {
		if err := h.store.Transition(ctx, id, store.StatusCore); err != nil {
			return nil, err
		}
		obs.Status = store.StatusCore
	}
	ltm.Status = LTMScheduledForCore
	ltm.Observation = *obs
	if err := h.doc.Put(ltm); err != nil {
		return nil, err
	}
	return result, nil
}

// resolveTargets maps requested names to configured destinations. An empty
// request means all of them.
func (h *Hierarchy) resolveTargets(names []string) ([]Destination, error) {
	if len(h.targets) == 0 {
		return nil, ErrNoTargets
	}
	if len(names) == 0 {
		return h.targets, nil
	}
	byName := make(map[string]Destination, len(h.targets))
	for _, t := range h.targets {
		byName[t.Name()] = t
	}
	targets := make([]Destination, 0, len(names))
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown core destination %q", name)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Deny marks an observation denied at whatever level it sits.
func (h *Hierarchy) Deny(ctx context.Context, id string) error {
	if err := h.store.Transition(ctx, id, store.StatusDenied); err != nil {
		return err
	}
	if ltm := h.doc.Get(id); ltm != nil {
		ltm.Status = LTMDenied
		ltm.Observation.Status = store.StatusDenied
		return h.doc.Put(ltm)
	}
	return nil
}

// EligibleForCore lists long-term observations that already clear the core
// thresholds.
func (h *Hierarchy) EligibleForCore(ctx context.Context) ([]*store.Observation, error) {
	candidates, err := h.store.List(ctx, store.StatusLongTerm)
	if err != nil {
		return nil, err
	}
	now := h.now()
	var eligible []*store.Observation
	for _, obs := range candidates {
		if obs.Count < h.thresholds.MinCountCore {
			continue
		}
		ltm := h.doc.Get(obs.ID)
		if ltm == nil {
			continue
		}
		if store.AgeDays(ltm.PromotedAt, now) < h.thresholds.MinAgeDays {
			continue
		}
		eligible = append(eligible, obs)
	}
	return eligible, nil
}

// ActiveLongTerm lists long-term entries that have not been denied.
func (h *Hierarchy) ActiveLongTerm() []*LongTermMemory {
	var active []*LongTermMemory
	for _, ltm := range h.doc.All() {
		if ltm.Status != LTMDenied {
			active = append(active, ltm)
		}
	}
	return active
}

// LevelCounts tallies observations per lifecycle status.
func (h *Hierarchy) LevelCounts(ctx context.Context) (map[store.Status]int, error) {
	all, err := h.store.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[store.Status]int)
	for _, obs := range all {
		counts[obs.Status]++
	}
	return counts, nil
}

// coreEntry renders the block written into a core destination: the pattern
// text as a heading followed by bullets for its evidence.
func coreEntry(o *store.Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", o.Description)
	fmt.Fprintf(&b, "- Count: %d\n", o.Count)
	fmt.Fprintf(&b, "- First seen: %s\n", o.FirstSeen.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Last seen: %s\n", o.LastSeen.Format("2006-01-02"))
	if len(o.TranscriptIDs) > 0 {
		fmt.Fprintf(&b, "- Transcripts: %s\n", strings.Join(o.TranscriptIDs, ", "))
	}
	fmt.Fprintf(&b, "- Category: %s", o.Category)
	return b.String()
}
