package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

const (
	minSeqLen         = 3
	maxSeqLen         = 5
	minSeqFrequency   = 2
	minLoopRepeats    = 2
	sequenceSeparator = " → "
)

// loopPeriods are the cycle lengths the loop detector scans for.
var loopPeriods = []int{2, 3}

// Workflow mines the session's tool chain for recurring contiguous
// sequences and for short cycles the assistant is stuck repeating.
type Workflow struct{}

// NewWorkflow creates the analyzer.
func NewWorkflow() *Workflow {
	return &Workflow{}
}

// Name implements Analyzer.
func (a *Workflow) Name() string { return "workflow" }

// Analyze implements Analyzer.
func (a *Workflow) Analyze(t *transcript.Transcript) []store.Draft {
	chain := t.ToolChain()
	if len(chain) < minSeqLen {
		return nil
	}
	drafts := a.sequenceDrafts(chain)
	drafts = append(drafts, a.loopDrafts(chain)...)
	return drafts
}

// sequenceDrafts counts every contiguous subsequence of length 3 to 5 and
// reports those seen at least twice. A shorter sequence is suppressed when
// a longer reported one contains it at the same or higher frequency, so a
// recurring five-step workflow does not also surface as its fragments.
func (a *Workflow) sequenceDrafts(chain []string) []store.Draft {
	counts := make(map[string]int)
	for length := minSeqLen; length <= maxSeqLen; length++ {
		for i := 0; i+length <= len(chain); i++ {
			key := strings.Join(chain[i:i+length], sequenceSeparator)
			counts[key]++
		}
	}

	var kept []string
	for key, n := range counts {
		if n >= minSeqFrequency {
			kept = append(kept, key)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	survivors := make([]string, 0, len(kept))
	for _, key := range kept {
		subsumed := false
		for _, other := range kept {
			if other == key || len(other) <= len(key) {
				continue
			}
			if containsSeq(other, key) && counts[other] >= counts[key] {
				subsumed = true
				break
			}
		}
		if !subsumed {
			survivors = append(survivors, key)
		}
	}

	sort.Slice(survivors, func(i, j int) bool {
		if counts[survivors[i]] != counts[survivors[j]] {
			return counts[survivors[i]] > counts[survivors[j]]
		}
		return survivors[i] < survivors[j]
	})

	drafts := make([]store.Draft, 0, len(survivors))
	for _, key := range survivors {
		drafts = append(drafts, store.Draft{
			Description: fmt.Sprintf("Repeated tool sequence: %s (%d times)", key, counts[key]),
			Category:    store.CategoryWorkflow,
		})
	}
	return drafts
}

// loopDrafts finds back-to-back repetitions of a short cycle, such as
// bash → edit → bash → edit → bash → edit. After a run is found the scan
// resumes past it, so offset-shifted variants of the same cycle are not
// reported again.
func (a *Workflow) loopDrafts(chain []string) []store.Draft {
	// best repetition count per distinct cycle content
	best := make(map[string]int)
	for _, period := range loopPeriods {
		for i := 0; i+period <= len(chain); {
			unit := chain[i : i+period]
			if uniform(unit) {
				i++
				continue
			}
			reps := 1
			for j := i + period; j+period <= len(chain); j += period {
				if !equalSeq(unit, chain[j:j+period]) {
					break
				}
				reps++
			}
			if reps >= minLoopRepeats {
				key := strings.Join(unit, sequenceSeparator)
				if reps > best[key] {
					best[key] = reps
				}
				i += reps * period
			} else {
				i++
			}
		}
	}
	if len(best) == 0 {
		return nil
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if best[keys[i]] != best[keys[j]] {
			return best[keys[i]] > best[keys[j]]
		}
		return keys[i] < keys[j]
	})

	drafts := make([]store.Draft, 0, len(keys))
	for _, key := range keys {
		drafts = append(drafts, store.Draft{
			Description: fmt.Sprintf("Loop detected: %s repeated %d times", key, best[key]),
			Category:    store.CategoryWorkflow,
			Tags:        []string{"loop"},
		})
	}
	return drafts
}

// containsSeq reports whether the joined sequence inner occurs inside
// outer on tool-name boundaries.
func containsSeq(outer, inner string) bool {
	return strings.HasPrefix(outer, inner+sequenceSeparator) ||
		strings.HasSuffix(outer, sequenceSeparator+inner) ||
		strings.Contains(outer, sequenceSeparator+inner+sequenceSeparator)
}

func equalSeq(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// uniform reports whether every element is the same tool; a run of one
// tool is plain repetition, not a cycle.
func uniform(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
