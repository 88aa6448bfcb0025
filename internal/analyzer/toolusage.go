package analyzer

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

const (
	// minToolFrequency is how often a tool must be used before its choice
	// counts as a pattern.
	minToolFrequency = 3
	// minPairFrequency is how often a message-to-message tool pair must
	// recur before it counts as a workflow.
	minPairFrequency = 2
	// minParamFrequency is how often the same scalar parameter value must
	// recur per tool before it counts as a pattern.
	minParamFrequency = 3
)

// ToolUsage reports which tools a session leans on: raw invocation
// frequency, tool-to-tool hand-offs between consecutive messages, and
// parameter values passed over and over.
type ToolUsage struct{}

// NewToolUsage creates the analyzer.
func NewToolUsage() *ToolUsage {
	return &ToolUsage{}
}

// Name implements Analyzer.
func (a *ToolUsage) Name() string { return "tool-usage" }

// Analyze implements Analyzer.
func (a *ToolUsage) Analyze(t *transcript.Transcript) []store.Draft {
	var drafts []store.Draft
	drafts = append(drafts, a.frequencyDrafts(t)...)
	if d, ok := a.pairDraft(t); ok {
		drafts = append(drafts, d)
	}
	drafts = append(drafts, a.paramDrafts(t)...)
	return drafts
}

// frequencyDrafts reports tools invoked at least minToolFrequency times.
// Tools whose failures already qualify for an error-pattern report are left
// to the error analyzer; raw frequency of a failing tool says nothing about
// preference.
func (a *ToolUsage) frequencyDrafts(t *transcript.Transcript) []store.Draft {
	totals := make(map[string]int)
	failed := make(map[string]int)
	for _, m := range t.Messages {
		for _, c := range m.ToolCalls {
			totals[c.Name]++
			if c.Failed() {
				failed[c.Name]++
			}
		}
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	var drafts []store.Draft
	for _, name := range names {
		total := totals[name]
		if total < minToolFrequency {
			continue
		}
		if f := failed[name]; f >= minFailedCalls && float64(f)/float64(total) > maxHealthyFailureRate {
			continue
		}
		drafts = append(drafts, store.Draft{
			Description: fmt.Sprintf("Frequently uses the %s tool (%d times in one session)", name, total),
			Category:    store.CategoryToolChoice,
			Metadata:    map[string]string{"tool": name, "frequency": fmt.Sprint(total)},
		})
	}
	return drafts
}

// pairDraft reports the dominant tool hand-off between consecutive
// tool-bearing messages, when it recurs.
func (a *ToolUsage) pairDraft(t *transcript.Transcript) (store.Draft, bool) {
	type pair struct{ from, to string }
	counts := make(map[pair]int)

	var prevLast string
	for _, m := range t.Messages {
		if len(m.ToolCalls) == 0 {
			continue
		}
		first := m.ToolCalls[0].Name
		if prevLast != "" {
			counts[pair{prevLast, first}]++
		}
		prevLast = m.ToolCalls[len(m.ToolCalls)-1].Name
	}

	var best pair
	bestCount := 0
	for p, n := range counts {
		if n > bestCount || (n == bestCount && (p.from < best.from || (p.from == best.from && p.to < best.to))) {
			best, bestCount = p, n
		}
	}
	if bestCount < minPairFrequency {
		return store.Draft{}, false
	}
	return store.Draft{
		Description: fmt.Sprintf("Often follows %s with %s (%d times)", best.from, best.to, bestCount),
		Category:    store.CategoryWorkflow,
		Metadata:    map[string]string{"from": best.from, "to": best.to},
	}, true
}

// paramDrafts reports scalar parameter values passed repeatedly to the same
// tool.
func (a *ToolUsage) paramDrafts(t *transcript.Transcript) []store.Draft {
	type paramValue struct{ tool, key, value string }
	counts := make(map[paramValue]int)
	for _, m := range t.Messages {
		for _, c := range m.ToolCalls {
			for key, raw := range c.Input {
				value, ok := scalarString(raw)
				if !ok || value == "" {
					continue
				}
				counts[paramValue{c.Name, key, value}]++
			}
		}
	}

	keys := make([]paramValue, 0, len(counts))
	for k, n := range counts {
		if n >= minParamFrequency {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].tool != keys[j].tool {
			return keys[i].tool < keys[j].tool
		}
		if keys[i].key != keys[j].key {
			return keys[i].key < keys[j].key
		}
		return keys[i].value < keys[j].value
	})

	var drafts []store.Draft
	for _, k := range keys {
		drafts = append(drafts, store.Draft{
			Description: fmt.Sprintf("Repeatedly passes %s=%q to %s (%d times)", k.key, k.value, k.tool, counts[k]),
			Category:    store.CategoryPattern,
			Metadata:    map[string]string{"tool": k.tool, "param": k.key},
		})
	}
	return drafts
}

// scalarString renders a scalar JSON value for counting; composite values
// don't count as repeated parameters.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		if len(x) > 200 {
			return "", false
		}
		return x, true
	case float64:
		return fmt.Sprintf("%g", x), true
	case int:
		return fmt.Sprint(x), true
	case bool:
		return fmt.Sprint(x), true
	default:
		return "", false
	}
}
