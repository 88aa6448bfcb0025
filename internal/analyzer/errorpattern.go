package analyzer

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

const (
	// minFailedCalls is how many failures a tool needs before its failure
	// rate is worth reporting.
	minFailedCalls = 2
	// maxHealthyFailureRate is the rate a tool must exceed (strictly) to
	// be reported.
	maxHealthyFailureRate = 0.2
	// minErrorTextRecurrence is how often the same normalized error text
	// must recur across tools.
	minErrorTextRecurrence = 2
	// minRecoveryRecurrence is how often the same recovery tool must
	// follow the same failing tool.
	minRecoveryRecurrence = 2
	// defaultMaxErrorTextLen bounds error texts embedded in descriptions.
	defaultMaxErrorTextLen = 100
)

// ErrorPattern tracks tool failures: per-tool failure rates, error texts
// recurring across tools, and which tool the session reaches for right
// after a failure.
type ErrorPattern struct {
	maxTextLen int
}

// NewErrorPattern creates the analyzer. maxTextLen bounds embedded error
// texts; zero applies the default of 100 characters.
func NewErrorPattern(maxTextLen int) *ErrorPattern {
	if maxTextLen <= 0 {
		maxTextLen = defaultMaxErrorTextLen
	}
	return &ErrorPattern{maxTextLen: maxTextLen}
}

// Name implements Analyzer.
func (a *ErrorPattern) Name() string { return "error-pattern" }

// Analyze implements Analyzer.
func (a *ErrorPattern) Analyze(t *transcript.Transcript) []store.Draft {
	var drafts []store.Draft
	drafts = append(drafts, a.failureRateDrafts(t)...)
	drafts = append(drafts, a.recurringTextDrafts(t)...)
	drafts = append(drafts, a.recoveryDrafts(t)...)
	return drafts
}

// failureRateDrafts reports tools with at least minFailedCalls failures and
// a failure rate above maxHealthyFailureRate, naming the most frequent
// captured error text.
func (a *ErrorPattern) failureRateDrafts(t *transcript.Transcript) []store.Draft {
	totals := make(map[string]int)
	failures := make(map[string]int)
	errTexts := make(map[string]map[string]int)
	for _, m := range t.Messages {
		for _, c := range m.ToolCalls {
			totals[c.Name]++
			if !c.Failed() {
				continue
			}
			failures[c.Name]++
			if c.Result != "" {
				if errTexts[c.Name] == nil {
					errTexts[c.Name] = make(map[string]int)
				}
				errTexts[c.Name][c.Result]++
			}
		}
	}

	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)

	var drafts []store.Draft
	for _, name := range names {
		failed := failures[name]
		total := totals[name]
		rate := float64(failed) / float64(total)
		if failed < minFailedCalls || rate <= maxHealthyFailureRate {
			continue
		}
		desc := fmt.Sprintf("The %s tool fails often: %d of %d calls (%.0f%%)", name, failed, total, rate*100)
		if top := dominantKey(errTexts[name]); top != "" {
			desc += fmt.Sprintf("; typical error: %s", truncate(top, a.maxTextLen))
		}
		drafts = append(drafts, store.Draft{
			Description: desc,
			Category:    store.CategoryPattern,
			Metadata:    map[string]string{"tool": name, "failure_rate": fmt.Sprintf("%.2f", rate)},
		})
	}
	return drafts
}

// recurringTextDrafts reports normalized error texts seen at least twice
// across all tools.
func (a *ErrorPattern) recurringTextDrafts(t *transcript.Transcript) []store.Draft {
	counts := make(map[string]int)
	for _, m := range t.Messages {
		for _, c := range m.ToolCalls {
			if !c.Failed() || c.Result == "" {
				continue
			}
			counts[normalizeErrorText(c.Result)]++
		}
	}

	texts := make([]string, 0, len(counts))
	for text, n := range counts {
		if n >= minErrorTextRecurrence {
			texts = append(texts, text)
		}
	}
	sort.Strings(texts)

	var drafts []store.Draft
	for _, text := range texts {
		drafts = append(drafts, store.Draft{
			Description: fmt.Sprintf("Recurring error across tools (%d times): %s", counts[text], truncate(text, a.maxTextLen)),
			Category:    store.CategoryPattern,
		})
	}
	return drafts
}

// recoveryDrafts reports, per failing tool, the dominant tool invoked in the
// message immediately after a failure.
func (a *ErrorPattern) recoveryDrafts(t *transcript.Transcript) []store.Draft {
	recoveries := make(map[string]map[string]int)
	for i, m := range t.Messages {
		next := i + 1
		if next >= len(t.Messages) || len(t.Messages[next].ToolCalls) == 0 {
			continue
		}
		recovery := t.Messages[next].ToolCalls[0].Name
		for _, c := range m.ToolCalls {
			if !c.Failed() {
				continue
			}
			if recoveries[c.Name] == nil {
				recoveries[c.Name] = make(map[string]int)
			}
			recoveries[c.Name][recovery]++
		}
	}

	failing := make([]string, 0, len(recoveries))
	for name := range recoveries {
		failing = append(failing, name)
	}
	sort.Strings(failing)

	var drafts []store.Draft
	for _, name := range failing {
		recovery := dominantKey(recoveries[name])
		if recovery == "" || recoveries[name][recovery] < minRecoveryRecurrence {
			continue
		}
		drafts = append(drafts, store.Draft{
			Description: fmt.Sprintf("After %s fails, typically recovers with %s (%d times)", name, recovery, recoveries[name][recovery]),
			Category:    store.CategoryWorkflow,
			Metadata:    map[string]string{"failing_tool": name, "recovery_tool": recovery},
		})
	}
	return drafts
}

// dominantKey returns the most frequent key; ties break lexicographically
// so the report is deterministic.
func dominantKey(counts map[string]int) string {
	best := ""
	bestCount := 0
	for k, n := range counts {
		if n > bestCount || (n == bestCount && k < best) {
			best, bestCount = k, n
		}
	}
	return best
}

// normalizeErrorText lowercases and collapses whitespace so the same error
// matches across tools and formatting.
func normalizeErrorText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// truncate cuts s to n characters, not bytes, so a multibyte rune is never
// split in half.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
