// Package retention holds the policy limits applied to stored patterns and
// analysis runs.
package retention

// Policy bounds how long entries stay queryable and how much work a single
// run may take on.
type Policy struct {
	// ExpirationDays is the retention window measured from an entry's
	// last-seen timestamp. Entries older than the window are excluded
	// from default queries but kept on disk until an explicit purge.
	// Zero disables expiration.
	ExpirationDays int `json:"expiration_days" yaml:"expiration_days"`

	// MaxTranscriptsPerRun caps how many transcripts one run processes.
	// Zero means unlimited.
	MaxTranscriptsPerRun int `json:"max_transcripts_per_run" yaml:"max_transcripts_per_run"`

	// MaxErrorTextLen truncates captured error texts before they are
	// embedded in observation descriptions.
	MaxErrorTextLen int `json:"max_error_text_len" yaml:"max_error_text_len"`
}

// Violation names the limit an input ran into.
type Violation struct {
	Rule    string
	Message string
}

// DefaultPolicy matches the documented defaults: a 30 day window, unbounded
// runs, 100 character error texts.
var DefaultPolicy = Policy{
	ExpirationDays:  30,
	MaxErrorTextLen: 100,
}

// CapTranscripts trims a transcript count to the per-run limit and reports
// the violation when trimming happened.
func (p Policy) CapTranscripts(n int) (int, *Violation) {
	if p.MaxTranscriptsPerRun <= 0 || n <= p.MaxTranscriptsPerRun {
		return n, nil
	}
	return p.MaxTranscriptsPerRun, &Violation{
		Rule:    "max_transcripts_per_run",
		Message: "transcript batch truncated to per-run limit",
	}
}
