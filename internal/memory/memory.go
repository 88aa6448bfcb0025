// Package memory holds the promotion hierarchy above the observation
// store: observations graduate to long-term memory, and long-term entries
// graduate into core instruction files read by the assistant itself.
package memory

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/quirk/internal/store"
)

// Long-term entry lifecycle.
const (
	LTMApproved         = "approved"
	LTMScheduledForCore = "scheduled_for_core"
	LTMDenied           = "denied"
)

// LongTermMemory is an observation frozen at promotion time, plus its
// position in the long-term lifecycle.
type LongTermMemory struct {
	ID          string            `json:"id"`
	Observation store.Observation `json:"observation"`
	PromotedAt  time.Time         `json:"promoted_at"`
	Status      string            `json:"status"`
}

// Thresholds gate the two promotion steps.
type Thresholds struct {
	// MinCountLongTerm is the occurrence count an observation needs to
	// enter long-term memory.
	MinCountLongTerm int `yaml:"min_count_long_term" json:"min_count_long_term"`

	// MinCountCore is the occurrence count a long-term entry needs to
	// reach core.
	MinCountCore int `yaml:"min_count_core" json:"min_count_core"`

	// MinAgeDays is how many whole days must have passed since the
	// long-term promotion before an entry can reach core.
	MinAgeDays int `yaml:"min_age_days" json:"min_age_days"`
}

// DefaultThresholds returns the standard gates: twice-seen for long-term,
// three times and a week old for core.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinCountLongTerm: 2,
		MinCountCore:     3,
		MinAgeDays:       7,
	}
}

// ErrNoTargets is returned when a core promotion has no destination to
// write to.
var ErrNoTargets = errors.New("no core destinations configured")

// ShortfallError reports which threshold a promotion missed and by how
// much, so callers can tell the user exactly what is lacking.
type ShortfallError struct {
	Field    string
	Current  int
	Required int
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("%s %d below the required %d", e.Field, e.Current, e.Required)
}
