package store

import "time"

// Category classifies what kind of behavior an observation describes.
type Category string

const (
	CategoryPreference Category = "preference"
	CategoryPattern    Category = "pattern"
	CategoryWorkflow   Category = "workflow"
	CategoryToolChoice Category = "tool-choice"
	CategoryStyle      Category = "style"
	CategoryOther      Category = "other"
)

// Categories lists every valid category, in a stable order.
var Categories = []Category{
	CategoryPreference,
	CategoryPattern,
	CategoryWorkflow,
	CategoryToolChoice,
	CategoryStyle,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an observation. It only moves forward
// through pending -> approved -> long-term -> core, or sideways to denied.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusLongTerm Status = "promoted_to_long_term"
	StatusCore     Status = "promoted_to_core"
)

// statusRank orders the forward chain; denied is terminal and handled apart.
var statusRank = map[Status]int{
	StatusPending:  0,
	StatusApproved: 1,
	StatusLongTerm: 2,
	StatusCore:     3,
}

// CanTransition reports whether a status change is legal: strictly forward
// along the promotion chain, or to denied from any non-denied state.
func CanTransition(from, to Status) bool {
	if from == StatusDenied {
		return false
	}
	if to == StatusDenied {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Draft is a pattern statement produced by an analyzer or the extraction
// oracle, before deduplication against the store.
type Draft struct {
	Description  string            `json:"description"`
	Category     Category          `json:"category"`
	TranscriptID string            `json:"transcript_id,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Observation is a detected behavioral pattern with a frequency count and
// lifecycle status.
type Observation struct {
	ID            string            `json:"id"`
	Description   string            `json:"description"`
	Category      Category          `json:"category"`
	Count         int               `json:"count"`
	Status        Status            `json:"status"`
	TranscriptIDs []string          `json:"transcript_ids,omitempty"`
	FirstSeen     time.Time         `json:"first_seen"`
	LastSeen      time.Time         `json:"last_seen"`
	Tags          []string          `json:"tags,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// HasTranscript reports whether the transcript already contributed to this
// observation.
func (o *Observation) HasTranscript(id string) bool {
	for _, t := range o.TranscriptIDs {
		if t == id {
			return true
		}
	}
	return false
}

// HasTag reports whether the observation carries the given tag.
func (o *Observation) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// clone returns a deep copy so callers cannot mutate stored state.
func (o *Observation) clone() *Observation {
	cp := *o
	cp.TranscriptIDs = append([]string(nil), o.TranscriptIDs...)
	cp.Tags = append([]string(nil), o.Tags...)
	if o.Metadata != nil {
		cp.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Query filters and orders store reads. Zero values mean "no constraint".
type Query struct {
	Status       *Status
	Category     *Category
	Since        *time.Time // first match on LastSeen
	Until        *time.Time
	MinCount     int
	Tags         []string // any overlap
	TranscriptID string   // contributing transcript
	SortBy       string   // "count", "first_seen", "last_seen" (default insertion order)
	Descending   bool
	Offset       int
	Limit        int // 0 means unlimited

	// IncludeExpired disables the retention-window filter applied to
	// default queries. Deduplication sets it: the similarity scan covers
	// all non-denied rows.
	IncludeExpired bool
}

// Update is a partial observation update; nil fields are left untouched.
type Update struct {
	Description *string
	Category    *Category
	Tags        *[]string
	Metadata    *map[string]string
}
