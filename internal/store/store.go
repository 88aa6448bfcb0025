// Package store persists observations and deduplicates new pattern drafts
// against them with the help of an external similarity judgment.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNotFound is returned when an observation id does not exist.
var ErrNotFound = errors.New("observation not found")

// Store is the durable, deduplicating observation collection. Every mutating
// call persists before returning; there is no wider transaction boundary.
type Store interface {
	// Create inserts a new observation. The id must be unique.
	Create(ctx context.Context, obs *Observation) error

	// CreateBatch inserts several observations in one call.
	CreateBatch(ctx context.Context, obs []*Observation) error

	// Get returns the observation with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Observation, error)

	// List returns observations in insertion order, filtered to the given
	// statuses when any are passed.
	List(ctx context.Context, statuses ...Status) ([]*Observation, error)

	// Query returns observations matching q. Without an explicit sort the
	// result keeps insertion order.
	Query(ctx context.Context, q Query) ([]*Observation, error)

	// IncrementCount bumps the count by one, moves LastSeen to seen, and
	// unions transcriptID into the contributing set.
	IncrementCount(ctx context.Context, id, transcriptID string, seen time.Time) error

	// Transition moves the observation to a new lifecycle status. Illegal
	// transitions (regressions, leaving denied) fail.
	Transition(ctx context.Context, id string, to Status) error

	// Update applies a partial update.
	Update(ctx context.Context, id string, upd Update) error

	// Purge removes observations whose retention window has lapsed and
	// returns how many were removed.
	Purge(ctx context.Context, now time.Time) (int, error)

	Close() error
}

// ErrInvalidTransition is wrapped by Transition failures.
var ErrInvalidTransition = errors.New("invalid status transition")

func validateNew(obs *Observation) error {
	if obs.ID == "" {
		return fmt.Errorf("observation id is required")
	}
	if obs.Description == "" {
		return fmt.Errorf("observation description is required")
	}
	if !obs.Category.Valid() {
		return fmt.Errorf("unknown category %q", obs.Category)
	}
	if obs.Count < 1 {
		return fmt.Errorf("count must be >= 1, got %d", obs.Count)
	}
	if obs.LastSeen.Before(obs.FirstSeen) {
		return fmt.Errorf("last seen %s precedes first seen %s", obs.LastSeen, obs.FirstSeen)
	}
	if obs.Status == "" {
		obs.Status = StatusPending
	}
	return nil
}

// AgeDays is the whole number of days between then and now, floored and
// never negative. Promotion age checks and retention share it so "a day"
// means the same thing everywhere.
func AgeDays(then, now time.Time) int {
	if now.Before(then) {
		return 0
	}
	return int(now.Sub(then).Hours() / 24)
}

// expired reports whether an entry last seen at lastSeen has outlived the
// window: exactly expirationDays old is still live, one day older is not.
func expired(lastSeen, now time.Time, expirationDays int) bool {
	if expirationDays <= 0 {
		return false
	}
	return AgeDays(lastSeen, now) > expirationDays
}

// matchQuery applies every filter in q except expiration, which depends on
// the backend's retention policy.
func matchQuery(o *Observation, q Query) bool {
	if q.Status != nil && o.Status != *q.Status {
		return false
	}
	if q.Category != nil && o.Category != *q.Category {
		return false
	}
	if q.Since != nil && o.LastSeen.Before(*q.Since) {
		return false
	}
	if q.Until != nil && o.LastSeen.After(*q.Until) {
		return false
	}
	if q.MinCount > 0 && o.Count < q.MinCount {
		return false
	}
	if q.TranscriptID != "" && !o.HasTranscript(q.TranscriptID) {
		return false
	}
	if len(q.Tags) > 0 {
		overlap := false
		for _, t := range q.Tags {
			if o.HasTag(t) {
				overlap = true
				break
			}
		}
		if !overlap {
			return false
		}
	}
	return true
}

// sortAndPage orders results and applies offset/limit. The input slice is
// already in insertion order, which is kept when no sort key is set.
func sortAndPage(items []*Observation, q Query) []*Observation {
	switch q.SortBy {
	case "count":
		sort.SliceStable(items, func(i, j int) bool { return items[i].Count < items[j].Count })
	case "first_seen":
		sort.SliceStable(items, func(i, j int) bool { return items[i].FirstSeen.Before(items[j].FirstSeen) })
	case "last_seen":
		sort.SliceStable(items, func(i, j int) bool { return items[i].LastSeen.Before(items[j].LastSeen) })
	}
	if q.Descending && q.SortBy != "" {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	if q.Offset > 0 {
		if q.Offset >= len(items) {
			return nil
		}
		items = items[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(items) {
		items = items[:q.Limit]
	}
	return items
}

func applyUpdate(o *Observation, upd Update) {
	if upd.Description != nil {
		o.Description = *upd.Description
	}
	if upd.Category != nil {
		o.Category = *upd.Category
	}
	if upd.Tags != nil {
		o.Tags = append([]string(nil), (*upd.Tags)...)
	}
	if upd.Metadata != nil {
		o.Metadata = make(map[string]string, len(*upd.Metadata))
		for k, v := range *upd.Metadata {
			o.Metadata[k] = v
		}
	}
}
