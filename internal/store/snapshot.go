package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/quirk/internal/retention"
)

const snapshotVersion = 1

// snapshotFile is the on-disk shape: a versioned record collection with
// RFC 3339 timestamps (encoding/json's time.Time default).
type snapshotFile struct {
	Version      int            `json:"version"`
	SavedAt      time.Time      `json:"saved_at"`
	Observations []*Observation `json:"observations"`
}

// SnapshotStore is the default backend: an in-memory index keyed by id over
// an insertion-ordered slice, re-serialized in full on every mutation with a
// write-to-temporary-then-rename so a crash never corrupts the previous
// consistent state. The engine is single-threaded, so no locking is needed.
type SnapshotStore struct {
	path   string
	policy retention.Policy

	order []*Observation
	index map[string]*Observation
}

// NewSnapshotStore opens (or initializes) the snapshot at path.
func NewSnapshotStore(path string, policy retention.Policy) (*SnapshotStore, error) {
	s := &SnapshotStore{
		path:   path,
		policy: policy,
		index:  make(map[string]*Observation),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SnapshotStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading snapshot %s: %w", s.path, err)
	}
	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decoding snapshot %s: %w", s.path, err)
	}
	if f.Version > snapshotVersion {
		return fmt.Errorf("snapshot %s has version %d, newer than supported %d", s.path, f.Version, snapshotVersion)
	}
	s.order = f.Observations
	for _, o := range s.order {
		s.index[o.ID] = o
	}
	return nil
}

func (s *SnapshotStore) save() error {
	f := snapshotFile{
		Version:      snapshotVersion,
		SavedAt:      time.Now().UTC(),
		Observations: s.order,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Create inserts a new observation and persists immediately.
func (s *SnapshotStore) Create(ctx context.Context, obs *Observation) error {
	if err := validateNew(obs); err != nil {
		return err
	}
	if _, exists := s.index[obs.ID]; exists {
		return fmt.Errorf("observation %s already exists", obs.ID)
	}
	cp := obs.clone()
	s.order = append(s.order, cp)
	s.index[cp.ID] = cp
	return s.save()
}

// CreateBatch inserts several observations with a single re-serialization.
func (s *SnapshotStore) CreateBatch(ctx context.Context, obs []*Observation) error {
	for _, o := range obs {
		if err := validateNew(o); err != nil {
			return err
		}
		if _, exists := s.index[o.ID]; exists {
			return fmt.Errorf("observation %s already exists", o.ID)
		}
	}
	for _, o := range obs {
		cp := o.clone()
		s.order = append(s.order, cp)
		s.index[cp.ID] = cp
	}
	return s.save()
}

// Get returns a copy of the observation with the given id.
func (s *SnapshotStore) Get(ctx context.Context, id string) (*Observation, error) {
	o, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return o.clone(), nil
}

// List returns observations in insertion order, optionally filtered by status.
func (s *SnapshotStore) List(ctx context.Context, statuses ...Status) ([]*Observation, error) {
	var out []*Observation
	for _, o := range s.order {
		if len(statuses) > 0 {
			keep := false
			for _, st := range statuses {
				if o.Status == st {
					keep = true
					break
				}
			}
			if !keep {
				continue
			}
		}
		out = append(out, o.clone())
	}
	return out, nil
}

// Query filters, sorts and pages over the collection. Entries outside the
// retention window are excluded unless q.IncludeExpired is set.
func (s *SnapshotStore) Query(ctx context.Context, q Query) ([]*Observation, error) {
	now := time.Now()
	var out []*Observation
	for _, o := range s.order {
		if !q.IncludeExpired && expired(o.LastSeen, now, s.policy.ExpirationDays) {
			continue
		}
		if matchQuery(o, q) {
			out = append(out, o.clone())
		}
	}
	return sortAndPage(out, q), nil
}

// IncrementCount bumps count, moves last-seen forward and unions the
// contributing transcript.
func (s *SnapshotStore) IncrementCount(ctx context.Context, id, transcriptID string, seen time.Time) error {
	o, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	o.Count++
	if seen.After(o.LastSeen) {
		o.LastSeen = seen
	}
	if transcriptID != "" && !o.HasTranscript(transcriptID) {
		o.TranscriptIDs = append(o.TranscriptIDs, transcriptID)
	}
	return s.save()
}

// Transition moves the observation's lifecycle status forward (or to denied).
func (s *SnapshotStore) Transition(ctx context.Context, id string, to Status) error {
	o, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	return s.save()
}

// Update applies a partial update and persists.
func (s *SnapshotStore) Update(ctx context.Context, id string, upd Update) error {
	o, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	applyUpdate(o, upd)
	return s.save()
}

// Purge removes entries that have outlived the retention window.
func (s *SnapshotStore) Purge(ctx context.Context, now time.Time) (int, error) {
	var kept []*Observation
	removed := 0
	for _, o := range s.order {
		if expired(o.LastSeen, now, s.policy.ExpirationDays) {
			delete(s.index, o.ID)
			removed++
			continue
		}
		kept = append(kept, o)
	}
	if removed == 0 {
		return 0, nil
	}
	s.order = kept
	return removed, s.save()
}

// Close is a no-op; every mutation is already on disk.
func (s *SnapshotStore) Close() error {
	return nil
}
