package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/quirk/internal/retention"
)

func newSnapshot(t *testing.T) *SnapshotStore {
	t.Helper()
	s, err := NewSnapshotStore(filepath.Join(t.TempDir(), "observations.json"), retention.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}
	return s
}

func obsFixture(id string) *Observation {
	now := time.Now()
	return &Observation{
		ID:            id,
		Description:   "Frequently uses the bash tool (3 times in one session)",
		Category:      CategoryToolChoice,
		Count:         1,
		Status:        StatusPending,
		TranscriptIDs: []string{"t1"},
		FirstSeen:     now,
		LastSeen:      now,
	}
}

func TestSnapshotCreateAndGet(t *testing.T) {
	s := newSnapshot(t)
	ctx := context.Background()

	if err := s.Create(ctx, obsFixture("obs-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "obs-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Count != 1 || got.Status != StatusPending {
		t.Errorf("got count=%d status=%s", got.Count, got.Status)
	}

	if err := s.Create(ctx, obsFixture("obs-1")); err == nil {
		t.Error("expected duplicate id to fail")
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotValidation(t *testing.T) {
	s := newSnapshot(t)
	ctx := context.Background()

	cases := map[string]*Observation{
		"empty id":          {Description: "d", Category: CategoryOther, Count: 1},
		"empty description": {ID: "x", Category: CategoryOther, Count: 1},
		"bad category":      {ID: "x", Description: "d", Category: "bogus", Count: 1},
		"zero count":        {ID: "x", Description: "d", Category: CategoryOther, Count: 0},
	}
	for name, o := range cases {
		if err := s.Create(ctx, o); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestSnapshotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "observations.json")
	ctx := context.Background()

	s, err := NewSnapshotStore(path, retention.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}
	if err := s.Create(ctx, obsFixture("obs-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.IncrementCount(ctx, "obs-1", "t2", time.Now()); err != nil {
		t.Fatalf("IncrementCount: %v", err)
	}

	reopened, err := NewSnapshotStore(path, retention.DefaultPolicy)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx, "obs-1")
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Count != 2 {
		t.Errorf("count after reload = %d, want 2", got.Count)
	}
	if len(got.TranscriptIDs) != 2 {
		t.Errorf("transcripts after reload = %v", got.TranscriptIDs)
	}
}

func TestSnapshotIncrementUnionsTranscripts(t *testing.T) {
	s := newSnapshot(t)
	ctx := context.Background()

	if err := s.Create(ctx, obsFixture("obs-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Same transcript twice must not duplicate the id.
	if err := s.IncrementCount(ctx, "obs-1", "t1", time.Now()); err != nil {
		t.Fatalf("IncrementCount: %v", err)
	}
	got, _ := s.Get(ctx, "obs-1")
	if got.Count != 2 {
		t.Errorf("count = %d, want 2", got.Count)
	}
	if len(got.TranscriptIDs) != 1 {
		t.Errorf("TranscriptIDs = %v, want just t1", got.TranscriptIDs)
	}
}

func TestSnapshotQueryFilters(t *testing.T) {
	s := newSnapshot(t)
	ctx := context.Background()

	a := obsFixture("a")
	b := obsFixture("b")
	b.Category = CategoryWorkflow
	b.Count = 5
	b.Tags = []string{"hotspot"}
	c := obsFixture("c")
	c.Status = StatusDenied
	if err := s.CreateBatch(ctx, []*Observation{a, b, c}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	t.Run("by category", func(t *testing.T) {
		cat := CategoryWorkflow
		got, _ := s.Query(ctx, Query{Category: &cat})
		if len(got) != 1 || got[0].ID != "b" {
			t.Errorf("got %v", ids(got))
		}
	})

	t.Run("by status", func(t *testing.T) {
		st := StatusDenied
		got, _ := s.Query(ctx, Query{Status: &st})
		if len(got) != 1 || got[0].ID != "c" {
			t.Errorf("got %v", ids(got))
		}
	})

	t.Run("min count", func(t *testing.T) {
		got, _ := s.Query(ctx, Query{MinCount: 2})
		if len(got) != 1 || got[0].ID != "b" {
			t.Errorf("got %v", ids(got))
		}
	})

	t.Run("by tag", func(t *testing.T) {
		got, _ := s.Query(ctx, Query{Tags: []string{"hotspot", "unused"}})
		if len(got) != 1 || got[0].ID != "b" {
			t.Errorf("got %v", ids(got))
		}
	})

	t.Run("insertion order by default", func(t *testing.T) {
		got, _ := s.Query(ctx, Query{})
		if want := []string{"a", "b", "c"}; !equalIDs(got, want) {
			t.Errorf("got %v, want %v", ids(got), want)
		}
	})

	t.Run("sort by count descending with limit", func(t *testing.T) {
		got, _ := s.Query(ctx, Query{SortBy: "count", Descending: true, Limit: 1})
		if len(got) != 1 || got[0].ID != "b" {
			t.Errorf("got %v", ids(got))
		}
	})
}

func TestSnapshotQueryExpiration(t *testing.T) {
	s := newSnapshot(t)
	ctx := context.Background()

	fresh := obsFixture("fresh")
	stale := obsFixture("stale")
	stale.FirstSeen = time.Now().Add(-45 * 24 * time.Hour)
	stale.LastSeen = time.Now().Add(-31 * 24 * time.Hour)
	edge := obsFixture("edge")
	edge.FirstSeen = time.Now().Add(-30 * 24 * time.Hour)
	edge.LastSeen = time.Now().Add(-30 * 24 * time.Hour)
	if err := s.CreateBatch(ctx, []*Observation{fresh, stale, edge}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	got, _ := s.Query(ctx, Query{})
	if want := []string{"fresh", "edge"}; !equalIDs(got, want) {
		t.Errorf("default query got %v, want %v", ids(got), want)
	}

	got, _ = s.Query(ctx, Query{IncludeExpired: true})
	if len(got) != 3 {
		t.Errorf("IncludeExpired got %d rows, want 3", len(got))
	}
}

func TestSnapshotPurge(t *testing.T) {
	s := newSnapshot(t)
	ctx := context.Background()

	fresh := obsFixture("fresh")
	stale := obsFixture("stale")
	stale.FirstSeen = time.Now().Add(-60 * 24 * time.Hour)
	stale.LastSeen = time.Now().Add(-31 * 24 * time.Hour)
	if err := s.CreateBatch(ctx, []*Observation{fresh, stale}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	removed, err := s.Purge(ctx, time.Now())
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := s.Get(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale still present: %v", err)
	}
	if _, err := s.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh was purged: %v", err)
	}
}

func TestSnapshotTransition(t *testing.T) {
	s := newSnapshot(t)
	ctx := context.Background()
	if err := s.Create(ctx, obsFixture("obs-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	steps := []Status{StatusApproved, StatusLongTerm, StatusCore}
	for _, st := range steps {
		if err := s.Transition(ctx, "obs-1", st); err != nil {
			t.Fatalf("Transition to %s: %v", st, err)
		}
	}
	if err := s.Transition(ctx, "obs-1", StatusApproved); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("regression allowed: %v", err)
	}

	if err := s.Create(ctx, obsFixture("obs-2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Transition(ctx, "obs-2", StatusDenied); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if err := s.Transition(ctx, "obs-2", StatusApproved); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("leaving denied allowed: %v", err)
	}
}

func TestSnapshotGetReturnsCopy(t *testing.T) {
	s := newSnapshot(t)
	ctx := context.Background()
	if err := s.Create(ctx, obsFixture("obs-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, _ := s.Get(ctx, "obs-1")
	got.Description = "mutated"
	got.TranscriptIDs[0] = "mutated"

	again, _ := s.Get(ctx, "obs-1")
	if again.Description == "mutated" || again.TranscriptIDs[0] == "mutated" {
		t.Error("Get leaked internal state")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusLongTerm, true},
		{StatusPending, StatusCore, true},
		{StatusApproved, StatusPending, false},
		{StatusLongTerm, StatusApproved, false},
		{StatusPending, StatusDenied, true},
		{StatusCore, StatusDenied, true},
		{StatusDenied, StatusPending, false},
		{StatusDenied, StatusDenied, false},
		{StatusPending, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		then time.Time
		want int
	}{
		{now, 0},
		{now.Add(-23 * time.Hour), 0},
		{now.Add(-24 * time.Hour), 1},
		{now.Add(-7*24*time.Hour + time.Minute), 6},
		{now.Add(-7 * 24 * time.Hour), 7},
		{now.Add(time.Hour), 0}, // clock skew never goes negative
	}
	for _, tc := range cases {
		if got := AgeDays(tc.then, now); got != tc.want {
			t.Errorf("AgeDays(%v) = %d, want %d", tc.then, got, tc.want)
		}
	}
}

func TestExpiredBoundary(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	exactly := now.Add(-30 * 24 * time.Hour)
	if expired(exactly, now, 30) {
		t.Error("entry exactly 30 days old should still be live")
	}
	over := now.Add(-31 * 24 * time.Hour)
	if !expired(over, now, 30) {
		t.Error("entry 31 days old should be expired")
	}
	if expired(over, now, 0) {
		t.Error("zero window must disable expiration")
	}
}

func ids(items []*Observation) []string {
	out := make([]string, len(items))
	for i, o := range items {
		out[i] = o.ID
	}
	return out
}

func equalIDs(items []*Observation, want []string) bool {
	if len(items) != len(want) {
		return false
	}
	for i, o := range items {
		if o.ID != want[i] {
			return false
		}
	}
	return true
}
