package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/quirk/internal/retention"
)

func newSQLite(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "observations.db")
	s, err := NewSQLiteStore(path, retention.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSQLiteRoundTrip(t *testing.T) {
	s, _ := newSQLite(t)
	ctx := context.Background()

	o := obsFixture("obs-1")
	o.Tags = []string{"hotspot"}
	o.Metadata = map[string]string{"analyzer": "file-interaction"}
	if err := s.Create(ctx, o); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "obs-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != o.Description || got.Category != o.Category {
		t.Errorf("got %q/%s", got.Description, got.Category)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "hotspot" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Metadata["analyzer"] != "file-interaction" {
		t.Errorf("metadata = %v", got.Metadata)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteIncrementAndTransition(t *testing.T) {
	s, _ := newSQLite(t)
	ctx := context.Background()

	if err := s.Create(ctx, obsFixture("obs-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.IncrementCount(ctx, "obs-1", "t2", time.Now()); err != nil {
		t.Fatalf("IncrementCount: %v", err)
	}
	got, _ := s.Get(ctx, "obs-1")
	if got.Count != 2 || len(got.TranscriptIDs) != 2 {
		t.Errorf("count=%d transcripts=%v", got.Count, got.TranscriptIDs)
	}

	if err := s.Transition(ctx, "obs-1", StatusApproved); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := s.Transition(ctx, "obs-1", StatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("regression allowed: %v", err)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observations.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, retention.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Create(ctx, obsFixture("obs-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path, retention.DefaultPolicy)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "obs-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Count != 1 {
		t.Errorf("count = %d", got.Count)
	}
}

func TestSQLiteQueryAndPurge(t *testing.T) {
	s, _ := newSQLite(t)
	ctx := context.Background()

	fresh := obsFixture("fresh")
	stale := obsFixture("stale")
	stale.FirstSeen = time.Now().Add(-60 * 24 * time.Hour)
	stale.LastSeen = time.Now().Add(-31 * 24 * time.Hour)
	if err := s.CreateBatch(ctx, []*Observation{fresh, stale}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	got, err := s.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("default query got %v", ids(got))
	}

	got, _ = s.Query(ctx, Query{IncludeExpired: true})
	if len(got) != 2 {
		t.Errorf("IncludeExpired got %d rows", len(got))
	}

	removed, err := s.Purge(ctx, time.Now())
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}
