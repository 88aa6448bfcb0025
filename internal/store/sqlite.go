package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/quirk/internal/retention"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the alternative backend for machines where a single JSON
// snapshot grows too large. Rows carry a monotonically increasing seq so
// iteration order stays insertion order, matching SnapshotStore.
type SQLiteStore struct {
	db     *sql.DB
	policy retention.Policy
}

// NewSQLiteStore opens (and if needed initializes) the database at dbPath.
func NewSQLiteStore(dbPath string, policy retention.Policy) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &SQLiteStore{db: db, policy: policy}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `CREATE TABLE IF NOT EXISTS observations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		count INTEGER NOT NULL,
		status TEXT NOT NULL,
		transcript_ids TEXT,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		tags TEXT,
		metadata TEXT
	);`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) insert(ctx context.Context, o *Observation) error {
	ids, _ := json.Marshal(o.TranscriptIDs)
	tags, _ := json.Marshal(o.Tags)
	meta, _ := json.Marshal(o.Metadata)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (id, description, category, count, status, transcript_ids, first_seen, last_seen, tags, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Description, string(o.Category), o.Count, string(o.Status),
		string(ids), o.FirstSeen.UTC().Format(time.RFC3339Nano), o.LastSeen.UTC().Format(time.RFC3339Nano),
		string(tags), string(meta))
	return err
}

// Create inserts a new observation.
func (s *SQLiteStore) Create(ctx context.Context, obs *Observation) error {
	if err := validateNew(obs); err != nil {
		return err
	}
	if err := s.insert(ctx, obs); err != nil {
		return fmt.Errorf("inserting observation %s: %w", obs.ID, err)
	}
	return nil
}

// CreateBatch inserts several observations.
func (s *SQLiteStore) CreateBatch(ctx context.Context, obs []*Observation) error {
	for _, o := range obs {
		if err := s.Create(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func scanObservation(scan func(dest ...any) error) (*Observation, error) {
	var o Observation
	var category, status, ids, tags, meta, firstSeen, lastSeen string
	if err := scan(&o.ID, &o.Description, &category, &o.Count, &status, &ids, &firstSeen, &lastSeen, &tags, &meta); err != nil {
		return nil, err
	}
	o.Category = Category(category)
	o.Status = Status(status)
	if ids != "" && ids != "null" {
		if err := json.Unmarshal([]byte(ids), &o.TranscriptIDs); err != nil {
			return nil, fmt.Errorf("decoding transcript ids: %w", err)
		}
	}
	if tags != "" && tags != "null" {
		if err := json.Unmarshal([]byte(tags), &o.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
	}
	if meta != "" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &o.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	var err error
	if o.FirstSeen, err = time.Parse(time.RFC3339Nano, firstSeen); err != nil {
		return nil, fmt.Errorf("decoding first_seen: %w", err)
	}
	if o.LastSeen, err = time.Parse(time.RFC3339Nano, lastSeen); err != nil {
		return nil, fmt.Errorf("decoding last_seen: %w", err)
	}
	return &o, nil
}

const selectColumns = `id, description, category, count, status, transcript_ids, first_seen, last_seen, tags, metadata`

// Get returns the observation with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Observation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM observations WHERE id = ?`, id)
	o, err := scanObservation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return o, err
}

func (s *SQLiteStore) all(ctx context.Context) ([]*Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM observations ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Observation
	for rows.Next() {
		o, err := scanObservation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// List returns observations in insertion order, optionally filtered by status.
func (s *SQLiteStore) List(ctx context.Context, statuses ...Status) ([]*Observation, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return all, nil
	}
	var out []*Observation
	for _, o := range all {
		for _, st := range statuses {
			if o.Status == st {
				out = append(out, o)
				break
			}
		}
	}
	return out, nil
}

// Query loads the collection and filters in memory; fine for the store's
// expected size (a few thousand rows at most), and it keeps filtering and
// expiration semantics byte-identical with SnapshotStore.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]*Observation, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var out []*Observation
	for _, o := range all {
		if !q.IncludeExpired && expired(o.LastSeen, now, s.policy.ExpirationDays) {
			continue
		}
		if matchQuery(o, q) {
			out = append(out, o)
		}
	}
	return sortAndPage(out, q), nil
}

// IncrementCount bumps count, moves last-seen forward and unions the
// contributing transcript.
func (s *SQLiteStore) IncrementCount(ctx context.Context, id, transcriptID string, seen time.Time) error {
	o, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	o.Count++
	if seen.After(o.LastSeen) {
		o.LastSeen = seen
	}
	if transcriptID != "" && !o.HasTranscript(transcriptID) {
		o.TranscriptIDs = append(o.TranscriptIDs, transcriptID)
	}
	return s.write(ctx, o)
}

func (s *SQLiteStore) write(ctx context.Context, o *Observation) error {
	ids, _ := json.Marshal(o.TranscriptIDs)
	tags, _ := json.Marshal(o.Tags)
	meta, _ := json.Marshal(o.Metadata)
	_, err := s.db.ExecContext(ctx,
		`UPDATE observations SET description = ?, category = ?, count = ?, status = ?,
		 transcript_ids = ?, first_seen = ?, last_seen = ?, tags = ?, metadata = ? WHERE id = ?`,
		o.Description, string(o.Category), o.Count, string(o.Status),
		string(ids), o.FirstSeen.UTC().Format(time.RFC3339Nano), o.LastSeen.UTC().Format(time.RFC3339Nano),
		string(tags), string(meta), o.ID)
	return err
}

// Transition moves the observation's lifecycle status forward (or to denied).
func (s *SQLiteStore) Transition(ctx context.Context, id string, to Status) error {
	o, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	return s.write(ctx, o)
}

// Update applies a partial update.
func (s *SQLiteStore) Update(ctx context.Context, id string, upd Update) error {
	o, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	applyUpdate(o, upd)
	return s.write(ctx, o)
}

// Purge removes entries that have outlived the retention window.
func (s *SQLiteStore) Purge(ctx context.Context, now time.Time) (int, error) {
	all, err := s.all(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, o := range all {
		if !expired(o.LastSeen, now, s.policy.ExpirationDays) {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM observations WHERE id = ?`, o.ID); err != nil {
			return removed, fmt.Errorf("purging %s: %w", o.ID, err)
		}
		removed++
	}
	return removed, nil
}
