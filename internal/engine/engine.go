// Package engine drives one analysis run: pull transcripts from sources,
// run the programmatic analyzers and the oracle over each, and fold the
// resulting drafts into the observation store.
package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/felixgeelhaar/quirk/internal/analyzer"
	"github.com/felixgeelhaar/quirk/internal/observe"
	"github.com/felixgeelhaar/quirk/internal/oracle"
	"github.com/felixgeelhaar/quirk/internal/retention"
	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

// RunStatus summarizes how a run went.
type RunStatus string

const (
	RunSuccess        RunStatus = "success"
	RunPartialFailure RunStatus = "partial_failure"
	RunFailure        RunStatus = "failure"
)

// RunError is one recoverable problem hit during a run.
type RunError struct {
	Kind         string // "source", "oracle", "dedup", "lastrun"
	Source       string
	TranscriptID string
	Err          error
}

func (e RunError) Error() string {
	switch {
	case e.TranscriptID != "":
		return fmt.Sprintf("%s (transcript %s): %v", e.Kind, e.TranscriptID, e.Err)
	case e.Source != "":
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Source, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

// Options control one run.
type Options struct {
	// Since overrides the incremental cutoff.
	Since *time.Time

	// Full ignores the last-run marker and reprocesses everything.
	Full bool

	// DryRun collects drafts without writing observations or moving the
	// last-run marker.
	DryRun bool
}

// Result is the run summary.
type Result struct {
	Status               RunStatus     `json:"status"`
	TranscriptsProcessed int           `json:"transcripts_processed"`
	TranscriptsFailed    int           `json:"transcripts_failed"`
	DraftsCollected      int           `json:"drafts_collected"`
	ObservationsCreated  int           `json:"observations_created"`
	ObservationsMerged   int           `json:"observations_merged"`
	StartedAt            time.Time     `json:"started_at"`
	EndedAt              time.Time     `json:"ended_at"`
	Duration             time.Duration `json:"duration"`
	Errors               []RunError    `json:"-"`
}

// Config wires an Engine.
type Config struct {
	Sources     []transcript.Source
	Analyzers   *analyzer.Registry
	Oracle      oracle.Oracle
	Store       store.Store
	Policy      retention.Policy
	Observer    *observe.Observer
	Events      *EventBus
	LastRunPath string
}

// Engine runs the analysis pipeline.
type Engine struct {
	sources     []transcript.Source
	analyzers   *analyzer.Registry
	oracle      oracle.Oracle
	dedup       *store.Deduplicator
	store       store.Store
	policy      retention.Policy
	observe     *observe.Observer
	events      *EventBus
	lastRunPath string
	now         func() time.Time
}

// New creates an Engine. Analyzers default to the standard four, a nil
// Observer logs nowhere, and a nil oracle disables extraction and semantic
// dedup.
func New(cfg Config) *Engine {
	if cfg.Analyzers == nil {
		cfg.Analyzers = analyzer.Default()
	}
	if cfg.Events == nil {
		cfg.Events = NewEventBus()
	}
	if cfg.Observer == nil {
		cfg.Observer = observe.New(io.Discard, false)
	}
	var judge store.SimilarityJudge
	if cfg.Oracle != nil {
		judge = cfg.Oracle
	}
	return &Engine{
		sources:     cfg.Sources,
		analyzers:   cfg.Analyzers,
		oracle:      cfg.Oracle,
		dedup:       store.NewDeduplicator(cfg.Store, judge),
		store:       cfg.Store,
		policy:      cfg.Policy,
		observe:     cfg.Observer,
		events:      cfg.Events,
		lastRunPath: cfg.LastRunPath,
		now:         time.Now,
	}
}

// Events exposes the run event bus for subscribers.
func (e *Engine) Events() *EventBus {
	return e.events
}

// Run executes one analysis pass and always returns a Result, even on
// partial failure.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	ctx, span := e.observe.StartSpan(ctx, "engine.Run")
	defer span.End()

	result := &Result{StartedAt: e.now()}
	e.events.Publish(EventRunStarted, map[string]interface{}{"full": opts.Full, "dry_run": opts.DryRun})

	cutoff := e.cutoff(opts, result)
	transcripts := e.collect(ctx, cutoff, result)

	// Oldest first so first-seen ordering follows real time.
	sort.SliceStable(transcripts, func(i, j int) bool {
		return transcripts[i].Timestamp.Before(transcripts[j].Timestamp)
	})

	useOracle := e.oracle != nil && e.oracle.IsAvailable()
	if e.oracle != nil && !useOracle {
		e.observe.Log().Warn().Str("oracle", e.oracle.Name()).Msg("oracle unavailable, running analyzers only")
	}

	for _, t := range transcripts {
		drafts := e.analyzers.AnalyzeAll(t)
		if useOracle {
			extracted, err := e.oracle.ExtractPatterns(ctx, t)
			if err != nil {
				// A transcript the oracle could not read contributes
				// nothing, not even analyzer drafts, so a retry later
				// starts clean.
				result.TranscriptsFailed++
				result.Errors = append(result.Errors, RunError{Kind: "oracle", TranscriptID: t.ID, Err: err})
				e.events.Publish(EventTranscriptFailed, map[string]interface{}{"transcript": t.ID})
				e.observe.Log().Error().Str("transcript", t.ID).Err(err).Msg("oracle extraction failed")
				continue
			}
			drafts = append(drafts, extracted...)
		}
		result.DraftsCollected += len(drafts)

		if !opts.DryRun {
			for _, draft := range drafts {
				outcome, obs, err := e.dedup.Deduplicate(ctx, draft)
				if err != nil {
					result.Errors = append(result.Errors, RunError{Kind: "dedup", TranscriptID: t.ID, Err: err})
					e.observe.Log().Error().Str("transcript", t.ID).Err(err).Msg("failed to store draft")
					continue
				}
				switch outcome {
				case store.OutcomeCreated:
					result.ObservationsCreated++
					e.events.Publish(EventObservationCreated, map[string]interface{}{"id": obs.ID})
				case store.OutcomeMerged:
					result.ObservationsMerged++
					e.events.Publish(EventObservationMerged, map[string]interface{}{"id": obs.ID, "count": obs.Count})
				}
			}
		}

		result.TranscriptsProcessed++
		e.events.Publish(EventTranscriptProcessed, map[string]interface{}{"transcript": t.ID, "drafts": len(drafts)})
	}

	if !opts.DryRun && e.lastRunPath != "" {
		if err := SaveLastRun(e.lastRunPath, result.StartedAt); err != nil {
			result.Errors = append(result.Errors, RunError{Kind: "lastrun", Err: err})
			e.observe.Log().Warn().Err(err).Msg("failed to save last-run marker")
		}
	}

	result.EndedAt = e.now()
	result.Duration = result.EndedAt.Sub(result.StartedAt)
	result.Status = runStatus(result)

	e.events.Publish(EventRunFinished, map[string]interface{}{
		"status":    string(result.Status),
		"processed": result.TranscriptsProcessed,
		"created":   result.ObservationsCreated,
		"merged":    result.ObservationsMerged,
	})
	e.observe.Log().Info().
		Str("status", string(result.Status)).
		Int("processed", result.TranscriptsProcessed).
		Int("failed", result.TranscriptsFailed).
		Int("created", result.ObservationsCreated).
		Int("merged", result.ObservationsMerged).
		Msg("run finished")
	return result, nil
}

// cutoff decides which sessions are new enough to process.
func (e *Engine) cutoff(opts Options, result *Result) *time.Time {
	if opts.Since != nil {
		return opts.Since
	}
	if opts.Full {
		return nil
	}
	if e.lastRunPath == "" {
		return nil
	}
	last, err := LoadLastRun(e.lastRunPath)
	if err != nil {
		// Fall back to a full pass; dedup absorbs the rework.
		result.Errors = append(result.Errors, RunError{Kind: "lastrun", Err: err})
		e.observe.Log().Warn().Err(err).Msg("failed to load last-run marker, processing everything")
		return nil
	}
	return last
}

// collect gathers transcripts from every available source and applies the
// per-run cap, newest kept.
func (e *Engine) collect(ctx context.Context, cutoff *time.Time, result *Result) []*transcript.Transcript {
	var all []*transcript.Transcript
	for _, src := range e.sources {
		if !src.IsAvailable() {
			e.events.Publish(EventSourceSkipped, map[string]interface{}{"source": src.Name()})
			e.observe.Log().Debug().Str("source", src.Name()).Msg("source unavailable, skipping")
			continue
		}
		sessions, err := src.Sessions(ctx, cutoff)
		if err != nil {
			result.Errors = append(result.Errors, RunError{Kind: "source", Source: src.Name(), Err: err})
			e.observe.Log().Error().Str("source", src.Name()).Err(err).Msg("failed to list sessions")
			continue
		}
		all = append(all, sessions...)
	}

	// Sources return newest first, so truncation keeps recent sessions.
	if capped, violation := e.policy.CapTranscripts(len(all)); violation != nil {
		e.observe.Log().Warn().
			Str("rule", violation.Rule).
			Int("kept", capped).
			Int("dropped", len(all)-capped).
			Msg(violation.Message)
		all = all[:capped]
	}
	return all
}

func runStatus(r *Result) RunStatus {
	switch {
	case r.TranscriptsFailed == 0 && len(r.Errors) == 0:
		return RunSuccess
	case r.TranscriptsProcessed == 0 && r.TranscriptsFailed > 0:
		return RunFailure
	default:
		return RunPartialFailure
	}
}
