package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/quirk/internal/engine"
	"github.com/felixgeelhaar/quirk/internal/ui"
)

var (
	analyzeSince  string
	analyzeFull   bool
	analyzeDryRun bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Scan transcript sources and record observations",
	Run: func(cmd *cobra.Command, args []string) {
		runAnalysis()
	},
}

func init() {
	RootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeSince, "since", "", "Only process transcripts at or after this time (RFC 3339 or YYYY-MM-DD)")
	analyzeCmd.Flags().BoolVar(&analyzeFull, "full", false, "Ignore the last-run marker and reprocess everything")
	analyzeCmd.Flags().BoolVar(&analyzeDryRun, "dry-run", false, "Collect drafts without persisting observations")
}

func runAnalysis() {
	obs := newObserver()
	defer obs.Close()

	cfg := loadConfig()
	s := getStore(cfg)
	defer s.Close()

	o, closeOracle, err := getOracle(cfg)
	if err != nil {
		obs.Log().Warn().Err(err).Msg("oracle unavailable, running analyzers only")
		o = nil
	}
	if closeOracle != nil {
		defer closeOracle()
	}

	opts := engine.Options{Full: analyzeFull, DryRun: analyzeDryRun}
	if analyzeSince != "" {
		since, err := parseSince(analyzeSince)
		if err != nil {
			fmt.Printf("Invalid --since value: %v\n", err)
			os.Exit(1)
		}
		opts.Since = &since
	}

	var u ui.UI = ui.SilentUI{}
	if !jsonOutput && verbose {
		u = ui.NewConsoleUI(os.Stdout)
	}
	events := engine.NewEventBus()
	processed := 0
	events.Subscribe(engine.EventRunStarted, func(e engine.Event) {
		u.UpdateStatus("Scanning transcript sources...")
	})
	events.Subscribe(engine.EventTranscriptProcessed, func(e engine.Event) {
		processed++
		u.UpdateProgress(processed, 0)
	})
	events.Subscribe(engine.EventSourceSkipped, func(e engine.Event) {
		u.Log(fmt.Sprintf("Skipped unavailable source %v", e.Data["source"]))
	})

	eng := engine.New(engine.Config{
		Sources:     getSources(cfg),
		Oracle:      o,
		Store:       s,
		Policy:      cfg.Retention,
		Observer:    obs,
		Events:      events,
		LastRunPath: lastRunPath(cfg),
	})

	result, err := eng.Run(context.Background(), opts)
	if err != nil {
		obs.Log().Error().Err(err).Msg("analysis run failed")
		os.Exit(1)
	}

	printResult(result)
	if result.Status == engine.RunFailure {
		os.Exit(1)
	}
}

func parseSince(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func printResult(r *engine.Result) {
	if jsonOutput {
		data, _ := json.MarshalIndent(r, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("Run %s in %s\n", r.Status, r.Duration.Round(time.Millisecond))
	fmt.Printf("  transcripts: %d processed, %d failed\n", r.TranscriptsProcessed, r.TranscriptsFailed)
	fmt.Printf("  drafts:      %d collected\n", r.DraftsCollected)
	fmt.Printf("  observations: %d created, %d merged\n", r.ObservationsCreated, r.ObservationsMerged)
	for _, e := range r.Errors {
		fmt.Printf("  error: %s\n", e.Error())
	}
}
