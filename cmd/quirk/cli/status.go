package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/quirk/internal/engine"
	"github.com/felixgeelhaar/quirk/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store counts and the last analysis run",
	Run: func(cmd *cobra.Command, args []string) {
		showStatus()
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func showStatus() {
	cfg := loadConfig()
	s := getStore(cfg)
	defer s.Close()

	h := getHierarchy(cfg, s)
	counts, err := h.LevelCounts(context.Background())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	lastRun, err := engine.LoadLastRun(lastRunPath(cfg))
	if err != nil {
		fmt.Printf("Warning: cannot read last-run marker: %v\n", err)
	}

	if jsonOutput {
		out := map[string]any{"counts": counts}
		if lastRun != nil {
			out["last_run"] = lastRun.Format(time.RFC3339)
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println("Observations by status:")
	for _, st := range []store.Status{store.StatusPending, store.StatusApproved, store.StatusLongTerm, store.StatusCore, store.StatusDenied} {
		fmt.Printf("  %-22s %d\n", st, counts[st])
	}
	if lastRun == nil {
		fmt.Println("Last run: never")
	} else {
		fmt.Printf("Last run: %s\n", lastRun.Local().Format("2006-01-02 15:04:05"))
	}
}
