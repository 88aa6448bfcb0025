package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/ui/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Interactively approve or deny pending observations",
	Run: func(cmd *cobra.Command, args []string) {
		runReview()
	},
}

func init() {
	RootCmd.AddCommand(reviewCmd)
}

func runReview() {
	cfg := loadConfig()
	s := getStore(cfg)
	defer s.Close()

	ctx := context.Background()
	pending, err := s.List(ctx, store.StatusPending)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	h := getHierarchy(cfg, s)
	decide := func(id string, approve bool) error {
		if approve {
			return s.Transition(ctx, id, store.StatusApproved)
		}
		return h.Deny(ctx, id)
	}

	if err := tui.Run(pending, decide); err != nil {
		fmt.Printf("Review failed: %v\n", err)
		os.Exit(1)
	}
}
