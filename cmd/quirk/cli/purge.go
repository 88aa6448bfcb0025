package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove observations past the retention window",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		s := getStore(cfg)
		defer s.Close()

		removed, err := s.Purge(context.Background(), time.Now())
		if err != nil {
			fmt.Printf("Purge failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed %d expired observations\n", removed)
	},
}

func init() {
	RootCmd.AddCommand(purgeCmd)
}
