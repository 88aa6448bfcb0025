package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var coreTargets []string

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Move observations up the memory hierarchy",
}

var promoteLongTermCmd = &cobra.Command{
	Use:   "longterm [id]",
	Short: "Promote an observation into long-term memory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		s := getStore(cfg)
		defer s.Close()

		h := getHierarchy(cfg, s)
		ltm, err := h.PromoteToLongTerm(context.Background(), args[0])
		if err != nil {
			fmt.Printf("Promotion failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Promoted to long-term memory: %s (seen %d times)\n",
			ltm.Observation.Description, ltm.Observation.Count)
	},
}

var promoteCoreCmd = &cobra.Command{
	Use:   "core [id]",
	Short: "Promote a long-term entry into core memory files",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		s := getStore(cfg)
		defer s.Close()

		h := getHierarchy(cfg, s)
		result, err := h.PromoteToCore(context.Background(), args[0], coreTargets...)
		if err != nil {
			fmt.Printf("Promotion failed: %v\n", err)
			os.Exit(1)
		}
		for _, name := range result.Written {
			fmt.Printf("Wrote core entry to %s\n", name)
		}
		for _, f := range result.Failures {
			fmt.Printf("Warning: destination %s failed: %v\n", f.Name, f.Err)
		}
	},
}

var promoteEligibleCmd = &cobra.Command{
	Use:   "eligible",
	Short: "List long-term entries ready for core promotion",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		s := getStore(cfg)
		defer s.Close()

		h := getHierarchy(cfg, s)
		ready, err := h.EligibleForCore(context.Background())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(ready) == 0 {
			fmt.Println("Nothing is ready for core promotion.")
			return
		}
		for _, o := range ready {
			fmt.Printf("%s  ×%d  %s\n", o.ID, o.Count, o.Description)
		}
	},
}

func init() {
	RootCmd.AddCommand(promoteCmd)
	promoteCmd.AddCommand(promoteLongTermCmd)
	promoteCmd.AddCommand(promoteCoreCmd)
	promoteCmd.AddCommand(promoteEligibleCmd)
	promoteCoreCmd.Flags().StringSliceVar(&coreTargets, "target", nil, "Destination names to write (default all)")
}
