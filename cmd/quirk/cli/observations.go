package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/quirk/internal/store"
)

var (
	obsStatus   string
	obsCategory string
	obsMinCount int
	obsTag      string
	obsSortBy   string
	obsLimit    int
)

var observationsCmd = &cobra.Command{
	Use:     "observations",
	Aliases: []string{"obs"},
	Short:   "List and inspect recorded observations",
	Run: func(cmd *cobra.Command, args []string) {
		listObservations()
	},
}

var observationsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one observation in full",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		showObservation(args[0])
	},
}

var observationsApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve a pending observation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		s := getStore(cfg)
		defer s.Close()

		if err := s.Transition(context.Background(), args[0], store.StatusApproved); err != nil {
			fmt.Printf("Approve failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Approved %s\n", args[0])
	},
}

var observationsDenyCmd = &cobra.Command{
	Use:   "deny [id]",
	Short: "Permanently reject an observation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		s := getStore(cfg)
		defer s.Close()

		h := getHierarchy(cfg, s)
		if err := h.Deny(context.Background(), args[0]); err != nil {
			fmt.Printf("Deny failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Denied %s\n", args[0])
	},
}

func init() {
	RootCmd.AddCommand(observationsCmd)
	observationsCmd.AddCommand(observationsShowCmd)
	observationsCmd.AddCommand(observationsApproveCmd)
	observationsCmd.AddCommand(observationsDenyCmd)
	observationsCmd.Flags().StringVar(&obsStatus, "status", "", "Filter by status (pending, approved, denied, promoted_to_long_term, promoted_to_core)")
	observationsCmd.Flags().StringVar(&obsCategory, "category", "", "Filter by category")
	observationsCmd.Flags().IntVar(&obsMinCount, "min-count", 0, "Only observations seen at least this often")
	observationsCmd.Flags().StringVar(&obsTag, "tag", "", "Filter by tag")
	observationsCmd.Flags().StringVar(&obsSortBy, "sort", "", "Sort by count, first_seen or last_seen")
	observationsCmd.Flags().IntVar(&obsLimit, "limit", 0, "Maximum number of rows")
}

func buildQuery() store.Query {
	q := store.Query{
		MinCount:   obsMinCount,
		SortBy:     obsSortBy,
		Descending: obsSortBy == "count",
		Limit:      obsLimit,
	}
	if obsStatus != "" {
		st := store.Status(obsStatus)
		q.Status = &st
	}
	if obsCategory != "" {
		cat := store.Category(obsCategory)
		q.Category = &cat
	}
	if obsTag != "" {
		q.Tags = []string{obsTag}
	}
	return q
}

func listObservations() {
	cfg := loadConfig()
	s := getStore(cfg)
	defer s.Close()

	items, err := s.Query(context.Background(), buildQuery())
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(items, "", "  ")
		fmt.Println(string(data))
		return
	}
	if len(items) == 0 {
		fmt.Println("No observations match.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOUNT\tSTATUS\tCATEGORY\tDESCRIPTION")
	for _, o := range items {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", o.ID, o.Count, o.Status, o.Category, o.Description)
	}
	w.Flush()
}

func showObservation(id string) {
	cfg := loadConfig()
	s := getStore(cfg)
	defer s.Close()

	o, err := s.Get(context.Background(), id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(o, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("ID:          %s\n", o.ID)
	fmt.Printf("Description: %s\n", o.Description)
	fmt.Printf("Category:    %s\n", o.Category)
	fmt.Printf("Status:      %s\n", o.Status)
	fmt.Printf("Count:       %d\n", o.Count)
	fmt.Printf("First seen:  %s\n", o.FirstSeen.Format("2006-01-02 15:04:05"))
	fmt.Printf("Last seen:   %s\n", o.LastSeen.Format("2006-01-02 15:04:05"))
	fmt.Printf("Transcripts: %s\n", strings.Join(o.TranscriptIDs, ", "))
	if len(o.Tags) > 0 {
		fmt.Printf("Tags:        %s\n", strings.Join(o.Tags, ", "))
	}
}
