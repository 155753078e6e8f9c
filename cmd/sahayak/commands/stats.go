package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
	"github.com/gramin-sahayak/sahayak-go/internal/store"
)

// NewStatsCmd constructs the `sahayak stats` command, which reports index
// statistics and the most recent answered questions.
func NewStatsCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics and recent query history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			pipeline, _, err := newPipeline(log)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			pipeline.LoadIndex(ctx)

			s := pipeline.Stats()
			fmt.Printf("status:    %s\n", s.Status)
			if s.Status == "indexed" {
				fmt.Printf("vectors:   %d\n", s.TotalVectors)
				fmt.Printf("dimension: %d\n", s.Dimension)
				fmt.Printf("docs dir:  %s\n", s.DocsDir)
				fmt.Printf("sources:   %s\n", strings.Join(s.Sources, ", "))
			}

			printHistory(cmd, recent)
			return nil
		},
	}

	cmd.Flags().IntVarP(&recent, "recent", "n", 5, "Number of recent queries to show (0 to skip)")

	return cmd
}

// printHistory prints the last n answered questions from the history store.
// History being unavailable is not an error for stats.
func printHistory(cmd *cobra.Command, n int) {
	if n <= 0 {
		return
	}

	dbPath := os.Getenv("SAHAYAK_HISTORY_DB")
	if dbPath == "disabled" {
		return
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return
		}
		dbPath = p
	}
	if _, err := os.Stat(dbPath); err != nil {
		return
	}

	qs, err := store.Open(dbPath)
	if err != nil {
		return
	}
	defer qs.Close()

	records, err := qs.Recent(cmd.Context(), n)
	if err != nil || len(records) == 0 {
		return
	}

	fmt.Printf("\nrecent queries:\n")
	for _, r := range records {
		fmt.Printf("  [%s] %s (confidence %.2f)\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Question, r.Confidence)
	}
}
