package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
)

// NewBuildCmd constructs the `sahayak build` command, which chunks and
// embeds the document corpus into the on-disk vector index.
func NewBuildCmd() *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the vector index from the document directory",
		Long: `Read every .txt, .md, and .pdf document in DOCS_DIR, split it into
passages, embed each passage, and save the vector index to INDEX_DIR.

An existing index is loaded as-is; pass --rebuild to re-embed the corpus
from scratch after documents change.

PDF extraction requires a running extraction service (EXTRACTOR_URL); PDFs
are skipped with a warning when it is not configured.

Examples:
  sahayak build
  sahayak build --rebuild
  DOCS_DIR=./schemes sahayak build`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			pipeline, _, err := newPipeline(log)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			if err := pipeline.BuildIndex(ctx, rebuild); err != nil {
				return fmt.Errorf("build: %w", err)
			}

			stats := pipeline.Stats()
			log.Info("index ready",
				slog.Int("vectors", stats.TotalVectors),
				slog.Int("dimension", stats.Dimension),
				slog.Int("documents", len(stats.Sources)),
			)
			fmt.Printf("indexed %d passages from %d documents\n", stats.TotalVectors, len(stats.Sources))
			return nil
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Re-embed the corpus even if an index exists")

	return cmd
}
