package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
)

// NewAskCmd constructs the `sahayak ask` command, which answers a single
// question against the indexed scheme documents and prints the answer.
func NewAskCmd() *cobra.Command {
	var language string
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a banking or scheme question in Hindi or English",
		Long: `Ask a question about government schemes, loans, or banking services.

The answer is grounded in the indexed documents. If no index exists yet, one
is built automatically from DOCS_DIR on first use (run 'sahayak build' ahead
of time to avoid the wait).

Examples:
  sahayak ask "मुद्रा योजना क्या है?"
  sahayak ask --language english "how do I open a Jan Dhan account?"
  sahayak ask --sources=false "केसीसी लोन कैसे मिलेगा?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			svc, _, closeHistory, err := newService(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeHistory()

			question := strings.Join(args, " ")

			answer, err := svc.AnswerQuestion(ctx, question, language, showSources)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(answer.Answer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "hindi", "Answer language: hindi or english")
	cmd.Flags().BoolVar(&showSources, "sources", true, "Append the source documents to the answer")

	return cmd
}
