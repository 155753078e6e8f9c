package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
)

// NewExplainCmd constructs the `sahayak explain` command group with the
// `scheme` and `term` subcommands.
func NewExplainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain a government scheme or a banking term in simple Hindi",
	}

	cmd.AddCommand(newExplainSchemeCmd(), newExplainTermCmd())

	return cmd
}

// newExplainSchemeCmd constructs `sahayak explain scheme`, which produces a
// structured plain-Hindi walkthrough of a government scheme.
func newExplainSchemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheme [name]",
		Short: "Explain a government scheme: what it is, eligibility, how to apply",
		Long: `Explain a government scheme in simple Hindi, covering what it is, who is
eligible, the benefits, and how to apply.

Examples:
  sahayak explain scheme "प्रधानमंत्री मुद्रा योजना"
  sahayak explain scheme "किसान क्रेडिट कार्ड"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			svc, _, closeHistory, err := newService(log)
			if err != nil {
				return fmt.Errorf("explain scheme: %w", err)
			}
			defer closeHistory()

			explanation, err := svc.ExplainScheme(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("explain scheme: %w", err)
			}

			fmt.Println(explanation)
			return nil
		},
	}
}

// newExplainTermCmd constructs `sahayak explain term`, which defines a
// banking or financial term with a relatable example.
func newExplainTermCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "term [term]",
		Short: "Explain a banking or financial term with a simple example",
		Long: `Explain a banking or financial term in very simple Hindi with an everyday
example a villager can relate to.

Examples:
  sahayak explain term "ब्याज दर"
  sahayak explain term "EMI"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			svc, _, closeHistory, err := newService(log)
			if err != nil {
				return fmt.Errorf("explain term: %w", err)
			}
			defer closeHistory()

			explanation, err := svc.ExplainTerm(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("explain term: %w", err)
			}

			fmt.Println(explanation)
			return nil
		},
	}
}
