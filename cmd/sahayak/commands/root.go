// Package commands defines all Cobra CLI commands for the sahayak binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gramin-sahayak/sahayak-go/internal/audit"
	"github.com/gramin-sahayak/sahayak-go/internal/config"
	"github.com/gramin-sahayak/sahayak-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sahayak",
		Short: "Gramin Sahayak — rural banking assistant in plain Hindi",
		Long: `Gramin Sahayak answers questions about government schemes, loans, and
banking services for rural users, in simple Hindi.

It indexes local scheme documents (.txt, .md, .pdf) into a vector index and
retrieves the most relevant passages as grounding for every answer. Answer
generation uses the Groq API (GROQ_API_KEY); without a key the assistant
still retrieves and reports sources but cannot compose answers.

Configuration comes from environment variables or a YAML config file
(~/.sahayak/config.yaml). See 'sahayak --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env if present; absence is fine.
			_ = godotenv.Load()

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)
			cmd.SetContext(ctx)

			// Load YAML config (env vars always override YAML values).
			if _, err := config.Load(configPath, log); err != nil {
				return err
			}

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(ctx, cmd.Name(), args)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.sahayak/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewExplainCmd(),
		NewBuildCmd(),
		NewServeCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
