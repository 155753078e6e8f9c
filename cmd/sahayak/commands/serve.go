package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gramin-sahayak/sahayak-go/internal/assist"
	"github.com/gramin-sahayak/sahayak-go/internal/llm"
	"github.com/gramin-sahayak/sahayak-go/internal/logging"
	"github.com/gramin-sahayak/sahayak-go/internal/server"
)

// NewServeCmd constructs the `sahayak serve` command, which starts the HTTP
// API for kiosk and integration use.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sahayak HTTP API server",
		Long: `Start the HTTP server exposing the question answering API.

Endpoints: POST /api/ask, /api/explain-scheme, /api/explain-term,
GET /api/status, /api/health, /api/ready, and Prometheus /metrics.

Set SAHAYAK_API_KEY to require Bearer authentication on the /api/* routes;
when unset the API is open (development mode). The vector index is built
lazily on the first question if none exists on disk.

Examples:
  sahayak serve
  sahayak serve --port 9090
  SAHAYAK_API_KEY=secret sahayak serve --host 0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			pipeline, enc, err := newPipeline(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			gen := llm.NewFromEnv(log)
			log.Info("llm client ready",
				slog.Bool("available", gen.Available()),
				slog.String("model", gen.Model()),
			)

			history, closeHistory := openHistory(log)
			defer closeHistory()

			svc := assist.New(pipeline, gen, history)

			encoderName := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")
			pingers := []server.Pinger{
				server.NewEncoderPinger(enc, encoderName),
				server.NewLLMPinger(gen),
			}

			srv, err := server.New(svc, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				RateLimit: getEnvFloat("SAHAYAK_RATE_LIMIT", 0),
				RateBurst: getEnvInt("SAHAYAK_RATE_BURST", 0),
				APIKey:    os.Getenv("SAHAYAK_API_KEY"),
			}, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
