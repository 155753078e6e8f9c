// Package audit emits structured audit records for command invocations.
// Secret values are never logged; only their presence is recorded.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
)

// secretEnvVars are env vars whose presence (never value) is audited.
var secretEnvVars = []string{
	"GROQ_API_KEY",
	"EMBEDDING_API_KEY",
	"SAHAYAK_API_KEY",
}

// LogCommandStart records the invocation of a CLI command with its
// arguments and which credentials are configured.
func LogCommandStart(ctx context.Context, command string, args []string) {
	log := logging.FromContext(ctx)

	var present []string
	for _, key := range secretEnvVars {
		if os.Getenv(key) != "" {
			present = append(present, key)
		}
	}

	log.Info("audit: command started",
		slog.String("command", command),
		slog.String("args", strings.Join(redactArgs(args), " ")),
		slog.String("secrets_present", strings.Join(present, ",")),
	)
}

// redactArgs masks values of flags that may carry secrets.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	redactNext := false
	for i, a := range args {
		switch {
		case redactNext:
			out[i] = "[REDACTED]"
			redactNext = false
		case strings.Contains(strings.ToLower(a), "key="):
			idx := strings.Index(a, "=")
			out[i] = a[:idx+1] + "[REDACTED]"
		case strings.Contains(strings.ToLower(a), "-key") || strings.Contains(strings.ToLower(a), "-token"):
			out[i] = a
			redactNext = true
		default:
			out[i] = a
		}
	}
	return out
}
