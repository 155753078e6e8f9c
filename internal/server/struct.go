package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gramin-sahayak/sahayak-go/internal/assist"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Generation against the LLM can take a while, so this defaults high.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// answerer is the interface the handlers call into. *assist.Service
// satisfies it; tests inject a fake.
type answerer interface {
	AnswerQuestion(ctx context.Context, question, language string, includeSources bool) (assist.Answer, error)
	ExplainScheme(ctx context.Context, schemeName string) (string, error)
	ExplainTerm(ctx context.Context, term string) (string, error)
	Status() assist.Status
}

// Server is the HTTP server exposing the question answering service.
type Server struct {
	// svc is the question answering service behind the API.
	svc answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's question in Hindi or English.
	Question string `json:"question"`
	// Language selects the answer language: "hindi" (default) or "english".
	Language string `json:"language,omitempty"`
	// IncludeSources appends a source footer to the answer. Defaults to true.
	IncludeSources *bool `json:"include_sources,omitempty"`
}

// explainSchemeRequest is the JSON body for POST /api/explain-scheme.
type explainSchemeRequest struct {
	// SchemeName is the government scheme to explain.
	SchemeName string `json:"scheme_name"`
}

// explainTermRequest is the JSON body for POST /api/explain-term.
type explainTermRequest struct {
	// Term is the banking or financial term to explain.
	Term string `json:"term"`
}

// explanationResponse is the JSON response for both explain endpoints.
type explanationResponse struct {
	// Explanation is the generated plain-Hindi explanation.
	Explanation string `json:"explanation"`
}
