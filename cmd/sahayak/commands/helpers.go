package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/gramin-sahayak/sahayak-go/internal/assist"
	"github.com/gramin-sahayak/sahayak-go/internal/embedder"
	"github.com/gramin-sahayak/sahayak-go/internal/llm"
	"github.com/gramin-sahayak/sahayak-go/internal/loader"
	"github.com/gramin-sahayak/sahayak-go/internal/rag"
	"github.com/gramin-sahayak/sahayak-go/internal/store"
)

// Default locations relative to the working directory, matching the shape
// produced by `sahayak build` out of the box.
const (
	defaultDocsDir  = "data/documents"
	defaultIndexDir = "data/index"
)

// newPipeline assembles the retrieval pipeline from environment
// configuration: document loader, text encoder, chunker, and vector index.
// The returned encoder is also used by the readiness probe in serve.
func newPipeline(log *slog.Logger) (*rag.Pipeline, rag.Encoder, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, err
	}

	enc, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	docsDir := getEnvOrDefault("DOCS_DIR", defaultDocsDir)
	docs := loader.New(loader.Config{
		Dir:          docsDir,
		ExtractorURL: os.Getenv("EXTRACTOR_URL"),
	})

	pipeline := rag.NewPipeline(rag.PipelineConfig{
		Loader:   docs,
		Chunker:  rag.NewChunker(getEnvInt("CHUNK_SIZE", 0), getEnvInt("CHUNK_OVERLAP", 0)),
		Encoder:  enc,
		IndexDir: getEnvOrDefault("INDEX_DIR", defaultIndexDir),
		DocsDir:  docsDir,
		TopK:     getEnvInt("TOP_K_RESULTS", 0),
	})

	return pipeline, enc, nil
}

// openHistory opens the query history store. SAHAYAK_HISTORY_DB overrides
// the default path (~/.sahayak/history.db); set it to "disabled" to turn
// history off. Failures degrade to no history rather than aborting.
func openHistory(log *slog.Logger) (assist.Recorder, func()) {
	noop := func() {}

	dbPath := os.Getenv("SAHAYAK_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via SAHAYAK_HISTORY_DB=disabled")
		return nil, noop
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, noop
		}
		dbPath = p
	}

	qs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, noop
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return qs, func() { _ = qs.Close() }
}

// newService wires the full question answering service: pipeline, Groq
// client, and query history. The returned close func releases the history
// store and must be deferred by the caller.
func newService(log *slog.Logger) (*assist.Service, rag.Encoder, func(), error) {
	pipeline, enc, err := newPipeline(log)
	if err != nil {
		return nil, nil, nil, err
	}

	gen := llm.NewFromEnv(log)
	history, closeHistory := openHistory(log)

	return assist.New(pipeline, gen, history), enc, closeHistory, nil
}

// getEnvOrDefault returns the env var value or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt parses an integer env var, returning fallback when unset or
// unparseable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat parses a float env var, returning fallback when unset or
// unparseable.
func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
