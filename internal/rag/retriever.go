package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
)

// DefaultTopK is the number of passages retrieved per query when the
// caller does not say otherwise.
const DefaultTopK = 3

// NoContextFound is returned by RetrieveWithContext when the search
// yields nothing, so downstream prompts state the absence explicitly.
const NoContextFound = "कोई प्रासंगिक जानकारी नहीं मिली। (No relevant information found.)"

// Retriever combines an encoder and an index into a semantic search
// interface over the corpus.
type Retriever struct {
	index   *FlatIndex
	encoder Encoder
	topK    int
}

// NewRetriever returns a Retriever with the given default result count.
// Non-positive topK falls back to DefaultTopK.
func NewRetriever(index *FlatIndex, encoder Encoder, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{index: index, encoder: encoder, topK: topK}
}

// Retrieve returns the passages most relevant to the query, best first.
// topK <= 0 uses the retriever default.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Retrieved, error) {
	if topK <= 0 {
		topK = r.topK
	}

	log := logging.FromContext(ctx)
	log.Info("retriever: searching", slog.String("query", truncate(query, 50)))

	queryVec, err := r.encoder.EncodeOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: failed to encode query: %w", err)
	}

	results, err := r.index.Search(ctx, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("retriever: search failed: %w", err)
	}

	log.Info("retriever: results", slog.Int("count", len(results)))
	return results, nil
}

// RetrieveWithContext retrieves passages and formats them as a numbered
// context block for prompt assembly. When nothing is found it returns
// NoContextFound rather than an empty string.
func (r *Retriever) RetrieveWithContext(ctx context.Context, query string, topK int) (string, error) {
	results, err := r.Retrieve(ctx, query, topK)
	if err != nil {
		return "", err
	}
	return FormatContext(results), nil
}

// FormatContext renders retrieved passages as numbered, source-attributed
// blocks separated by blank lines.
func FormatContext(results []Retrieved) string {
	if len(results) == 0 {
		return NoContextFound
	}

	parts := make([]string, 0, len(results))
	for i, res := range results {
		parts = append(parts, fmt.Sprintf("संदर्भ %d (स्रोत: %s):\n%s\n", i+1, res.Source, res.Text))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "..."
}
