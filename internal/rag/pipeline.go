package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
	"github.com/gramin-sahayak/sahayak-go/internal/prompt"
)

// State is the pipeline lifecycle state.
type State int

const (
	// StateNotIndexed means no index exists yet; queries fail until a
	// build succeeds.
	StateNotIndexed State = iota
	// StateIndexed means the index is in memory and queryable.
	StateIndexed
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == StateIndexed {
		return "indexed"
	}
	return "not_indexed"
}

// DocumentLoader supplies the documents that get indexed.
type DocumentLoader interface {
	// LoadAll returns every readable document in the corpus. Unreadable
	// files are skipped, not fatal.
	LoadAll(ctx context.Context) ([]Document, error)
}

// Pipeline orchestrates the full retrieval workflow: loading, chunking,
// encoding, indexing, and query-time context assembly.
//
// Pipeline methods are not safe for concurrent use; the serving layer
// serializes access.
type Pipeline struct {
	loader    DocumentLoader
	chunker   *Chunker
	encoder   Encoder
	index     *FlatIndex
	retriever *Retriever

	indexDir string
	docsDir  string
	topK     int
	state    State
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// Loader supplies corpus documents.
	Loader DocumentLoader
	// Chunker splits documents; nil gets the defaults.
	Chunker *Chunker
	// Encoder embeds text.
	Encoder Encoder
	// IndexDir is the index persistence directory.
	IndexDir string
	// DocsDir is recorded for stats reporting.
	DocsDir string
	// TopK is the default retrieval depth; non-positive uses DefaultTopK.
	TopK int
}

// NewPipeline assembles a pipeline from its components. The index starts
// empty; call BuildIndex before querying.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	chunker := cfg.Chunker
	if chunker == nil {
		chunker = NewChunker(0, 0)
	}
	index := NewFlatIndex()
	return &Pipeline{
		loader:    cfg.Loader,
		chunker:   chunker,
		encoder:   cfg.Encoder,
		index:     index,
		retriever: NewRetriever(index, cfg.Encoder, cfg.TopK),
		indexDir:  cfg.IndexDir,
		docsDir:   cfg.DocsDir,
		topK:      cfg.TopK,
	}
}

// BuildIndex builds or loads the vector index. Unless forceRebuild is set,
// an existing on-disk index is loaded instead of re-embedding the corpus.
// A fresh build streams one document at a time so memory stays bounded on
// large corpora, then saves once at the end. A save failure is logged but
// does not fail the build; the in-memory index is still queryable.
func (p *Pipeline) BuildIndex(ctx context.Context, forceRebuild bool) error {
	log := logging.FromContext(ctx)

	if !forceRebuild && p.index.Load(ctx, p.indexDir) {
		log.Info("pipeline: loaded existing index", slog.Int("vectors", p.index.Size()))
		p.state = StateIndexed
		return nil
	}

	log.Info("pipeline: building new index")

	docs, err := p.loader.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: failed to load documents: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("pipeline: %w", ErrNoDocuments)
	}

	fresh := NewFlatIndex()
	totalChunks := 0

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Info("pipeline: processing document",
			slog.Int("n", i+1),
			slog.Int("of", len(docs)),
			slog.String("source", doc.Filename),
		)

		chunks := p.chunker.ChunkDocument(ctx, doc)
		if len(chunks) == 0 {
			continue
		}

		texts := make([]string, len(chunks))
		for j, c := range chunks {
			texts[j] = c.Text
		}

		vectors, err := p.encoder.EncodeMany(ctx, texts)
		if err != nil {
			log.Warn("pipeline: skipping document, embedding failed",
				slog.String("source", doc.Filename),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := fresh.Add(ctx, vectors, chunks); err != nil {
			return fmt.Errorf("pipeline: failed to index %s: %w", doc.Filename, err)
		}
		totalChunks += len(chunks)
	}

	if totalChunks == 0 {
		return fmt.Errorf("pipeline: %w", ErrNoDocuments)
	}

	if err := fresh.Save(ctx, p.indexDir); err != nil {
		log.Error("pipeline: failed to save index, continuing with in-memory index",
			slog.String("error", err.Error()),
		)
	}

	p.index = fresh
	p.retriever = NewRetriever(fresh, p.encoder, p.topK)
	p.state = StateIndexed

	log.Info("pipeline: index built",
		slog.Int("total_chunks", totalChunks),
		slog.Int("documents", len(docs)),
	)
	return nil
}

// LoadIndex attempts to load an existing on-disk index without embedding
// anything. Returns true when an index was loaded.
func (p *Pipeline) LoadIndex(ctx context.Context) bool {
	if !p.index.Load(ctx, p.indexDir) {
		return false
	}
	p.state = StateIndexed
	return true
}

// QueryResult is the output of a pipeline query: the assembled context,
// its sources, the ready-to-send LLM prompt, and the raw retrieved chunks.
type QueryResult struct {
	Context string
	Sources []string
	Prompt  string
	Chunks  []Retrieved
}

// Query retrieves context for a question and assembles the final prompt.
// When retrieval finds nothing, or the index has not been built, the result
// carries the no-context fallback prompt with empty context and sources;
// neither case is an error. Query errors only on encoder failure.
func (p *Pipeline) Query(ctx context.Context, question, language string, topK int) (*QueryResult, error) {
	if p.state != StateIndexed {
		logging.FromContext(ctx).Warn("pipeline: query without an index, returning no-context result")
		return &QueryResult{
			Prompt: prompt.NoContext(question),
		}, nil
	}

	results, err := p.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &QueryResult{
			Prompt: prompt.NoContext(question),
		}, nil
	}

	contextText := FormatContext(results)

	seen := make(map[string]bool)
	var sources []string
	for _, r := range results {
		if !seen[r.Source] {
			seen[r.Source] = true
			sources = append(sources, r.Source)
		}
	}
	sort.Strings(sources)

	return &QueryResult{
		Context: contextText,
		Sources: sources,
		Prompt:  prompt.RAG(question, contextText, language),
		Chunks:  results,
	}, nil
}

// ExplainScheme retrieves context about a government scheme and returns
// the explanation prompt.
func (p *Pipeline) ExplainScheme(ctx context.Context, schemeName string) (string, error) {
	contextText, err := p.explainContext(ctx, schemeName, 5)
	if err != nil {
		return "", err
	}
	return prompt.SchemeExplanation(schemeName, contextText), nil
}

// ExplainTerm retrieves context about a banking term and returns the
// explanation prompt.
func (p *Pipeline) ExplainTerm(ctx context.Context, term string) (string, error) {
	contextText, err := p.explainContext(ctx, term, 3)
	if err != nil {
		return "", err
	}
	return prompt.TermExplanation(term, contextText), nil
}

func (p *Pipeline) explainContext(ctx context.Context, query string, topK int) (string, error) {
	if p.state != StateIndexed {
		logging.FromContext(ctx).Warn("pipeline: explain without an index, returning empty context")
		return "", nil
	}
	results, err := p.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return "", err
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n\n"), nil
}

// Stats reports pipeline state and index size.
type Stats struct {
	Status       string   `json:"status"`
	TotalVectors int      `json:"total_vectors"`
	Dimension    int      `json:"dimension"`
	TotalChunks  int      `json:"total_chunks"`
	DocsDir      string   `json:"docs_dir,omitempty"`
	Sources      []string `json:"sources,omitempty"`
}

// Stats returns current pipeline statistics.
func (p *Pipeline) Stats() Stats {
	if p.state != StateIndexed {
		return Stats{Status: StateNotIndexed.String()}
	}
	return Stats{
		Status:       StateIndexed.String(),
		TotalVectors: p.index.Size(),
		Dimension:    p.index.Dimension(),
		TotalChunks:  p.index.Size(),
		DocsDir:      p.docsDir,
		Sources:      p.index.Sources(),
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return p.state }
