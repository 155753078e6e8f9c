// Package assist is the high-level question answering service. It combines
// the retrieval pipeline with the LLM client, adds lazy index
// initialization, and shapes results for the CLI and HTTP surfaces.
package assist

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gramin-sahayak/sahayak-go/internal/llm"
	"github.com/gramin-sahayak/sahayak-go/internal/logging"
	"github.com/gramin-sahayak/sahayak-go/internal/rag"
)

// buildRetryInterval is how long a failed lazy index build is memoized
// before another attempt is made. Without it every incoming request would
// re-run a doomed build against an unreachable embedding backend.
const buildRetryInterval = time.Minute

// contextPreviewLimit caps the context excerpt included in answers.
const contextPreviewLimit = 500

// Fallback answers shown when a step fails, in Hindi like the real ones.
const (
	msgNoAnswer      = "क्षमा करें, मुझे इस प्रश्न का उत्तर देने के लिए पर्याप्त जानकारी नहीं है।"
	msgSchemeUnknown = "क्षमा करें, योजना की जानकारी नहीं मिली।"
	msgTermUnknown   = "क्षमा करें, शब्द का अर्थ नहीं मिला।"
)

// Pipeline is the retrieval surface the service needs. *rag.Pipeline
// implements it; tests substitute fakes.
type Pipeline interface {
	BuildIndex(ctx context.Context, forceRebuild bool) error
	Query(ctx context.Context, question, language string, topK int) (*rag.QueryResult, error)
	ExplainScheme(ctx context.Context, schemeName string) (string, error)
	ExplainTerm(ctx context.Context, term string) (string, error)
	Stats() rag.Stats
	State() rag.State
}

// Generator is the text-generation surface the service needs. *llm.Client
// implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (string, error)
	GenerateOrFallback(ctx context.Context, prompt string, opts llm.Options) string
	Available() bool
}

// Recorder persists answered questions. May be nil when history is
// disabled.
type Recorder interface {
	Append(ctx context.Context, entry HistoryEntry) error
}

// HistoryEntry is one answered question for the query history.
type HistoryEntry struct {
	Question   string
	Answer     string
	Sources    []string
	Confidence float64
	Language   string
}

// Service answers questions over the indexed corpus.
//
// The pipeline itself is not safe for concurrent use, so every entry point
// takes the service mutex. Request volume is low (rural kiosk deployments),
// so a single lock is the right trade.
type Service struct {
	mu       sync.Mutex
	pipeline Pipeline
	gen      Generator
	history  Recorder

	// lastBuildErr memoizes a failed lazy build until retryAfter.
	lastBuildErr error
	retryAfter   time.Time
	now          func() time.Time
}

// New constructs a Service. history may be nil.
func New(pipeline Pipeline, gen Generator, history Recorder) *Service {
	return &Service{
		pipeline: pipeline,
		gen:      gen,
		history:  history,
		now:      time.Now,
	}
}

// ensureIndexed lazily builds the index on first use. A failed build is
// remembered and returned as-is until the retry interval elapses.
// Callers must hold s.mu.
func (s *Service) ensureIndexed(ctx context.Context) error {
	if s.pipeline.State() == rag.StateIndexed {
		return nil
	}
	if s.lastBuildErr != nil && s.now().Before(s.retryAfter) {
		return s.lastBuildErr
	}

	logging.FromContext(ctx).Info("assist: building index on first use")
	if err := s.pipeline.BuildIndex(ctx, false); err != nil {
		s.lastBuildErr = fmt.Errorf("assist: index build failed: %w", err)
		s.retryAfter = s.now().Add(buildRetryInterval)
		return s.lastBuildErr
	}
	s.lastBuildErr = nil
	return nil
}

// Answer is a fully shaped response to a user question.
type Answer struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	ContextUsed string   `json:"context_used"`
	Confidence  float64  `json:"confidence"`
}

// AnswerQuestion retrieves context for the question and generates an
// answer. When retrieval finds nothing, or no index could be built, the
// answer is an honest "I don't know" with zero confidence; LLM failures
// degrade to a fallback message rather than an error.
func (s *Service) AnswerQuestion(ctx context.Context, question, language string, includeSources bool) (Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndexed(ctx); err != nil {
		logging.FromContext(ctx).Warn("assist: answering without index", slog.String("error", err.Error()))
		return Answer{
			Answer:  msgNoAnswer,
			Sources: []string{},
		}, nil
	}

	result, err := s.pipeline.Query(ctx, question, language, 0)
	if err != nil {
		return Answer{}, fmt.Errorf("assist: query failed: %w", err)
	}

	if result.Context == "" {
		return Answer{
			Answer:  msgNoAnswer,
			Sources: []string{},
		}, nil
	}

	answer := s.gen.GenerateOrFallback(ctx, result.Prompt, llm.Options{MaxTokens: 400})

	var total float64
	for _, c := range result.Chunks {
		total += c.Score
	}
	confidence := round2(total / float64(len(result.Chunks)))

	if includeSources && len(result.Sources) > 0 {
		answer = fmt.Sprintf("%s\n\n📚 स्रोत: %s", answer, strings.Join(result.Sources, ", "))
	}

	out := Answer{
		Answer:      answer,
		Sources:     result.Sources,
		ContextUsed: truncateRunes(result.Context, contextPreviewLimit),
		Confidence:  confidence,
	}
	s.record(ctx, HistoryEntry{
		Question:   question,
		Answer:     out.Answer,
		Sources:    out.Sources,
		Confidence: out.Confidence,
		Language:   language,
	})
	return out, nil
}

// ExplainScheme generates a plain-Hindi explanation of a government
// scheme. Generation failures return a fallback message, not an error.
func (s *Service) ExplainScheme(ctx context.Context, schemeName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndexed(ctx); err != nil {
		logging.FromContext(ctx).Warn("assist: explaining scheme without index", slog.String("error", err.Error()))
		return msgSchemeUnknown, nil
	}
	p, err := s.pipeline.ExplainScheme(ctx, schemeName)
	if err != nil {
		logging.FromContext(ctx).Error("assist: scheme retrieval failed", slog.String("error", err.Error()))
		return msgSchemeUnknown, nil
	}
	answer, err := s.gen.Generate(ctx, p, llm.Options{MaxTokens: 600})
	if err != nil {
		logging.FromContext(ctx).Error("assist: scheme generation failed", slog.String("error", err.Error()))
		return msgSchemeUnknown, nil
	}
	return answer, nil
}

// ExplainTerm generates a plain-Hindi explanation of a banking term.
func (s *Service) ExplainTerm(ctx context.Context, term string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureIndexed(ctx); err != nil {
		logging.FromContext(ctx).Warn("assist: explaining term without index", slog.String("error", err.Error()))
		return msgTermUnknown, nil
	}
	p, err := s.pipeline.ExplainTerm(ctx, term)
	if err != nil {
		logging.FromContext(ctx).Error("assist: term retrieval failed", slog.String("error", err.Error()))
		return msgTermUnknown, nil
	}
	answer, err := s.gen.Generate(ctx, p, llm.Options{MaxTokens: 300})
	if err != nil {
		logging.FromContext(ctx).Error("assist: term generation failed", slog.String("error", err.Error()))
		return msgTermUnknown, nil
	}
	return answer, nil
}

// BuildIndex explicitly builds or rebuilds the index.
func (s *Service) BuildIndex(ctx context.Context, forceRebuild bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.pipeline.BuildIndex(ctx, forceRebuild)
	if err != nil {
		s.lastBuildErr = err
		s.retryAfter = s.now().Add(buildRetryInterval)
		return err
	}
	s.lastBuildErr = nil
	return nil
}

// Status reports service health for monitoring surfaces.
type Status struct {
	RAGStatus      string `json:"rag_status"`
	LLMAvailable   bool   `json:"llm_available"`
	TotalDocuments int    `json:"total_documents"`
	ServiceHealthy bool   `json:"service_healthy"`
}

// Status returns the current service status.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.pipeline.Stats()
	return Status{
		RAGStatus:      stats.Status,
		LLMAvailable:   s.gen.Available(),
		TotalDocuments: stats.TotalChunks,
		ServiceHealthy: stats.Status == rag.StateIndexed.String(),
	}
}

// Stats exposes the underlying pipeline statistics.
func (s *Service) Stats() rag.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.Stats()
}

// record appends to the query history, best effort.
func (s *Service) record(ctx context.Context, entry HistoryEntry) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("assist: failed to record history", slog.String("error", err.Error()))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
