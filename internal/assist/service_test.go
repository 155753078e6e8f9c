package assist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gramin-sahayak/sahayak-go/internal/llm"
	"github.com/gramin-sahayak/sahayak-go/internal/prompt"
	"github.com/gramin-sahayak/sahayak-go/internal/rag"
)

type fakePipeline struct {
	state      rag.State
	buildErr   error
	buildCalls int
	result     *rag.QueryResult
	queryErr   error
}

func (f *fakePipeline) BuildIndex(context.Context, bool) error {
	f.buildCalls++
	if f.buildErr != nil {
		return f.buildErr
	}
	f.state = rag.StateIndexed
	return nil
}

func (f *fakePipeline) Query(_ context.Context, question, _ string, _ int) (*rag.QueryResult, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &rag.QueryResult{Prompt: prompt.NoContext(question)}, nil
}

func (f *fakePipeline) ExplainScheme(_ context.Context, name string) (string, error) {
	return prompt.SchemeExplanation(name, "context"), nil
}

func (f *fakePipeline) ExplainTerm(_ context.Context, term string) (string, error) {
	return prompt.TermExplanation(term, "context"), nil
}

func (f *fakePipeline) Stats() rag.Stats {
	if f.state != rag.StateIndexed {
		return rag.Stats{Status: "not_indexed"}
	}
	return rag.Stats{Status: "indexed", TotalChunks: 7}
}

func (f *fakePipeline) State() rag.State { return f.state }

type fakeGenerator struct {
	answer    string
	err       error
	available bool
	prompts   []string
}

func (f *fakeGenerator) Generate(_ context.Context, p string, _ llm.Options) (string, error) {
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) GenerateOrFallback(ctx context.Context, p string, opts llm.Options) string {
	out, err := f.Generate(ctx, p, opts)
	if err != nil {
		return "क्षमा करें, कुछ गलती हुई।"
	}
	return out
}

func (f *fakeGenerator) Available() bool { return f.available }

type fakeRecorder struct {
	entries []HistoryEntry
	err     error
}

func (f *fakeRecorder) Append(_ context.Context, e HistoryEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func indexedResult() *rag.QueryResult {
	return &rag.QueryResult{
		Context: "संदर्भ 1 (स्रोत: schemes.pdf):\nमुद्रा योजना लोन देती है।\n",
		Sources: []string{"schemes.pdf"},
		Prompt:  "assembled prompt",
		Chunks: []rag.Retrieved{
			{Text: "a", Source: "schemes.pdf", Score: 0.8},
			{Text: "b", Source: "schemes.pdf", Score: 0.6},
		},
	}
}

func TestAnswerQuestion(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{state: rag.StateIndexed, result: indexedResult()}
	g := &fakeGenerator{answer: "मुद्रा योजना एक सरकारी लोन योजना है।", available: true}
	rec := &fakeRecorder{}
	s := New(p, g, rec)

	got, err := s.AnswerQuestion(context.Background(), "मुद्रा योजना क्या है?", "hindi", true)
	if err != nil {
		t.Fatalf("AnswerQuestion failed: %v", err)
	}
	if !strings.Contains(got.Answer, "मुद्रा योजना एक सरकारी लोन योजना है।") {
		t.Errorf("answer = %q", got.Answer)
	}
	if !strings.Contains(got.Answer, "📚 स्रोत: schemes.pdf") {
		t.Errorf("answer missing source footer: %q", got.Answer)
	}
	// Mean of 0.8 and 0.6 rounded to two decimals.
	if got.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", got.Confidence)
	}
	if len(got.Sources) != 1 || got.Sources[0] != "schemes.pdf" {
		t.Errorf("sources = %v", got.Sources)
	}
	if len(rec.entries) != 1 || rec.entries[0].Question != "मुद्रा योजना क्या है?" {
		t.Errorf("history entries = %+v", rec.entries)
	}
	if g.prompts[0] != "assembled prompt" {
		t.Errorf("generator got prompt %q", g.prompts[0])
	}
}

func TestAnswerQuestionWithoutSources(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{state: rag.StateIndexed, result: indexedResult()}
	g := &fakeGenerator{answer: "उत्तर"}
	s := New(p, g, nil)

	got, err := s.AnswerQuestion(context.Background(), "q", "hindi", false)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got.Answer, "📚") {
		t.Errorf("source footer should be omitted: %q", got.Answer)
	}
}

func TestAnswerQuestionNoContext(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{state: rag.StateIndexed} // Query returns empty context
	g := &fakeGenerator{answer: "should not be used"}
	s := New(p, g, nil)

	got, err := s.AnswerQuestion(context.Background(), "अनजान सवाल", "hindi", true)
	if err != nil {
		t.Fatal(err)
	}
	if got.Answer != msgNoAnswer {
		t.Errorf("answer = %q, want no-answer fallback", got.Answer)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
	if len(g.prompts) != 0 {
		t.Error("generator must not be called without context")
	}
}

func TestAnswerQuestionContextPreviewTruncated(t *testing.T) {
	t.Parallel()

	res := indexedResult()
	res.Context = strings.Repeat("क", 900)
	p := &fakePipeline{state: rag.StateIndexed, result: res}
	s := New(p, &fakeGenerator{answer: "a"}, nil)

	got, err := s.AnswerQuestion(context.Background(), "q", "hindi", false)
	if err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(got.ContextUsed)); n != contextPreviewLimit {
		t.Errorf("context preview = %d runes, want %d", n, contextPreviewLimit)
	}
}

func TestLazyBuildOnFirstQuestion(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{result: indexedResult()}
	s := New(p, &fakeGenerator{answer: "a"}, nil)

	if _, err := s.AnswerQuestion(context.Background(), "q", "hindi", false); err != nil {
		t.Fatal(err)
	}
	if p.buildCalls != 1 {
		t.Errorf("build calls = %d, want 1", p.buildCalls)
	}

	// Second question must not rebuild.
	if _, err := s.AnswerQuestion(context.Background(), "q2", "hindi", false); err != nil {
		t.Fatal(err)
	}
	if p.buildCalls != 1 {
		t.Errorf("build calls = %d after second question, want 1", p.buildCalls)
	}
}

func TestAnswerAfterFailedBuild(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{buildErr: errors.New("embedding backend down")}
	g := &fakeGenerator{answer: "should not be used"}
	s := New(p, g, nil)

	got, err := s.AnswerQuestion(context.Background(), "मुद्रा योजना क्या है?", "hindi", true)
	if err != nil {
		t.Fatalf("a failed build must not surface as an error: %v", err)
	}
	if got.Answer != msgNoAnswer {
		t.Errorf("answer = %q, want no-answer fallback", got.Answer)
	}
	if len(got.Sources) != 0 || got.Confidence != 0 {
		t.Errorf("expected empty sources and zero confidence, got %+v", got)
	}
	if len(g.prompts) != 0 {
		t.Error("generator must not be called when no index could be built")
	}

	scheme, err := s.ExplainScheme(context.Background(), "मुद्रा योजना")
	if err != nil || scheme != msgSchemeUnknown {
		t.Errorf("ExplainScheme = %q, %v; want scheme fallback, nil", scheme, err)
	}
	term, err := s.ExplainTerm(context.Background(), "ब्याज")
	if err != nil || term != msgTermUnknown {
		t.Errorf("ExplainTerm = %q, %v; want term fallback, nil", term, err)
	}
}

func TestFailedBuildIsMemoized(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{buildErr: errors.New("embedding backend down")}
	s := New(p, &fakeGenerator{answer: "उत्तर"}, nil)

	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		got, err := s.AnswerQuestion(context.Background(), "q", "hindi", false)
		if err != nil {
			t.Fatal(err)
		}
		if got.Answer != msgNoAnswer {
			t.Fatalf("answer = %q, want no-answer fallback", got.Answer)
		}
	}
	if p.buildCalls != 1 {
		t.Fatalf("build calls = %d, want 1 (failures memoized)", p.buildCalls)
	}

	// After the retry interval a new attempt is made.
	clock = clock.Add(buildRetryInterval + time.Second)
	p.buildErr = nil
	p.result = indexedResult()
	got, err := s.AnswerQuestion(context.Background(), "q", "hindi", false)
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if got.Answer == msgNoAnswer {
		t.Error("retry should produce a real answer")
	}
	if p.buildCalls != 2 {
		t.Errorf("build calls = %d, want 2", p.buildCalls)
	}
}

func TestExplainSchemeFallbackOnGenerationError(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{state: rag.StateIndexed}
	g := &fakeGenerator{err: errors.New("rate limited")}
	s := New(p, g, nil)

	got, err := s.ExplainScheme(context.Background(), "मुद्रा योजना")
	if err != nil {
		t.Fatalf("generation failure should not be an error: %v", err)
	}
	if got != msgSchemeUnknown {
		t.Errorf("got %q, want scheme fallback", got)
	}
}

func TestExplainTerm(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{state: rag.StateIndexed}
	g := &fakeGenerator{answer: "ब्याज वह पैसा है जो बैंक लेता है।"}
	s := New(p, g, nil)

	got, err := s.ExplainTerm(context.Background(), "ब्याज")
	if err != nil {
		t.Fatal(err)
	}
	if got != "ब्याज वह पैसा है जो बैंक लेता है।" {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(g.prompts[0], `"ब्याज"`) {
		t.Errorf("term prompt = %q", g.prompts[0])
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{state: rag.StateIndexed}
	s := New(p, &fakeGenerator{available: true}, nil)

	got := s.Status()
	if got.RAGStatus != "indexed" || !got.ServiceHealthy {
		t.Errorf("status = %+v", got)
	}
	if got.TotalDocuments != 7 {
		t.Errorf("total documents = %d, want 7", got.TotalDocuments)
	}
	if !got.LLMAvailable {
		t.Error("llm should report available")
	}

	unhealthy := New(&fakePipeline{}, &fakeGenerator{}, nil)
	if st := unhealthy.Status(); st.ServiceHealthy {
		t.Error("not indexed should be unhealthy")
	}
}

func TestHistoryFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{state: rag.StateIndexed, result: indexedResult()}
	rec := &fakeRecorder{err: errors.New("db locked")}
	s := New(p, &fakeGenerator{answer: "a"}, rec)

	if _, err := s.AnswerQuestion(context.Background(), "q", "hindi", false); err != nil {
		t.Fatalf("history failure must not fail the answer: %v", err)
	}
}
