package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeEncoder maps known texts to fixed vectors. Unknown texts get the
// fallback vector so tests stay deterministic.
type fakeEncoder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (f *fakeEncoder) EncodeOne(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallback, nil
}

func (f *fakeEncoder) EncodeMany(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EncodeOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEncoder) Dimension() int { return len(f.fallback) }

func newTestIndex(t *testing.T) *FlatIndex {
	t.Helper()
	ix := NewFlatIndex()
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	chunks := []Chunk{
		{Text: "लोन पैसा उधार लेने की सुविधा है।", Source: "terms.txt", ID: 0},
		{Text: "Mudra Yojana gives loans up to 10 lakhs.", Source: "schemes.pdf", ID: 0},
		{Text: "ब्याज दर चार प्रतिशत है।", Source: "rates.txt", ID: 0},
	}
	if err := ix.Add(context.Background(), vectors, chunks); err != nil {
		t.Fatal(err)
	}
	return ix
}

func TestRetrieve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	enc := &fakeEncoder{
		vectors:  map[string][]float32{"लोन क्या है?": {1, 0, 0}},
		fallback: []float32{0, 0, 0},
	}
	r := NewRetriever(newTestIndex(t), enc, 0)

	results, err := r.Retrieve(ctx, "लोन क्या है?", 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Source != "terms.txt" {
		t.Errorf("best result source = %q, want terms.txt", results[0].Source)
	}
	if results[0].Score != 1.0 {
		t.Errorf("best score = %v, want 1.0", results[0].Score)
	}
}

func TestRetrieveDefaultTopK(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{fallback: []float32{1, 0, 0}}
	r := NewRetriever(newTestIndex(t), enc, 2)

	results, err := r.Retrieve(context.Background(), "anything", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("topK<=0 should use retriever default 2, got %d", len(results))
	}
}

func TestRetrieveEncoderError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("encoder offline")
	r := NewRetriever(newTestIndex(t), &fakeEncoder{err: wantErr}, 3)

	if _, err := r.Retrieve(context.Background(), "q", 3); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped encoder error, got %v", err)
	}
}

func TestRetrieveWithContext(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{
		vectors:  map[string][]float32{"q": {0, 1, 0}},
		fallback: []float32{0, 0, 0},
	}
	r := NewRetriever(newTestIndex(t), enc, 3)

	got, err := r.RetrieveWithContext(context.Background(), "q", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "संदर्भ 1 (स्रोत: schemes.pdf):\n") {
		t.Errorf("context block malformed:\n%s", got)
	}
	if !strings.Contains(got, "संदर्भ 2 (स्रोत:") {
		t.Error("expected a second numbered block")
	}
}

func TestRetrieveWithContextEmptyIndex(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{fallback: []float32{1, 0, 0}}
	r := NewRetriever(NewFlatIndex(), enc, 3)

	got, err := r.RetrieveWithContext(context.Background(), "q", 3)
	if err != nil {
		t.Fatal(err)
	}
	if got != NoContextFound {
		t.Errorf("empty index should return sentinel, got %q", got)
	}
}

func TestFormatContextNumbering(t *testing.T) {
	t.Parallel()

	got := FormatContext([]Retrieved{
		{Text: "one", Source: "a.txt"},
		{Text: "two", Source: "b.txt"},
	})
	want := "संदर्भ 1 (स्रोत: a.txt):\none\n\nसंदर्भ 2 (स्रोत: b.txt):\ntwo\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
