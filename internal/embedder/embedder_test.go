package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestOllamaEncodeMany(t *testing.T) {
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		resp := ollamaEmbedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range resp.Embeddings {
			resp.Embeddings[i] = []float32{float32(i), 1}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	enc := NewOllamaEncoder(&OllamaConfig{
		Host:       srv.URL,
		Model:      "nomic-embed-text",
		Dimensions: 2,
		BatchSize:  2,
	})

	vecs, err := enc.EncodeMany(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("EncodeMany failed: %v", err)
	}
	if len(vecs) != 5 {
		t.Fatalf("got %d vectors, want 5", len(vecs))
	}
	// 5 texts with batch size 2 means 3 requests.
	if got := requests.Load(); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}
	if enc.Dimension() != 2 {
		t.Errorf("Dimension() = %d, want 2", enc.Dimension())
	}
}

func TestOllamaEncodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
	}))
	defer srv.Close()

	enc := NewOllamaEncoder(&OllamaConfig{Host: srv.URL, Model: "missing"})
	if _, err := enc.EncodeOne(context.Background(), "text"); err == nil {
		t.Fatal("expected error from failing backend")
	}
}

func TestOpenAIEncodeReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		// Return data out of order; the client must place by index.
		w.Write([]byte(`{"data":[
			{"index":1,"embedding":[2,2]},
			{"index":0,"embedding":[1,1]}
		]}`))
	}))
	defer srv.Close()

	enc := NewOpenAIEncoder(&OpenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
	})

	vecs, err := enc.EncodeMany(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EncodeMany failed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("vectors not reordered by index: %v", vecs)
	}
}

func TestEncodeManyEmpty(t *testing.T) {
	enc := NewOllamaEncoder(&OllamaConfig{Host: "http://unused", Model: "m"})
	vecs, err := enc.EncodeMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil for empty input, got %v", vecs)
	}
}

func TestNewFromEnvDefaults(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("EMBEDDING_DIMENSIONS", "")

	enc, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv failed: %v", err)
	}
	if _, ok := enc.(*OllamaEncoder); !ok {
		t.Errorf("default backend should be ollama, got %T", enc)
	}
	if enc.Dimension() != defaultOllamaDimensions {
		t.Errorf("default dimension = %d, want %d", enc.Dimension(), defaultOllamaDimensions)
	}
}

func TestNewFromEnvOpenAIRequiresKey(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := NewFromEnv(); err == nil {
		t.Fatal("expected error for openai backend without key")
	}
}

func TestNewFromEnvUnknownBackend(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "sentence-transformers")
	if _, err := NewFromEnv(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	if !looksLikeChatModel("llama-3.1-8b-instant") {
		t.Error("llama-3.1 should look like a chat model")
	}
	if looksLikeChatModel("nomic-embed-text") {
		t.Error("nomic-embed-text is an embedding model")
	}
}
