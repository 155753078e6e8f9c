package server

import (
	"context"
	"fmt"

	"github.com/gramin-sahayak/sahayak-go/internal/rag"
)

// EncoderPinger probes the embedding backend by encoding a single short
// text. It satisfies the Pinger interface and is used by GET /api/ready.
type EncoderPinger struct {
	encoder rag.Encoder
	name    string
}

// NewEncoderPinger constructs an EncoderPinger for the given encoder and
// backend name (e.g. "ollama", "openai").
func NewEncoderPinger(encoder rag.Encoder, name string) *EncoderPinger {
	return &EncoderPinger{encoder: encoder, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EncoderPinger) Name() string { return p.name }

// Ping encodes a one-word probe text. A reachable backend answers quickly;
// the cost of embedding one token is negligible.
func (p *EncoderPinger) Ping(ctx context.Context) error {
	vec, err := p.encoder.EncodeOne(ctx, "ping")
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("encode returned an empty vector")
	}
	return nil
}

// generatorStatus is the surface the LLM pinger needs from the client.
type generatorStatus interface {
	Available() bool
	Model() string
}

// LLMPinger reports whether answer generation is configured. It does not
// issue a chat completion (that would burn tokens on every readiness
// probe); it only verifies that credentials are present.
type LLMPinger struct {
	gen generatorStatus
}

// NewLLMPinger constructs an LLMPinger for the given client.
func NewLLMPinger(gen generatorStatus) *LLMPinger {
	return &LLMPinger{gen: gen}
}

// Name returns the dependency label used in readiness responses.
func (p *LLMPinger) Name() string { return "groq" }

// Ping reports an error when no API key is configured.
func (p *LLMPinger) Ping(context.Context) error {
	if !p.gen.Available() {
		return fmt.Errorf("GROQ_API_KEY not configured (model %s)", p.gen.Model())
	}
	return nil
}
