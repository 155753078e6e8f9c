// Package llm wraps the Groq chat completion API for answer generation.
// Groq exposes an OpenAI-compatible surface, so the client is built on the
// go-openai SDK pointed at the Groq endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
)

// Defaults for Groq generation. llama-3.1-8b-instant is fast and handles
// mixed Hindi/English well within the free tier.
const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.1-8b-instant"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.3

	// defaultTopP keeps nucleus sampling slightly constrained so answers
	// stay on the retrieved context.
	defaultTopP = 0.9
)

// User-facing fallback messages, kept in Hindi like the generated answers.
const (
	// MsgUnavailable is returned when no API key is configured.
	MsgUnavailable = "⚠️ LLM सेवा उपलब्ध नहीं है। कृपया API कुंजी जांचें।"
	// msgGenerationFailed prefixes the error shown when a request fails.
	msgGenerationFailed = "क्षमा करें, कुछ गलती हुई। कृपया फिर से प्रयास करें।"
	// MsgRetriesExhausted is returned when every retry attempt failed.
	MsgRetriesExhausted = "क्षमा करें, सेवा अभी उपलब्ध नहीं है। बाद में प्रयास करें।"
)

// ErrNoAPIKey reports a Generate call on a client constructed without
// credentials.
var ErrNoAPIKey = errors.New("llm: no API key configured")

// Client generates text through the Groq chat completion API. A client
// without an API key is still constructible; Generate then fails with
// ErrNoAPIKey and Available reports false, so the rest of the system can
// run retrieval-only.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// Config holds the settings for constructing a Client.
type Config struct {
	// APIKey is the Groq API key. Empty disables generation.
	APIKey string
	// BaseURL overrides the Groq endpoint (e.g. for tests).
	BaseURL string
	// Model is the chat model name.
	Model string
	// MaxTokens caps the generated answer length (0 = DefaultMaxTokens).
	MaxTokens int
	// Temperature controls randomness (0 = DefaultTemperature).
	Temperature float32
}

// New constructs a Client from the given config.
func New(cfg Config) *Client {
	c := &Client{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.temperature <= 0 {
		c.temperature = DefaultTemperature
	}

	if cfg.APIKey == "" {
		return c
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	if apiCfg.BaseURL == "" {
		apiCfg.BaseURL = DefaultBaseURL
	}
	c.api = openai.NewClientWithConfig(apiCfg)
	return c
}

// NewFromEnv constructs a Client from GROQ_API_KEY, GROQ_BASE_URL, and
// GROQ_MODEL. A missing key logs a warning rather than failing, so
// retrieval-only workflows keep working.
func NewFromEnv(log *slog.Logger) *Client {
	key := os.Getenv("GROQ_API_KEY")
	if key == "" {
		log.Warn("llm: GROQ_API_KEY not set, answer generation disabled")
	}
	return New(Config{
		APIKey:  key,
		BaseURL: os.Getenv("GROQ_BASE_URL"),
		Model:   os.Getenv("GROQ_MODEL"),
	})
}

// Available reports whether the client can generate text.
func (c *Client) Available() bool { return c.api != nil }

// Model returns the configured chat model name.
func (c *Client) Model() string { return c.model }

// Options tunes a single Generate call. Zero values use client defaults.
type Options struct {
	// MaxTokens caps this response's length.
	MaxTokens int
	// SystemPrompt is an optional system instruction.
	SystemPrompt string
}

// Generate produces a completion for the prompt. The returned text is
// trimmed of surrounding whitespace.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if c.api == nil {
		return "", ErrNoAPIKey
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	var messages []openai.ChatCompletionMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
		TopP:        defaultTopP,
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response from %s", c.model)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	logging.FromContext(ctx).Info("llm: response generated",
		slog.Int("chars", len([]rune(answer))),
		slog.String("model", c.model),
	)
	return answer, nil
}

// GenerateOrFallback wraps Generate with the user-facing Hindi fallback
// messages: a missing key or a failed request yields an apologetic answer
// instead of an error, matching what rural users should see.
func (c *Client) GenerateOrFallback(ctx context.Context, prompt string, opts Options) string {
	answer, err := c.Generate(ctx, prompt, opts)
	if err == nil {
		return answer
	}
	if errors.Is(err, ErrNoAPIKey) {
		return MsgUnavailable
	}
	logging.FromContext(ctx).Error("llm: generation failed", slog.String("error", err.Error()))
	return fmt.Sprintf("%s Error: %v", msgGenerationFailed, err)
}
