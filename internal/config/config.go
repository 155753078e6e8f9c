// Package config provides YAML-based configuration for sahayak.
// Configuration is loaded with a layered precedence: defaults → YAML file →
// env vars. Environment variables always win, so existing workflows keep
// working when a config file is introduced later.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. SAHAYAK_CONFIG environment variable
//  3. ~/.sahayak/config.yaml
//  4. ./sahayak.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming.
type Config struct {
	// Docs configures the document source directory and PDF extraction.
	Docs DocsConfig `yaml:"docs"`

	// Chunker configures how documents are split into passages.
	Chunker ChunkerConfig `yaml:"chunker"`

	// Embedding configures the text encoder backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Index configures the on-disk vector index location.
	Index IndexConfig `yaml:"index"`

	// Retrieval configures query-time defaults.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// LLM configures the Groq text-generation backend.
	LLM LLMConfig `yaml:"llm"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures query-history persistence.
	History HistoryConfig `yaml:"history"`
}

// DocsConfig holds document source settings.
type DocsConfig struct {
	// Dir is the directory scanned for .txt, .md, and .pdf documents.
	Dir string `yaml:"dir"`
	// ExtractorURL is the endpoint of the external PDF-to-text service.
	// PDFs are skipped with a warning when unset.
	ExtractorURL string `yaml:"extractor_url"`
}

// ChunkerConfig holds passage-splitting settings.
type ChunkerConfig struct {
	// ChunkSize is the candidate window size in characters.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the number of trailing characters shared between
	// consecutive chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// EmbeddingConfig holds text-encoder settings.
type EmbeddingConfig struct {
	// Provider selects the encoder backend: ollama or openai.
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// BatchSize is the number of texts sent per encode request.
	BatchSize int `yaml:"batch_size"`
	// APIKey is the encoder API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the encoder API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// IndexConfig holds vector-index persistence settings.
type IndexConfig struct {
	// Dir is the directory holding the two index artifacts.
	Dir string `yaml:"dir"`
}

// RetrievalConfig holds query-time defaults.
type RetrievalConfig struct {
	// TopK is the default number of passages retrieved per query.
	TopK int `yaml:"top_k"`
}

// LLMConfig holds text-generation settings. The backend is any
// OpenAI-compatible chat completion API; Groq is the default.
type LLMConfig struct {
	// APIKey is the Groq API key. Prefer env var GROQ_API_KEY.
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the Groq API endpoint.
	BaseURL string `yaml:"base_url"`
	// Model is the chat model name.
	Model string `yaml:"model"`
	// MaxTokens caps the generated answer length.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var
	// SAHAYAK_API_KEY.
	APIKey string `yaml:"api_key"`
	// RateLimit is the sustained per-IP request rate (requests/second).
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the maximum instantaneous per-IP burst.
	RateBurst int `yaml:"rate_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds query-history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"DOCS_DIR", func(c *Config) string { return c.Docs.Dir }},
	{"EXTRACTOR_URL", func(c *Config) string { return c.Docs.ExtractorURL }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunker.ChunkSize) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunker.ChunkOverlap) }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_BATCH_SIZE", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"INDEX_DIR", func(c *Config) string { return c.Index.Dir }},
	{"TOP_K_RESULTS", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"GROQ_API_KEY", func(c *Config) string { return c.LLM.APIKey }},
	{"GROQ_BASE_URL", func(c *Config) string { return c.LLM.BaseURL }},
	{"GROQ_MODEL", func(c *Config) string { return c.LLM.Model }},
	{"LLM_MAX_TOKENS", func(c *Config) string { return intStr(c.LLM.MaxTokens) }},
	{"LLM_TEMPERATURE", func(c *Config) string { return float32Str(c.LLM.Temperature) }},
	{"SAHAYAK_HOST", func(c *Config) string { return c.Server.Host }},
	{"SAHAYAK_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"SAHAYAK_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"SAHAYAK_RATE_LIMIT", func(c *Config) string { return floatStr(c.Server.RateLimit) }},
	{"SAHAYAK_RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"SAHAYAK_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("SAHAYAK_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".sahayak", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("sahayak.yaml"); err == nil {
		return "sahayak.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// floatStr converts a float64 to string, returning "" for zero values.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	return floatStr(float64(v))
}
