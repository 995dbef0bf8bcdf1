// Package embeddings provides embedding generation via multiple providers.
//
// Two providers are supported: FastEmbed runs a local ONNX model with no
// network dependency; TEI talks to a text-embeddings-inference server
// over HTTP. Both are deterministic for identical input, which the
// retrieval tests rely on.
package embeddings

import (
	"errors"
	"fmt"

	"github.com/ezextender/extenderd/internal/vectorstore"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	// Provider is "fastembed" (default) or "tei".
	Provider string

	// Model is the embedding model name.
	// Default: BAAI/bge-small-en-v1.5
	Model string

	// BaseURL is the TEI server URL (TEI provider only).
	BaseURL string

	// CacheDir is the model cache directory (FastEmbed only).
	CacheDir string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "fastembed"
	}
	if c.Model == "" {
		c.Model = "BAAI/bge-small-en-v1.5"
	}
}

// NewProvider builds an embedding provider for the configuration.
func NewProvider(cfg Config) (Provider, error) {
	cfg.ApplyDefaults()

	switch cfg.Provider {
	case "fastembed":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "tei":
		return NewTEIProvider(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (supported: fastembed, tei)", ErrInvalidConfig, cfg.Provider)
	}
}
