package vectorstore

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backend selects the vector store implementation.
const (
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// FactoryConfig selects and configures a Store backend.
type FactoryConfig struct {
	// Backend is "chromem" (embedded, default) or "qdrant" (external).
	Backend string

	// Path is the chromem persistence directory.
	Path string

	// Compress enables chromem gzip compression.
	Compress bool

	// Host/Port/UseTLS configure the qdrant backend.
	Host   string
	Port   int
	UseTLS bool

	// VectorSize is the embedding dimension, shared by both backends.
	VectorSize int

	// RetryBackoff is the qdrant transient-failure backoff.
	RetryBackoff time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *FactoryConfig) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendChromem
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c FactoryConfig) Validate() error {
	switch c.Backend {
	case BackendChromem, BackendQdrant:
		return nil
	case "":
		return fmt.Errorf("%w: backend required", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unknown backend %q (supported: chromem, qdrant)", ErrInvalidConfig, c.Backend)
	}
}

// NewStore builds a Store for the configured backend.
func NewStore(cfg FactoryConfig, embedder Embedder, logger *zap.Logger) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendQdrant:
		return NewQdrantStore(QdrantConfig{
			Host:         cfg.Host,
			Port:         cfg.Port,
			UseTLS:       cfg.UseTLS,
			VectorSize:   uint64(cfg.VectorSize),
			RetryBackoff: cfg.RetryBackoff,
		}, embedder, logger)
	default:
		return NewChromemStore(ChromemConfig{
			Path:       cfg.Path,
			Compress:   cfg.Compress,
			VectorSize: cfg.VectorSize,
		}, embedder, logger)
	}
}
