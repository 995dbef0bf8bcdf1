package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("extenderd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.local/share/extenderd/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	// Default: 384 (bge-small-en-v1.5)
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/extenderd/vectorstore"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable pure-Go vector database with gob-file
// persistence. No external service is needed, which makes it the default
// backend for single-node deployments and demos.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger

	// seq assigns the ingestion sequence for tie-breaking. Seeded from
	// wall-clock nanos so sequences stay monotonic across restarts.
	seq atomic.Uint64

	// collections tracks created collections.
	collections sync.Map
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	store := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}
	store.seq.Store(uint64(time.Now().UnixNano()))

	logger.Info("chromem store initialized",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
	)

	return store, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc adapts the Embedder interface to chromem's.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// EnsureCollection creates the collection if it does not exist.
func (s *ChromemStore) EnsureCollection(ctx context.Context, collection string) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if _, err := s.db.GetOrCreateCollection(collection, nil, s.embeddingFunc()); err != nil {
		return fmt.Errorf("getting/creating collection %s: %w", collection, err)
	}
	s.collections.Store(collection, true)
	return nil
}

// Upsert embeds and stores documents in the given collection.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	start := time.Now()

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	col, err := s.db.GetOrCreateCollection(collection, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observeUpsert(collection, resultError, start, 0)
		return nil, fmt.Errorf("getting/creating collection %s: %w", collection, err)
	}
	s.collections.Store(collection, true)

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observeUpsert(collection, resultError, start, 0)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = fmt.Sprintf("doc_%d_%d", time.Now().UnixNano(), i)
			s.logger.Warn("auto-generated document ID, caller should provide explicit IDs",
				zap.String("generated_id", ids[i]),
			)
		}

		meta := metadataToString(doc.Metadata)
		if meta == nil {
			meta = make(map[string]string, 1)
		}
		meta[MetaSequence] = strconv.FormatUint(s.seq.Add(1), 10)

		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  meta,
			Embedding: embeddings[i],
		}
	}

	// Concurrency 1: embeddings are already computed above.
	if err := col.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observeUpsert(collection, resultError, start, 0)
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	observeUpsert(collection, resultSuccess, start, len(ids))

	s.logger.Debug("upserted documents",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// Query performs similarity search in the given collection.
func (s *ChromemStore) Query(ctx context.Context, collection string, query string, k int) ([]Match, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	start := time.Now()

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	col := s.db.GetCollection(collection, s.embeddingFunc())
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		observeQuery(collection, resultError, start, 0)
		return nil, ErrCollectionNotFound
	}

	// chromem requires nResults <= document count.
	docCount := col.Count()
	if docCount == 0 {
		observeQuery(collection, resultSuccess, start, 0)
		return []Match{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observeQuery(collection, resultError, start, 0)
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		meta := metadataFromString(r.Metadata)
		matches[i] = Match{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: meta,
			Sequence: parseSequence(meta),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	observeQuery(collection, resultSuccess, start, len(matches))

	return matches, nil
}

// Count returns the number of documents in a collection. A missing
// collection counts as zero.
func (s *ChromemStore) Count(ctx context.Context, collection string) (int, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	col := s.db.GetCollection(collection, s.embeddingFunc())
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

// Close releases resources. chromem persists on write, so there is
// nothing to flush.
func (s *ChromemStore) Close() error {
	return nil
}
