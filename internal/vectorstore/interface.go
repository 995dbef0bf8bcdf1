// Package vectorstore defines the interface for vector storage operations.
//
// The store holds two logical collections: policy chunks and precedent
// cases. Implementations embed document content via the configured
// Embedder and persist vectors with metadata. Writes are atomic at
// single-record granularity; records are append-only once written.
package vectorstore

import (
	"context"
	"errors"
)

// Logical collection names. Fixed: the adjudication pipeline knows
// exactly two knowledge sources.
const (
	// CollectionPolicy holds ingested policy document chunks.
	CollectionPolicy = "policy_chunks"

	// CollectionPrecedent holds past human decisions.
	CollectionPrecedent = "precedent_cases"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Embedder generates vector embeddings from text.
//
// Embeddings must be deterministic for identical input so that tests
// and replays are reproducible.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns one embedding per input text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for vector storage operations.
//
// Transport-agnostic: implementations can be embedded (chromem-go) or
// remote (Qdrant gRPC). The interface is deliberately narrow: the
// pipeline only ever upserts, queries and counts.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	// Idempotent.
	EnsureCollection(ctx context.Context, collection string) error

	// Upsert embeds and stores documents in the given collection.
	// Each document write either fully succeeds or fails; a failed
	// batch leaves no partial record behind for the failing documents.
	// Returns the stored document IDs in input order.
	Upsert(ctx context.Context, collection string, docs []Document) ([]string, error)

	// Query returns up to k matches for the query text, ranked by
	// similarity score descending. An empty collection yields an empty
	// result, not an error.
	Query(ctx context.Context, collection string, query string, k int) ([]Match, error)

	// Count returns the number of documents in the collection.
	// A missing collection counts as zero.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases backend resources.
	Close() error
}
