// Package retrieval surfaces policy and precedent context by vector
// similarity.
//
// Retrievers are read-only: they embed the query, search one collection
// and return ranked chunks. A failing embedder or store never takes the
// pipeline down: errors surface as ErrUnavailable and the caller
// degrades to an empty chunk sequence so the reviewer still sees the
// rule outcome.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ezextender/extenderd/internal/request"
	"github.com/ezextender/extenderd/internal/vectorstore"
)

var tracer = otel.Tracer("extenderd.retrieval")

// ErrUnavailable indicates the embedding or store call failed during a
// read. Recovered locally: callers degrade to an empty result set.
var ErrUnavailable = errors.New("retrieval unavailable")

// DefaultTimeout bounds a single retrieval call when the config does
// not say otherwise.
const DefaultTimeout = 5 * time.Second

// Source tags which knowledge source a chunk came from.
type Source string

const (
	// SourcePolicy marks chunks from the policy document collection.
	SourcePolicy Source = "policy"

	// SourcePrecedent marks chunks from past human decisions.
	SourcePrecedent Source = "precedent"
)

// Chunk is a retrieved piece of context, ranked by similarity.
type Chunk struct {
	// Source is the originating collection.
	Source Source `json:"source"`

	// ID is the stored document identifier.
	ID string `json:"id"`

	// Text is the original stored text.
	Text string `json:"text"`

	// Score is the similarity score in [0,1], higher = more relevant.
	Score float64 `json:"score"`

	// Metadata carries the stored metadata. For precedent chunks:
	// verdict, rationale, reviewer, tag.
	Metadata map[string]any `json:"metadata,omitempty"`

	// sequence is the store ingestion order, used for tie-breaking.
	sequence uint64
}

// metaString returns a string metadata value, or "".
func (c Chunk) metaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	s, _ := c.Metadata[key].(string)
	return s
}

// Label returns the policy chunk's allow/deny label, or "".
func (c Chunk) Label() string { return c.metaString("label") }

// Verdict returns the precedent chunk's recorded verdict, or "".
func (c Chunk) Verdict() string { return c.metaString("verdict") }

// Reviewer returns the precedent chunk's reviewer ID, or "".
func (c Chunk) Reviewer() string { return c.metaString("reviewer") }

// Rationale returns the precedent chunk's reviewer rationale, or "".
func (c Chunk) Rationale() string { return c.metaString("rationale") }

// Retriever queries one collection of the vector store.
type Retriever struct {
	source     Source
	collection string
	store      vectorstore.Store
	timeout    time.Duration
	logger     *zap.Logger
}

// NewPolicyRetriever builds a retriever over the policy collection.
func NewPolicyRetriever(store vectorstore.Store, timeout time.Duration, logger *zap.Logger) *Retriever {
	return newRetriever(SourcePolicy, vectorstore.CollectionPolicy, store, timeout, logger)
}

// NewPrecedentRetriever builds a retriever over the precedent collection.
func NewPrecedentRetriever(store vectorstore.Store, timeout time.Duration, logger *zap.Logger) *Retriever {
	return newRetriever(SourcePrecedent, vectorstore.CollectionPrecedent, store, timeout, logger)
}

func newRetriever(source Source, collection string, store vectorstore.Store, timeout time.Duration, logger *zap.Logger) *Retriever {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		source:     source,
		collection: collection,
		store:      store,
		timeout:    timeout,
		logger:     logger.Named(string(source)),
	}
}

// Source returns the retriever's knowledge source tag.
func (r *Retriever) Source() Source {
	return r.source
}

// Retrieve returns up to k chunks relevant to the query text, ranked
// descending by similarity with ties broken by earliest ingestion.
// The query is normalized (synonym expansion) before embedding.
//
// Any embed/store failure or timeout maps to ErrUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, k int) ([]Chunk, error) {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()

	span.SetAttributes(
		attribute.String("source", string(r.source)),
		attribute.Int("k", k),
	)

	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if queryText == "" {
		return nil, fmt.Errorf("query text cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := request.NormalizeReason(queryText)

	matches, err := r.store.Query(ctx, r.collection, query, k)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("retrieval failed",
			zap.String("collection", r.collection),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, r.source, err)
	}

	chunks := make([]Chunk, len(matches))
	for i, m := range matches {
		chunks[i] = Chunk{
			Source:   r.source,
			ID:       m.ID,
			Text:     m.Content,
			Score:    clampScore(float64(m.Score)),
			Metadata: m.Metadata,
			sequence: m.Sequence,
		}
	}

	// Stores rank by score already, but clamp plus backend quirks can
	// reorder ties; re-sort stably so results are deterministic:
	// descending score, then earliest-ingested first.
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].sequence < chunks[j].sequence
	})

	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	return chunks, nil
}

// clampScore bounds a similarity score to [0,1]. Cosine similarity can
// go negative; negative relevance reads as zero.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
