package vectorstore_test

import (
	"context"
	"math"
	"testing"

	"github.com/ezextender/extenderd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// hashEmbedder returns deterministic normalized vectors for testing.
type hashEmbedder struct {
	vectorSize int
}

func (e *hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.makeEmbedding(text)
	}
	return embeddings, nil
}

func (e *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.makeEmbedding(text), nil
}

// makeEmbedding creates a normalized embedding from a text hash.
// chromem requires unit vectors.
func (e *hashEmbedder) makeEmbedding(text string) []float32 {
	embedding := make([]float32, e.vectorSize)
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	var sumSq float64
	for i := range embedding {
		embedding[i] = float32((hash+i)%100) / 100.0
		sumSq += float64(embedding[i]) * float64(embedding[i])
	}
	if sumSq > 0 {
		norm := float32(1.0 / math.Sqrt(sumSq))
		for i := range embedding {
			embedding[i] *= norm
		}
	}
	return embedding
}

func newTestStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: 32,
	}, &hashEmbedder{vectorSize: 32}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestChromemConfig_ApplyDefaults(t *testing.T) {
	config := vectorstore.ChromemConfig{}
	config.ApplyDefaults()

	assert.Equal(t, "~/.local/share/extenderd/vectorstore", config.Path)
	assert.Equal(t, 384, config.VectorSize)
}

func TestNewChromemStore_RequiresEmbedder(t *testing.T) {
	_, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir()}, nil, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestChromemStore_UpsertAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docs := []vectorstore.Document{
		{ID: "p1", Content: "ALLOW: bereavement in the immediate family", Metadata: map[string]any{"label": "allow"}},
		{ID: "p2", Content: "DENY: common cold or minor illness", Metadata: map[string]any{"label": "deny"}},
	}

	ids, err := store.Upsert(ctx, vectorstore.CollectionPolicy, docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	matches, err := store.Query(ctx, vectorstore.CollectionPolicy, "bereavement", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// Ranked descending by similarity.
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	for _, m := range matches {
		assert.NotEmpty(t, m.Content)
		assert.Contains(t, m.Metadata, "label")
		assert.NotZero(t, m.Sequence, "every stored document carries an ingestion sequence")
	}
}

func TestChromemStore_SequenceIsMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, vectorstore.CollectionPrecedent, []vectorstore.Document{
		{ID: "a", Content: "first case"},
	})
	require.NoError(t, err)
	_, err = store.Upsert(ctx, vectorstore.CollectionPrecedent, []vectorstore.Document{
		{ID: "b", Content: "second case"},
	})
	require.NoError(t, err)

	matches, err := store.Query(ctx, vectorstore.CollectionPrecedent, "case", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	byID := map[string]uint64{}
	for _, m := range matches {
		byID[m.ID] = m.Sequence
	}
	assert.Less(t, byID["a"], byID["b"], "later ingestion gets a larger sequence")
}

func TestChromemStore_QueryCapsKAtCollectionSize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, vectorstore.CollectionPolicy, []vectorstore.Document{
		{ID: "only", Content: "single policy chunk"},
	})
	require.NoError(t, err)

	matches, err := store.Query(ctx, vectorstore.CollectionPolicy, "policy", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestChromemStore_QueryEmptyCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, vectorstore.CollectionPolicy))

	matches, err := store.Query(ctx, vectorstore.CollectionPolicy, "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemStore_QueryMissingCollection(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Query(context.Background(), "no_such_collection", "anything", 3)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestChromemStore_QueryValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Query(ctx, vectorstore.CollectionPolicy, "query", 0)
	assert.Error(t, err)

	_, err = store.Query(ctx, vectorstore.CollectionPolicy, "", 3)
	assert.Error(t, err)

	_, err = store.Query(ctx, "Bad Name!", "query", 3)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
}

func TestChromemStore_UpsertEmpty(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Upsert(context.Background(), vectorstore.CollectionPolicy, nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)
}

func TestChromemStore_Count(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.Count(ctx, vectorstore.CollectionPrecedent)
	require.NoError(t, err)
	assert.Zero(t, n, "missing collection counts as zero")

	_, err = store.Upsert(ctx, vectorstore.CollectionPrecedent, []vectorstore.Document{
		{ID: "a", Content: "case one"},
		{ID: "b", Content: "case two"},
	})
	require.NoError(t, err)

	n, err = store.Count(ctx, vectorstore.CollectionPrecedent)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestValidateCollectionName(t *testing.T) {
	assert.NoError(t, vectorstore.ValidateCollectionName("policy_chunks"))
	assert.Error(t, vectorstore.ValidateCollectionName(""))
	assert.Error(t, vectorstore.ValidateCollectionName("UPPER"))
	assert.Error(t, vectorstore.ValidateCollectionName("../etc/passwd"))
	assert.Error(t, vectorstore.ValidateCollectionName("has space"))
}

func TestFactoryConfig_Validate(t *testing.T) {
	cfg := vectorstore.FactoryConfig{}
	cfg.ApplyDefaults()
	assert.Equal(t, vectorstore.BackendChromem, cfg.Backend)
	assert.NoError(t, cfg.Validate())

	bad := vectorstore.FactoryConfig{Backend: "pinecone"}
	assert.ErrorIs(t, bad.Validate(), vectorstore.ErrInvalidConfig)
}

func TestNewStore_ChromemBackend(t *testing.T) {
	store, err := vectorstore.NewStore(vectorstore.FactoryConfig{
		Backend:    vectorstore.BackendChromem,
		Path:       t.TempDir(),
		VectorSize: 32,
	}, &hashEmbedder{vectorSize: 32}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}
