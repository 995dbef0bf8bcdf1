package adjudicate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ezextender/extenderd/internal/clock"
	"github.com/ezextender/extenderd/internal/precedent"
	"github.com/ezextender/extenderd/internal/retrieval"
	"github.com/ezextender/extenderd/internal/rules"
	"github.com/ezextender/extenderd/internal/vectorstore"
)

// unitEmbedder returns deterministic normalized vectors so the
// embedded store behaves the same on every run.
type unitEmbedder struct{}

func (unitEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = unitVector(text)
	}
	return out, nil
}

func (unitEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return unitVector(text), nil
}

func unitVector(text string) []float32 {
	v := make([]float32, 16)
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	var sumSq float64
	for i := range v {
		v[i] = float32((hash+i)%97) / 97.0
		sumSq += float64(v[i]) * float64(v[i])
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= norm
	}
	return v
}

// A recorded verdict must be retrievable by later similar requests:
// review a request, then submit a similar one and find the precedent.
func TestFeedbackLoop_VerdictBecomesRetrievable(t *testing.T) {
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: 16,
	}, unitEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	clk := clock.Fixed(testNow)
	writer, err := precedent.NewWriter(store, clk, nil, nil)
	require.NoError(t, err)

	svc, err := NewService(
		retrieval.NewPolicyRetriever(store, time.Second, nil),
		retrieval.NewPrecedentRetriever(store, time.Second, nil),
		writer,
		nil,
		WithClock(clk),
	)
	require.NoError(t, err)

	first, err := svc.Submit(context.Background(), Submission{
		Requester:         "ivan",
		OriginalDeadline:  deadline(10 * time.Hour),
		RequestedDeadline: deadline(58 * time.Hour),
		Justification:     "my grandmother passed away",
	})
	require.NoError(t, err)
	require.Equal(t, rules.DecisionNeedsReview, first.Outcome.Decision)

	rec, err := svc.Review(context.Background(), first.Request.ID, precedent.ReviewVerdict{
		Decision:   precedent.VerdictApproved,
		ReviewerID: "rev-1",
		Rationale:  "bereavement in the immediate family",
	})
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), Submission{
		Requester:         "judy",
		OriginalDeadline:  deadline(8 * time.Hour),
		RequestedDeadline: deadline(56 * time.Hour),
		Justification:     "death in the family, need time for the funeral",
	})
	require.NoError(t, err)

	require.NotEmpty(t, second.PrecedentChunks)
	found := false
	for _, c := range second.PrecedentChunks {
		if c.ID == rec.ID {
			found = true
			assert.Equal(t, "approved", c.Verdict())
			assert.Equal(t, "rev-1", c.Reviewer())
		}
	}
	assert.True(t, found, "recorded precedent should surface for a similar request")
}

// One retriever failing must not cost the reviewer the other's context.
func TestSubmit_PolicyOutageKeepsPrecedentContext(t *testing.T) {
	policy := &stubRetriever{err: retrieval.ErrUnavailable}
	prec := &stubRetriever{chunks: []retrieval.Chunk{
		{Source: retrieval.SourcePrecedent, ID: "c1", Text: "similar past case", Score: 0.7, Metadata: map[string]any{"verdict": "denied"}},
	}}
	svc := newTestService(t, policy, prec, &memoryWriter{})

	rec, err := svc.Submit(context.Background(), Submission{
		Requester:         "kim",
		OriginalDeadline:  deadline(9 * time.Hour),
		RequestedDeadline: deadline(33 * time.Hour),
		Justification:     "caught a bad flu",
	})
	require.NoError(t, err)

	assert.Empty(t, rec.PolicyChunks)
	require.Len(t, rec.PrecedentChunks, 1)
	assert.Equal(t, "c1", rec.PrecedentChunks[0].ID)
}
