package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezextender/extenderd/internal/request"
	"github.com/ezextender/extenderd/internal/retrieval"
	"github.com/ezextender/extenderd/internal/rules"
)

func testRequest(t *testing.T) *request.ExtensionRequest {
	t.Helper()
	req, err := request.New("alice", "2025-03-10T17:00:00Z", "2025-03-14T17:00:00Z", "my grandmother passed away", time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return req
}

func chunk(source retrieval.Source, id, text string, score float64, meta map[string]any) retrieval.Chunk {
	return retrieval.Chunk{Source: source, ID: id, Text: text, Score: score, Metadata: meta}
}

func TestAssemble_PreservesOrderAndCounts(t *testing.T) {
	req := testRequest(t)
	outcome := rules.Outcome{Decision: rules.DecisionNeedsReview, Delta: 36 * time.Hour, EvaluatedAt: req.SubmittedAt}

	policy := []retrieval.Chunk{
		chunk(retrieval.SourcePolicy, "p1", "first", 0.9, nil),
		chunk(retrieval.SourcePolicy, "p2", "second", 0.7, nil),
		chunk(retrieval.SourcePolicy, "p3", "second", 0.7, nil), // duplicate text stays
	}
	precedent := []retrieval.Chunk{
		chunk(retrieval.SourcePrecedent, "c1", "case", 0.8, nil),
	}

	rec := NewAssembler().Assemble(req, outcome, policy, precedent)

	require.Len(t, rec.PolicyChunks, 3)
	require.Len(t, rec.PrecedentChunks, 1)
	assert.Equal(t, "p1", rec.PolicyChunks[0].ID)
	assert.Equal(t, "p2", rec.PolicyChunks[1].ID)
	assert.Equal(t, "p3", rec.PolicyChunks[2].ID)
	assert.Equal(t, outcome, rec.Outcome)
	assert.Same(t, req, rec.Request)
}

func TestAssemble_Deterministic(t *testing.T) {
	req := testRequest(t)
	outcome := rules.Outcome{Decision: rules.DecisionNeedsReview, Delta: 12 * time.Hour, EvaluatedAt: req.SubmittedAt}
	policy := []retrieval.Chunk{chunk(retrieval.SourcePolicy, "p1", "bereavement is acceptable", 0.82, nil)}
	precedent := []retrieval.Chunk{chunk(retrieval.SourcePrecedent, "c1", "prior case", 0.7, map[string]any{"verdict": "approved"})}

	a := NewAssembler()
	first := a.Assemble(req, outcome, policy, precedent)
	second := a.Assemble(req, outcome, policy, precedent)
	assert.Equal(t, first, second)
}

func TestAssemble_CopiesInputSlices(t *testing.T) {
	req := testRequest(t)
	outcome := rules.Outcome{Decision: rules.DecisionNeedsReview}
	policy := []retrieval.Chunk{chunk(retrieval.SourcePolicy, "p1", "text", 0.5, nil)}

	rec := NewAssembler().Assemble(req, outcome, policy, nil)
	policy[0].ID = "mutated"

	assert.Equal(t, "p1", rec.PolicyChunks[0].ID)
}

func TestAssemble_EmptyChunksValid(t *testing.T) {
	req := testRequest(t)
	outcome := rules.Outcome{Decision: rules.DecisionAutoApproved, Delta: 96 * time.Hour, EvaluatedAt: req.SubmittedAt}

	rec := NewAssembler().Assemble(req, outcome, nil, nil)

	assert.Empty(t, rec.PolicyChunks)
	assert.Empty(t, rec.PrecedentChunks)
	assert.Equal(t, InsufficientContext, rec.Advice.Lean)
}

func TestScore_StrongAllowCue(t *testing.T) {
	policy := []retrieval.Chunk{chunk(retrieval.SourcePolicy, "p1", "ALLOW: bereavement in the immediate family", 0.9, map[string]any{"label": "allow"})}

	advice := Score(policy, nil)

	assert.Equal(t, LeanApprove, advice.Lean)
	assert.Contains(t, advice.Basis, "bereavement")
	assert.GreaterOrEqual(t, advice.Confidence, strongCueConfidence)
}

func TestScore_StrongDenyCue(t *testing.T) {
	policy := []retrieval.Chunk{chunk(retrieval.SourcePolicy, "p1", "DENY: a common cold is not sufficient grounds", 0.75, map[string]any{"label": "deny"})}

	advice := Score(policy, nil)

	assert.Equal(t, LeanDeny, advice.Lean)
}

func TestScore_CueRequiresMatchingLabel(t *testing.T) {
	// Allow wording inside a deny-labeled rule must not read as an
	// allow cue, and vice versa.
	policy := []retrieval.Chunk{chunk(retrieval.SourcePolicy, "p1", "DENY: travel delay is not valid even near a hospital visit", 0.8, map[string]any{"label": "deny"})}

	advice := Score(policy, nil)

	assert.Equal(t, LeanDeny, advice.Lean)
	assert.Contains(t, advice.Basis, "not valid")
}

func TestScore_ConflictingCuesFallBackToVote(t *testing.T) {
	policy := []retrieval.Chunk{
		chunk(retrieval.SourcePolicy, "p1", "ALLOW: bereavement in the immediate family", 0.9, map[string]any{"label": "allow"}),
		chunk(retrieval.SourcePolicy, "p2", "DENY: undocumented absence is not acceptable", 0.8, map[string]any{"label": "deny"}),
	}

	advice := Score(policy, nil)

	// 0.9 vs 0.8 splits the vote below the confidence threshold.
	assert.Equal(t, ReviewCarefully, advice.Lean)
	assert.InDelta(t, 0.9/(0.9+0.8), advice.Confidence, 1e-9)
}

func TestScore_LabeledPolicyOutvotesWeakerPrecedent(t *testing.T) {
	// A close deny rule beats a more distant approved precedent even
	// when the rule's text shares no cue words with the request.
	policy := []retrieval.Chunk{chunk(retrieval.SourcePolicy, "p1", "requests in the final day before a deadline are refused", 0.92, map[string]any{"label": "deny"})}
	precedent := []retrieval.Chunk{chunk(retrieval.SourcePrecedent, "c1", "similar case", 0.61, map[string]any{"verdict": "approved"})}

	advice := Score(policy, precedent)

	assert.Equal(t, LeanDeny, advice.Lean)
	denyScore := 0.65 * 0.92
	allowScore := 0.35 * 0.61
	assert.InDelta(t, denyScore/(denyScore+allowScore), advice.Confidence, 1e-9)
}

func TestScore_SplitVoteReviewCarefully(t *testing.T) {
	policy := []retrieval.Chunk{
		chunk(retrieval.SourcePolicy, "p1", "general guidance", 0.5, map[string]any{"label": "allow"}),
		chunk(retrieval.SourcePolicy, "p2", "general guidance", 0.45, map[string]any{"label": "deny"}),
	}

	advice := Score(policy, nil)

	assert.Equal(t, ReviewCarefully, advice.Lean)
	assert.Less(t, advice.Confidence, MinConfidence)
}

func TestScore_UnlabeledEvidenceReviewCarefully(t *testing.T) {
	policy := []retrieval.Chunk{chunk(retrieval.SourcePolicy, "p1", "general guidance with no ruling", 0.95, nil)}

	advice := Score(policy, nil)

	assert.Equal(t, ReviewCarefully, advice.Lean)
	assert.Zero(t, advice.Confidence)
}

func TestScore_PrecedentVoteSums(t *testing.T) {
	// Two moderate denied precedents outvote one closer approval.
	precedent := []retrieval.Chunk{
		chunk(retrieval.SourcePrecedent, "c1", "approved case", 0.8, map[string]any{"verdict": "approved"}),
		chunk(retrieval.SourcePrecedent, "c2", "denied case", 0.7, map[string]any{"verdict": "denied"}),
		chunk(retrieval.SourcePrecedent, "c3", "denied case", 0.65, map[string]any{"verdict": "denied"}),
	}

	advice := Score(nil, precedent)

	assert.Equal(t, LeanDeny, advice.Lean)
	assert.InDelta(t, 1.35/(1.35+0.8), advice.Confidence, 1e-9)
}

func TestScore_PrecedentTipsLean(t *testing.T) {
	policy := []retrieval.Chunk{chunk(retrieval.SourcePolicy, "p1", "general guidance only", 0.55, nil)}
	precedent := []retrieval.Chunk{chunk(retrieval.SourcePrecedent, "c1", "similar case", 0.9, map[string]any{"verdict": "denied"})}

	advice := Score(policy, precedent)

	require.GreaterOrEqual(t, advice.Confidence, MinConfidence)
	assert.Equal(t, LeanDeny, advice.Lean)
}

func TestScore_NoContext(t *testing.T) {
	advice := Score(nil, nil)
	assert.Equal(t, InsufficientContext, advice.Lean)
	assert.Zero(t, advice.Confidence)
}
