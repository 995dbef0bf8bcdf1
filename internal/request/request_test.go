package request_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ezextender/extenderd/internal/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var submittedAt = time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)

func TestNew_Valid(t *testing.T) {
	req, err := request.New("alice", "2025-11-02T12:00:00Z", "2025-11-05T12:00:00Z", "my grandfather passed away", submittedAt)
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "alice", req.Requester)
	assert.Equal(t, time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC), req.OriginalDeadline)
	assert.Equal(t, time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC), req.RequestedDeadline)
	assert.Equal(t, submittedAt, req.SubmittedAt)
}

func TestNew_UniqueIDs(t *testing.T) {
	a, err := request.New("alice", "2025-11-02T12:00:00Z", "2025-11-05T12:00:00Z", "flu", submittedAt)
	require.NoError(t, err)
	b, err := request.New("alice", "2025-11-02T12:00:00Z", "2025-11-05T12:00:00Z", "flu", submittedAt)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		requester string
		original  string
		requested string
		reason    string
		want      error
	}{
		{"empty requester", "", "2025-11-02T12:00:00Z", "2025-11-05T12:00:00Z", "flu", request.ErrEmptyRequester},
		{"empty justification", "alice", "2025-11-02T12:00:00Z", "2025-11-05T12:00:00Z", "  ", request.ErrEmptyJustification},
		{"empty deadline", "alice", "", "2025-11-05T12:00:00Z", "flu", request.ErrEmptyDeadline},
		{"bad deadline", "alice", "tomorrow", "2025-11-05T12:00:00Z", "flu", request.ErrBadDeadline},
		{"missing seconds", "alice", "2025-11-02T12:00Z", "2025-11-05T12:00:00Z", "flu", request.ErrBadDeadline},
		{"requested before original", "alice", "2025-11-05T12:00:00Z", "2025-11-02T12:00:00Z", "flu", request.ErrDeadlineOrder},
		{"requested equals original", "alice", "2025-11-05T12:00:00Z", "2025-11-05T12:00:00Z", "flu", request.ErrDeadlineOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := request.New(tt.requester, tt.original, tt.requested, tt.reason, submittedAt)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, request.ErrInvalidRequest, "all validation errors wrap ErrInvalidRequest")
		})
	}
}

func TestParseDeadline_AcceptsUTCOffset(t *testing.T) {
	got, err := request.ParseDeadline("2025-11-02T12:00:00+00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC), got)
}

func TestParseDeadline_RejectsNonUTCOffset(t *testing.T) {
	_, err := request.ParseDeadline("2025-11-02T12:00:00+02:00")
	assert.True(t, errors.Is(err, request.ErrBadDeadline))
}

func TestCanonicalText_Deterministic(t *testing.T) {
	a, err := request.New("alice", "2025-11-02T12:00:00Z", "2025-11-05T12:00:00Z", "caught the flu", submittedAt)
	require.NoError(t, err)
	b, err := request.New("bob", "2025-11-02T12:00:00Z", "2025-11-05T12:00:00Z", "caught the flu", submittedAt)
	require.NoError(t, err)

	// Canonical text covers the request content, not its identity, so
	// identical content embeds identically.
	assert.Equal(t, a.CanonicalText(), b.CanonicalText())
	assert.Contains(t, a.CanonicalText(), "caught the flu")
}

func TestTagReason(t *testing.T) {
	tests := []struct {
		reason string
		want   request.Tag
	}{
		{"My grandfather passed away", request.TagBereavement},
		{"death in the family, need time for funeral", request.TagBereavement},
		{"Hospitalized for surgery, recovery expected 1 week", request.TagSeriousInjury},
		{"broken wrist from a bike accident", request.TagSeriousInjury},
		{"Cold/flu for two days", request.TagMinorIllness},
		{"booked a vacation months ago", request.TagTravel},
		{"printer ran out of ink", request.TagOther},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.want, request.TagReason(tt.reason))
		})
	}
}

func TestNormalizeReason(t *testing.T) {
	got := request.NormalizeReason("My Grandfather passed away")
	assert.Equal(t, "my family member death bereavement", got)

	got = request.NormalizeReason("caught the FLU last week")
	assert.Equal(t, "caught the common cold minor illness last week", got)
}
