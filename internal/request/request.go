// Package request defines the extension request model and its validation.
package request

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors for request validation. All wrap ErrInvalidRequest so
// callers can reject malformed submissions with a single errors.Is check
// before any rule evaluation or retrieval happens.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrEmptyDeadline      = fmt.Errorf("%w: empty deadline, expected 'YYYY-MM-DDTHH:MM:SSZ'", ErrInvalidRequest)
	ErrBadDeadline        = fmt.Errorf("%w: malformed deadline", ErrInvalidRequest)
	ErrEmptyJustification = fmt.Errorf("%w: justification cannot be empty", ErrInvalidRequest)
	ErrEmptyRequester     = fmt.Errorf("%w: requester cannot be empty", ErrInvalidRequest)
	ErrDeadlineOrder      = fmt.Errorf("%w: requested deadline must be after the original deadline", ErrInvalidRequest)
)

// isoZulu matches the accepted deadline wire format.
var isoZulu = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

// ExtensionRequest is a deadline extension request. Immutable once
// submitted; the pipeline never mutates it after construction.
type ExtensionRequest struct {
	// ID is the unique request identifier (UUID).
	ID string `json:"id"`

	// Requester identifies who submitted the request.
	Requester string `json:"requester"`

	// OriginalDeadline is the deadline being extended, in UTC.
	OriginalDeadline time.Time `json:"original_deadline"`

	// RequestedDeadline is the new deadline being asked for, in UTC.
	RequestedDeadline time.Time `json:"requested_deadline"`

	// Justification is the requester's free-text reason.
	Justification string `json:"justification"`

	// SubmittedAt is when the request entered the system.
	SubmittedAt time.Time `json:"submitted_at"`
}

// New validates and constructs an ExtensionRequest from wire-format
// fields. Deadlines use ISO-8601 Zulu ('YYYY-MM-DDTHH:MM:SSZ'; a
// '+00:00' suffix is accepted and normalized).
func New(requester, originalDeadline, requestedDeadline, justification string, submittedAt time.Time) (*ExtensionRequest, error) {
	if strings.TrimSpace(requester) == "" {
		return nil, ErrEmptyRequester
	}
	if strings.TrimSpace(justification) == "" {
		return nil, ErrEmptyJustification
	}

	original, err := ParseDeadline(originalDeadline)
	if err != nil {
		return nil, err
	}
	requested, err := ParseDeadline(requestedDeadline)
	if err != nil {
		return nil, err
	}
	if !requested.After(original) {
		return nil, ErrDeadlineOrder
	}

	return &ExtensionRequest{
		ID:                uuid.New().String(),
		Requester:         strings.TrimSpace(requester),
		OriginalDeadline:  original,
		RequestedDeadline: requested,
		Justification:     strings.TrimSpace(justification),
		SubmittedAt:       submittedAt.UTC(),
	}, nil
}

// ParseDeadline parses an ISO-8601 Zulu timestamp into UTC.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, ErrEmptyDeadline
	}
	if strings.HasSuffix(s, "+00:00") {
		s = strings.TrimSuffix(s, "+00:00") + "Z"
	}
	if !isoZulu.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q, expected 'YYYY-MM-DDTHH:MM:SSZ'", ErrBadDeadline, s)
	}
	t, err := time.Parse("2006-01-02T15:04:05Z", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrBadDeadline, s, err)
	}
	return t.UTC(), nil
}

// Summary returns a short human-readable description of the request.
func (r *ExtensionRequest) Summary() string {
	return fmt.Sprintf("%s requests extension from %s to %s: %s",
		r.Requester,
		r.OriginalDeadline.Format("2006-01-02T15:04:05Z"),
		r.RequestedDeadline.Format("2006-01-02T15:04:05Z"),
		r.Justification,
	)
}

// CanonicalText renders the request in the deterministic form used as
// embedding input. Identical requests must produce identical text.
func (r *ExtensionRequest) CanonicalText() string {
	var b strings.Builder
	b.WriteString("extension request\n")
	fmt.Fprintf(&b, "original_deadline: %s\n", r.OriginalDeadline.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&b, "requested_deadline: %s\n", r.RequestedDeadline.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&b, "justification: %s", r.Justification)
	return b.String()
}
