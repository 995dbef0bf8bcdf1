// Package precedent records human review verdicts as reusable cases.
//
// Every verdict becomes a new append-only record in the precedent
// collection. Records are never updated or deleted: a changed ruling
// on similar facts is a new precedent, and retrieval surfaces both.
package precedent

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// VerdictDecision is the binding human ruling on a request.
type VerdictDecision string

const (
	VerdictApproved VerdictDecision = "approved"
	VerdictDenied   VerdictDecision = "denied"
)

// ErrInvalidVerdict indicates a verdict that fails validation.
var ErrInvalidVerdict = errors.New("invalid review verdict")

// ParseDecision normalizes common reviewer phrasings onto the two
// canonical decisions.
func ParseDecision(raw string) (VerdictDecision, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "approve", "allow", "allowed", "grant", "granted":
		return VerdictApproved, nil
	case "denied", "deny", "reject", "rejected", "refuse", "refused":
		return VerdictDenied, nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", ErrInvalidVerdict, raw)
	}
}

// ReviewVerdict is a human reviewer's ruling on a request.
type ReviewVerdict struct {
	Decision   VerdictDecision `json:"decision"`
	ReviewerID string          `json:"reviewer_id"`
	Rationale  string          `json:"rationale"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Validate checks the verdict is complete enough to persist.
func (v ReviewVerdict) Validate() error {
	if v.Decision != VerdictApproved && v.Decision != VerdictDenied {
		return fmt.Errorf("%w: decision must be approved or denied, got %q", ErrInvalidVerdict, v.Decision)
	}
	if strings.TrimSpace(v.ReviewerID) == "" {
		return fmt.Errorf("%w: reviewer id is required", ErrInvalidVerdict)
	}
	if strings.TrimSpace(v.Rationale) == "" {
		return fmt.Errorf("%w: rationale is required", ErrInvalidVerdict)
	}
	return nil
}
