// Package rules implements the deterministic auto-approval window.
package rules

import (
	"time"

	"go.uber.org/zap"

	"github.com/ezextender/extenderd/internal/request"
)

// AutoApproveWindow is the threshold beyond which requests bypass
// human review entirely. Strictly greater-than: a deadline exactly at
// the window still needs review.
const AutoApproveWindow = 48 * time.Hour

// Decision is the rule verdict.
type Decision string

const (
	// DecisionAutoApproved means the deadline is far enough out that no
	// review is needed. Not logged as precedent: it was never a human
	// decision.
	DecisionAutoApproved Decision = "auto_approved"

	// DecisionNeedsReview routes the request to retrieval and a human
	// reviewer.
	DecisionNeedsReview Decision = "needs_review"
)

// Outcome is the rule result, captured once at evaluation time. The
// delta is time-dependent and must never be re-derived later.
type Outcome struct {
	// Decision is the rule verdict.
	Decision Decision `json:"decision"`

	// Delta is original_deadline minus now at evaluation time. Negative
	// when the deadline has already passed.
	Delta time.Duration `json:"delta"`

	// EvaluatedAt is the instant the rule ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// AutoApproved reports whether the pipeline may short-circuit.
func (o Outcome) AutoApproved() bool {
	return o.Decision == DecisionAutoApproved
}

// HoursToDeadline returns the delta in hours, for display.
func (o Outcome) HoursToDeadline() float64 {
	return o.Delta.Hours()
}

// Evaluator applies the auto-approval window to requests.
type Evaluator struct {
	window time.Duration
	logger *zap.Logger
}

// NewEvaluator creates an Evaluator with the standard window.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		window: AutoApproveWindow,
		logger: logger,
	}
}

// Evaluate applies the window rule to a request at the given instant.
// Auto-approved iff original_deadline - now > window, strict.
func (e *Evaluator) Evaluate(req *request.ExtensionRequest, now time.Time) Outcome {
	delta := req.OriginalDeadline.Sub(now)

	decision := DecisionNeedsReview
	if delta > e.window {
		decision = DecisionAutoApproved
	}

	e.logger.Debug("rule evaluated",
		zap.String("request_id", req.ID),
		zap.Duration("delta", delta),
		zap.String("decision", string(decision)),
	)

	return Outcome{
		Decision:    decision,
		Delta:       delta,
		EvaluatedAt: now.UTC(),
	}
}
