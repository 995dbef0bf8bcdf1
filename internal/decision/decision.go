// Package decision assembles rule outcomes and retrieved context into
// recommendations for a human reviewer.
//
// The assembler is pure aggregation: no I/O, no retrieval calls. It
// receives already-retrieved chunks, preserves their ranking order and
// never dedups. Overlapping policy and precedent text stays as
// distinct records, and any dedup is an explicit caller decision.
package decision

import (
	"github.com/ezextender/extenderd/internal/request"
	"github.com/ezextender/extenderd/internal/retrieval"
	"github.com/ezextender/extenderd/internal/rules"
)

// Recommendation is the structured package handed to a reviewer.
// Consumed read-only; never persisted beyond the review session.
type Recommendation struct {
	// Request is the originating extension request.
	Request *request.ExtensionRequest `json:"request"`

	// Outcome is the rule result captured at evaluation time.
	Outcome rules.Outcome `json:"outcome"`

	// PolicyChunks are policy excerpts ranked most-relevant first.
	PolicyChunks []retrieval.Chunk `json:"policy_chunks"`

	// PrecedentChunks are similar past decisions, ranked likewise.
	PrecedentChunks []retrieval.Chunk `json:"precedent_chunks"`

	// Advice is the advisory similarity-vote summary. The binding
	// decision is always the human verdict.
	Advice Advice `json:"advice"`
}

// Assembler builds recommendations. Stateless.
type Assembler struct{}

// NewAssembler creates an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble combines a rule outcome with retrieved context. Chunk
// sequences may be empty, either on the auto-approved short circuit or
// when a retriever degraded, and their order is preserved exactly as the
// retrievers ranked them.
func (a *Assembler) Assemble(req *request.ExtensionRequest, outcome rules.Outcome, policyChunks, precedentChunks []retrieval.Chunk) Recommendation {
	// Copy the slices so later caller mutations cannot reach into the
	// recommendation; identical inputs always yield identical output.
	policy := make([]retrieval.Chunk, len(policyChunks))
	copy(policy, policyChunks)
	precedent := make([]retrieval.Chunk, len(precedentChunks))
	copy(precedent, precedentChunks)

	return Recommendation{
		Request:         req,
		Outcome:         outcome,
		PolicyChunks:    policy,
		PrecedentChunks: precedent,
		Advice:          Score(policy, precedent),
	}
}
