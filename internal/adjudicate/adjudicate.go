// Package adjudicate orchestrates the request pipeline: validate,
// apply the deadline rule, retrieve context for borderline cases and
// assemble the reviewer package, then record the eventual verdict.
package adjudicate

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ezextender/extenderd/internal/clock"
	"github.com/ezextender/extenderd/internal/decision"
	"github.com/ezextender/extenderd/internal/precedent"
	"github.com/ezextender/extenderd/internal/request"
	"github.com/ezextender/extenderd/internal/retrieval"
	"github.com/ezextender/extenderd/internal/rules"
)

var tracer = otel.Tracer("extenderd.adjudicate")

// ErrUnknownRequest is returned when a review references a request ID
// the service has never seen.
var ErrUnknownRequest = errors.New("unknown request")

// DefaultTopK is how many chunks each retriever contributes to a
// recommendation unless configured otherwise.
const DefaultTopK = 4

// DefaultPendingTTL bounds how long an unreviewed request stays in the
// registry. Reviewed requests leave immediately; this covers the rest
// (auto-approved and abandoned submissions) so the registry cannot
// grow without bound.
const DefaultPendingTTL = 24 * time.Hour

// Retriever fetches ranked context chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.Chunk, error)
}

// VerdictWriter persists a human verdict as a precedent.
type VerdictWriter interface {
	Write(ctx context.Context, req *request.ExtensionRequest, verdict precedent.ReviewVerdict) (*precedent.Record, error)
}

// Service runs the adjudication pipeline. Safe for concurrent use:
// every submission is independent, and the only shared state is the
// pending-request registry.
type Service struct {
	clk        clock.Clock
	evaluator  *rules.Evaluator
	assembler  *decision.Assembler
	policy     Retriever
	precedent  Retriever
	writer     VerdictWriter
	topK       int
	pendingTTL time.Duration
	logger     *zap.Logger

	mu      sync.RWMutex
	pending map[string]pendingEntry
}

type pendingEntry struct {
	req      *request.ExtensionRequest
	storedAt time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTopK overrides the per-retriever chunk count.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithPendingTTL overrides how long unreviewed requests are retained.
func WithPendingTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pendingTTL = d
		}
	}
}

// WithClock overrides the clock, mainly for demos and tests.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		if clk != nil {
			s.clk = clk
		}
	}
}

// NewService wires the pipeline. policy and precedentRetriever may be
// the real vector-backed retrievers or fakes.
func NewService(policy, precedentRetriever Retriever, writer VerdictWriter, logger *zap.Logger, opts ...Option) (*Service, error) {
	if policy == nil || precedentRetriever == nil {
		return nil, errors.New("both retrievers are required")
	}
	if writer == nil {
		return nil, errors.New("verdict writer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		clk:        clock.System(),
		evaluator:  rules.NewEvaluator(logger),
		assembler:  decision.NewAssembler(),
		policy:     policy,
		precedent:  precedentRetriever,
		writer:     writer,
		topK:       DefaultTopK,
		pendingTTL: DefaultPendingTTL,
		logger:     logger,
		pending:    make(map[string]pendingEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submission carries the raw fields of an incoming request.
type Submission struct {
	Requester         string `json:"requester"`
	OriginalDeadline  string `json:"original_deadline"`
	RequestedDeadline string `json:"requested_deadline"`
	Justification     string `json:"justification"`
}

// Submit validates a submission and runs it through the pipeline.
// Invalid submissions return request.ErrInvalidRequest before any rule
// or retrieval work happens.
func (s *Service) Submit(ctx context.Context, sub Submission) (decision.Recommendation, error) {
	ctx, span := tracer.Start(ctx, "adjudicate.Submit")
	defer span.End()

	req, err := request.New(sub.Requester, sub.OriginalDeadline, sub.RequestedDeadline, sub.Justification, s.clk.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		observeSubmission(resultInvalid, "")
		return decision.Recommendation{}, err
	}
	span.SetAttributes(attribute.String("request.id", req.ID))

	outcome := s.evaluator.Evaluate(req, s.clk.Now())
	span.SetAttributes(
		attribute.String("rule.decision", string(outcome.Decision)),
		attribute.Float64("rule.delta_hours", outcome.Delta.Hours()),
	)

	s.remember(req)

	// Auto-approved requests bypass retrieval entirely and never
	// become precedents.
	if outcome.AutoApproved() {
		s.logger.Info("request auto approved",
			zap.String("request_id", req.ID),
			zap.Duration("delta", outcome.Delta))
		observeSubmission(resultSuccess, outcome.Decision)
		span.SetStatus(codes.Ok, "")
		return s.assembler.Assemble(req, outcome, nil, nil), nil
	}

	policyChunks, precedentChunks := s.retrieveContext(ctx, req)

	rec := s.assembler.Assemble(req, outcome, policyChunks, precedentChunks)
	s.logger.Info("request routed to review",
		zap.String("request_id", req.ID),
		zap.Duration("delta", outcome.Delta),
		zap.Int("policy_chunks", len(policyChunks)),
		zap.Int("precedent_chunks", len(precedentChunks)),
		zap.String("advice", string(rec.Advice.Lean)))
	observeSubmission(resultSuccess, outcome.Decision)
	span.SetStatus(codes.Ok, "")
	return rec, nil
}

// retrieveContext queries both collections concurrently. A failed or
// timed-out retriever degrades to an empty slice: the reviewer still
// gets the request and rule outcome, just with less context.
func (s *Service) retrieveContext(ctx context.Context, req *request.ExtensionRequest) (policy, precedentChunks []retrieval.Chunk) {
	query := req.CanonicalText()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		policy = s.retrieve(ctx, s.policy, retrieval.SourcePolicy, req.ID, query)
	}()
	go func() {
		defer wg.Done()
		precedentChunks = s.retrieve(ctx, s.precedent, retrieval.SourcePrecedent, req.ID, query)
	}()
	wg.Wait()
	return policy, precedentChunks
}

func (s *Service) retrieve(ctx context.Context, r Retriever, source retrieval.Source, requestID, query string) []retrieval.Chunk {
	chunks, err := r.Retrieve(ctx, query, s.topK)
	if err != nil {
		s.logger.Warn("retrieval degraded",
			zap.String("source", string(source)),
			zap.String("request_id", requestID),
			zap.Error(err))
		observeDegraded(source)
		return nil
	}
	return chunks
}

// Review records a human verdict for a previously submitted request.
// Persistence failures surface as precedent.ErrPersistence so callers
// can retry or escalate; the verdict itself was valid.
func (s *Service) Review(ctx context.Context, requestID string, verdict precedent.ReviewVerdict) (*precedent.Record, error) {
	ctx, span := tracer.Start(ctx, "adjudicate.Review")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", requestID))

	req := s.lookup(requestID)
	if req == nil {
		span.SetStatus(codes.Error, "unknown request")
		observeReview(verdict.Decision, resultInvalid)
		return nil, ErrUnknownRequest
	}
	if verdict.Timestamp.IsZero() {
		verdict.Timestamp = s.clk.Now()
	}

	rec, err := s.writer.Write(ctx, req, verdict)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write verdict")
		observeReview(verdict.Decision, resultError)
		return nil, err
	}
	s.forget(requestID)
	observeReview(verdict.Decision, resultSuccess)
	span.SetStatus(codes.Ok, "")
	return rec, nil
}

// Lookup returns a previously submitted request, or nil.
func (s *Service) Lookup(requestID string) *request.ExtensionRequest {
	return s.lookup(requestID)
}

func (s *Service) remember(req *request.ExtensionRequest) {
	now := s.clk.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.pending {
		if now.Sub(entry.storedAt) > s.pendingTTL {
			delete(s.pending, id)
		}
	}
	s.pending[req.ID] = pendingEntry{req: req, storedAt: now}
}

// forget drops a reviewed request so the registry only holds requests
// that may still need a verdict.
func (s *Service) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

func (s *Service) lookup(id string) *request.ExtensionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.pending[id]
	if !ok || s.clk.Now().Sub(entry.storedAt) > s.pendingTTL {
		return nil
	}
	return entry.req
}

// Now reports the service clock, for surfaces that echo it back.
func (s *Service) Now() time.Time {
	return s.clk.Now()
}
