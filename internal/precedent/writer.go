package precedent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ezextender/extenderd/internal/clock"
	"github.com/ezextender/extenderd/internal/request"
	"github.com/ezextender/extenderd/internal/vectorstore"
)

var tracer = otel.Tracer("extenderd.precedent")

// ErrPersistence indicates the verdict was accepted but could not be
// stored as a precedent. Callers must surface it distinctly so the
// write can be retried or escalated rather than silently dropped.
var ErrPersistence = errors.New("precedent persistence failed")

// Record is one persisted precedent case.
type Record struct {
	ID         string          `json:"id"`
	RequestID  string          `json:"request_id"`
	Text       string          `json:"text"`
	Decision   VerdictDecision `json:"decision"`
	ReviewerID string          `json:"reviewer_id"`
	Rationale  string          `json:"rationale"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Writer persists review verdicts into the precedent collection.
type Writer struct {
	store  vectorstore.Store
	clk    clock.Clock
	stats  *Stats
	logger *zap.Logger
}

// NewWriter creates a Writer. stats may be nil to disable the sidecar.
func NewWriter(store vectorstore.Store, clk clock.Clock, stats *Stats, logger *zap.Logger) (*Writer, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, clk: clk, stats: stats, logger: logger}, nil
}

// Write validates the verdict and appends a new precedent record with
// a fresh ID. Each call writes exactly one record: re-submitting the
// same verdict yields a second, distinct record.
func (w *Writer) Write(ctx context.Context, req *request.ExtensionRequest, verdict ReviewVerdict) (*Record, error) {
	ctx, span := tracer.Start(ctx, "precedent.Write")
	defer span.End()

	if req == nil {
		return nil, fmt.Errorf("%w: request is required", ErrInvalidVerdict)
	}
	if err := verdict.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid verdict")
		return nil, err
	}

	rec := &Record{
		ID:         uuid.NewString(),
		RequestID:  req.ID,
		Text:       caseText(req, verdict),
		Decision:   verdict.Decision,
		ReviewerID: verdict.ReviewerID,
		Rationale:  verdict.Rationale,
		RecordedAt: w.clk.Now(),
	}
	span.SetAttributes(
		attribute.String("precedent.id", rec.ID),
		attribute.String("precedent.decision", string(rec.Decision)),
	)

	doc := vectorstore.Document{
		ID:      rec.ID,
		Content: rec.Text,
		Metadata: map[string]any{
			"request_id":      rec.RequestID,
			"request_summary": req.Summary(),
			"verdict":         string(rec.Decision),
			"reviewer":        rec.ReviewerID,
			"rationale":       rec.Rationale,
			"tag":             string(request.TagReason(req.Justification)),
			"recorded_at":     rec.RecordedAt.UTC().Format(time.RFC3339),
		},
	}

	if err := w.store.EnsureCollection(ctx, vectorstore.CollectionPrecedent); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ensure collection")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if _, err := w.store.Upsert(ctx, vectorstore.CollectionPrecedent, []vectorstore.Document{doc}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert")
		w.logger.Error("precedent write failed",
			zap.String("request_id", rec.RequestID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Stats are advisory: a sidecar failure never fails the write.
	if w.stats != nil {
		if err := w.stats.Increment(request.TagReason(req.Justification), rec.Decision); err != nil {
			w.logger.Warn("precedent stats update failed", zap.Error(err))
		}
	}

	w.logger.Info("precedent recorded",
		zap.String("precedent_id", rec.ID),
		zap.String("request_id", rec.RequestID),
		zap.String("decision", string(rec.Decision)),
		zap.String("reviewer", rec.ReviewerID))
	span.SetStatus(codes.Ok, "")
	return rec, nil
}

// caseText is the embedding input for a precedent: the request facts
// plus the reviewer's reasoning, so future retrieval matches on both.
func caseText(req *request.ExtensionRequest, verdict ReviewVerdict) string {
	return req.CanonicalText() + "\nverdict: " + string(verdict.Decision) + "\nrationale: " + verdict.Rationale
}
