// Package reviewbus consumes reviewer verdicts from NATS.
//
// Reviewer tooling publishes verdicts to a subject instead of calling
// the HTTP API directly; the bus feeds them into the same pipeline. A
// verdict that cannot be persisted is republished to a dead-letter
// subject so it can be retried or escalated, never dropped.
package reviewbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ezextender/extenderd/internal/adjudicate"
	"github.com/ezextender/extenderd/internal/precedent"
)

const (
	// DefaultSubject is where reviewer tooling publishes verdicts.
	DefaultSubject = "reviews.verdict"

	// deadLetterSuffix is appended to the subject for failed writes.
	deadLetterSuffix = ".dlq"

	handleTimeout = 30 * time.Second
)

// VerdictMessage is the wire format on the verdict subject.
type VerdictMessage struct {
	RequestID  string `json:"request_id"`
	Decision   string `json:"decision"`
	ReviewerID string `json:"reviewer_id"`
	Rationale  string `json:"rationale"`
}

// Reviewer records a verdict for a request.
type Reviewer interface {
	Review(ctx context.Context, requestID string, verdict precedent.ReviewVerdict) (*precedent.Record, error)
}

// Publisher publishes to a subject. Satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Consumer subscribes to the verdict subject and records verdicts.
type Consumer struct {
	service Reviewer
	pub     Publisher
	subject string
	logger  *zap.Logger
	sub     *nats.Subscription
}

// NewConsumer creates a Consumer. pub is used for dead-letter
// publishing and is normally the same NATS connection.
func NewConsumer(service Reviewer, pub Publisher, subject string, logger *zap.Logger) (*Consumer, error) {
	if service == nil {
		return nil, errors.New("reviewer service is required")
	}
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{service: service, pub: pub, subject: subject, logger: logger}, nil
}

// Start subscribes on conn. Messages are handled sequentially in the
// subscription callback; verdict volume is human-scale.
func (c *Consumer) Start(conn *nats.Conn) error {
	sub, err := conn.Subscribe(c.subject, func(msg *nats.Msg) {
		c.Handle(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}
	c.sub = sub
	c.logger.Info("review bus subscribed", zap.String("subject", c.subject))
	return nil
}

// Stop drains the subscription.
func (c *Consumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Drain()
}

// Handle processes one verdict payload. Exported for tests and for
// callers that receive messages through other means.
func (c *Consumer) Handle(data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	var msg VerdictMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("undecodable verdict message", zap.Error(err))
		return
	}

	dec, err := precedent.ParseDecision(msg.Decision)
	if err != nil {
		c.logger.Warn("invalid verdict decision",
			zap.String("request_id", msg.RequestID),
			zap.String("decision", msg.Decision))
		return
	}

	verdict := precedent.ReviewVerdict{
		Decision:   dec,
		ReviewerID: msg.ReviewerID,
		Rationale:  msg.Rationale,
	}

	_, err = c.service.Review(ctx, msg.RequestID, verdict)
	switch {
	case err == nil:
		c.logger.Info("verdict recorded from bus",
			zap.String("request_id", msg.RequestID),
			zap.String("decision", string(dec)))
	case errors.Is(err, precedent.ErrPersistence):
		// The verdict is valid but not stored. Park it on the DLQ so
		// an operator or a redelivery job can replay it.
		c.deadLetter(data, msg.RequestID, err)
	case errors.Is(err, adjudicate.ErrUnknownRequest):
		c.logger.Warn("verdict for unknown request",
			zap.String("request_id", msg.RequestID))
	default:
		c.logger.Error("verdict rejected",
			zap.String("request_id", msg.RequestID),
			zap.Error(err))
	}
}

func (c *Consumer) deadLetter(data []byte, requestID string, cause error) {
	c.logger.Error("verdict not persisted, dead-lettering",
		zap.String("request_id", requestID),
		zap.Error(cause))
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(c.subject+deadLetterSuffix, data); err != nil {
		c.logger.Error("dead-letter publish failed",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
