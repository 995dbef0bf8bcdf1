// Package http provides the HTTP API for extenderd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ezextender/extenderd/internal/adjudicate"
	"github.com/ezextender/extenderd/internal/decision"
	"github.com/ezextender/extenderd/internal/precedent"
	"github.com/ezextender/extenderd/internal/request"
)

// Adjudicator is the pipeline surface the API needs.
type Adjudicator interface {
	Submit(ctx context.Context, sub adjudicate.Submission) (decision.Recommendation, error)
	Review(ctx context.Context, requestID string, verdict precedent.ReviewVerdict) (*precedent.Record, error)
	Lookup(requestID string) *request.ExtensionRequest
}

// Server provides HTTP endpoints for extenderd.
type Server struct {
	echo    *echo.Echo
	service Adjudicator
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is requests per second per client IP; 0 disables.
	RateLimit float64
}

// NewServer creates a new HTTP server.
func NewServer(service Adjudicator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("adjudicator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 8080}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/requests", s.handleSubmit)
	v1.GET("/requests/:id", s.handleGetRequest)
	v1.POST("/reviews", s.handleReview)
}

// ReviewBody is the request body for POST /api/v1/reviews.
type ReviewBody struct {
	RequestID  string `json:"request_id"`
	Decision   string `json:"decision"`
	ReviewerID string `json:"reviewer_id"`
	Rationale  string `json:"rationale"`
}

// ReviewResponse is the response body for POST /api/v1/reviews.
type ReviewResponse struct {
	VerdictRecorded bool   `json:"verdict_recorded"`
	PrecedentID     string `json:"precedent_id,omitempty"`
	Error           string `json:"error,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleSubmit runs an extension request through the pipeline and
// returns the full recommendation.
func (s *Server) handleSubmit(c echo.Context) error {
	var sub adjudicate.Submission
	if err := c.Bind(&sub); err != nil {
		s.logger.Warn("invalid submission body", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, err := s.service.Submit(c.Request().Context(), sub)
	if err != nil {
		if errors.Is(err, request.ErrInvalidRequest) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("submission failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "submission failed")
	}

	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleGetRequest(c echo.Context) error {
	req := s.service.Lookup(c.Param("id"))
	if req == nil {
		return echo.NewHTTPError(http.StatusNotFound, "request not found")
	}
	return c.JSON(http.StatusOK, req)
}

// handleReview records a human verdict. A persistence failure is a
// distinct outcome: the verdict was valid but not recorded, and the
// caller must retry or escalate.
func (s *Server) handleReview(c echo.Context) error {
	var body ReviewBody
	if err := c.Bind(&body); err != nil {
		s.logger.Warn("invalid review body", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.RequestID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "request_id is required")
	}

	dec, err := precedent.ParseDecision(body.Decision)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	verdict := precedent.ReviewVerdict{
		Decision:   dec,
		ReviewerID: body.ReviewerID,
		Rationale:  body.Rationale,
	}

	rec, err := s.service.Review(c.Request().Context(), body.RequestID, verdict)
	switch {
	case errors.Is(err, adjudicate.ErrUnknownRequest):
		return echo.NewHTTPError(http.StatusNotFound, "request not found")
	case errors.Is(err, precedent.ErrInvalidVerdict):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, precedent.ErrPersistence):
		s.logger.Error("verdict not persisted", zap.String("request_id", body.RequestID), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, ReviewResponse{
			VerdictRecorded: false,
			Error:           "persistence_error",
		})
	case err != nil:
		s.logger.Error("review failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "review failed")
	}

	return c.JSON(http.StatusOK, ReviewResponse{
		VerdictRecorded: true,
		PrecedentID:     rec.ID,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
