package adjudicate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ezextender/extenderd/internal/precedent"
	"github.com/ezextender/extenderd/internal/retrieval"
	"github.com/ezextender/extenderd/internal/rules"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultInvalid = "invalid"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extenderd",
			Subsystem: "adjudicate",
			Name:      "submissions_total",
			Help:      "Extension request submissions by result and rule decision",
		},
		[]string{"result", "decision"},
	)

	reviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extenderd",
			Subsystem: "adjudicate",
			Name:      "reviews_total",
			Help:      "Review verdicts by decision and result",
		},
		[]string{"decision", "result"},
	)

	retrievalDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extenderd",
			Subsystem: "adjudicate",
			Name:      "retrieval_degraded_total",
			Help:      "Recommendations assembled with a degraded retrieval source",
		},
		[]string{"source"},
	)
)

func observeSubmission(result string, dec rules.Decision) {
	submissionsTotal.WithLabelValues(result, string(dec)).Inc()
}

func observeReview(dec precedent.VerdictDecision, result string) {
	reviewsTotal.WithLabelValues(string(dec), result).Inc()
}

func observeDegraded(source retrieval.Source) {
	retrievalDegradedTotal.WithLabelValues(string(source)).Inc()
}
