package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

var (
	// upsertsTotal counts upsert operations by collection and result.
	upsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extenderd",
			Subsystem: "vectorstore",
			Name:      "upserts_total",
			Help:      "Total number of upsert operations",
		},
		[]string{"collection", "result"},
	)

	// upsertDuration tracks upsert latency per collection.
	upsertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extenderd",
			Subsystem: "vectorstore",
			Name:      "upsert_duration_seconds",
			Help:      "Duration of upsert operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	// documentsUpserted counts stored documents per collection.
	documentsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extenderd",
			Subsystem: "vectorstore",
			Name:      "documents_upserted_total",
			Help:      "Total number of documents written to the store",
		},
		[]string{"collection"},
	)

	// queriesTotal counts query operations by collection and result.
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extenderd",
			Subsystem: "vectorstore",
			Name:      "queries_total",
			Help:      "Total number of similarity queries",
		},
		[]string{"collection", "result"},
	)

	// queryDuration tracks query latency per collection.
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extenderd",
			Subsystem: "vectorstore",
			Name:      "query_duration_seconds",
			Help:      "Duration of similarity queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	// queryResults tracks result-set sizes per collection.
	queryResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extenderd",
			Subsystem: "vectorstore",
			Name:      "query_results",
			Help:      "Number of matches returned per query",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
		[]string{"collection"},
	)
)

func observeUpsert(collection, result string, start time.Time, docs int) {
	upsertsTotal.WithLabelValues(collection, result).Inc()
	upsertDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())
	if docs > 0 {
		documentsUpserted.WithLabelValues(collection).Add(float64(docs))
	}
}

func observeQuery(collection, result string, start time.Time, results int) {
	queriesTotal.WithLabelValues(collection, result).Inc()
	queryDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())
	if result == resultSuccess {
		queryResults.WithLabelValues(collection).Observe(float64(results))
	}
}
