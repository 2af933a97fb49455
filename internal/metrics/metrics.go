// Package metrics provides Prometheus metrics for ingestion and matching.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceRunsTotal tracks source runs by final report status
	SourceRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarships",
			Subsystem: "ingest",
			Name:      "source_runs_total",
			Help:      "Total number of source runs by status",
		},
		[]string{"source", "status"},
	)

	// ItemsTotal tracks ingested items by outcome (added, updated, flagged)
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarships",
			Subsystem: "ingest",
			Name:      "items_total",
			Help:      "Total number of ingested items by outcome",
		},
		[]string{"source", "outcome"},
	)

	SourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scholarships",
			Subsystem: "ingest",
			Name:      "source_duration_seconds",
			Help:      "Duration of a single source run in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"source"},
	)

	// LinkChecksTotal tracks link verification results
	LinkChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarships",
			Subsystem: "links",
			Name:      "checks_total",
			Help:      "Total number of link checks by result",
		},
		[]string{"result"},
	)

	// MatchRequestsTotal tracks match responses by kind (ranked, placeholder, error)
	MatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarships",
			Subsystem: "match",
			Name:      "requests_total",
			Help:      "Total number of match requests by result",
		},
		[]string{"result"},
	)

	// CandidateSourceDuration tracks the latency of each candidate source
	CandidateSourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scholarships",
			Subsystem: "match",
			Name:      "source_duration_seconds",
			Help:      "Duration of candidate source fetches in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source", "status"},
	)
)
