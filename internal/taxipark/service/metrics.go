package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taxipark_query_duration_seconds",
		Help:    "Time spent answering an analytics query, including the park lookup.",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taxipark_queries_total",
		Help: "Analytics queries grouped by outcome.",
	}, []string{"query", "result"})
)
