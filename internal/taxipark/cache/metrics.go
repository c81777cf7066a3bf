package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "taxipark_report_cache_total",
	Help: "Report cache lookups grouped by outcome.",
}, []string{"result"})
