package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movefetch_api_calls_total",
			Help: "Total Movebank direct-read API calls",
		},
		[]string{"entity", "status"},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movefetch_api_latency_seconds",
			Help:    "Direct-read API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	LicenseAcceptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movefetch_license_accepts_total",
			Help: "Total automatic license acceptances",
		},
	)

	RowsExported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movefetch_rows_exported_total",
			Help: "Total data rows written to export files",
		},
		[]string{"table"},
	)
)
