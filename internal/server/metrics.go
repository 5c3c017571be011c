package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starlight_report_builds_total",
			Help: "Total number of report builds by outcome",
		},
		[]string{"outcome"},
	)

	ReportBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "starlight_report_build_duration_seconds",
			Help:    "Time taken to fetch and build a device report",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	TestCasesIncluded = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "starlight_report_test_cases",
			Help:    "Number of test cases included in a built report",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	DeviceListFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starlight_device_list_fetches_total",
			Help: "Total number of device list requests to STAR by status",
		},
		[]string{"status"},
	)
)
