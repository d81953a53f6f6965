package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Render outcomes recorded in relnotes_renders_total
const (
	resultSuccess      = "success"
	resultInvalid      = "invalid"
	resultFailed       = "failed"
	resultPolishFailed = "polish_failed"
)

var (
	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relnotes_renders_total",
		Help: "Render requests handled by the release notes worker",
	}, []string{"result"})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relnotes_render_duration_seconds",
		Help:    "Time spent rendering release notes, polishing included",
		Buckets: prometheus.DefBuckets,
	})
)
