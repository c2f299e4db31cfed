package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcomes recorded in metrics.
const (
	outcomeOK        = "ok"
	outcomeInjected  = "injected_failure"
	outcomeCancelled = "cancelled"
	outcomeTimeout   = "timeout"
	outcomeError     = "error"
)

var (
	// callsTotal counts simulated calls by op, kind and outcome
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrsync",
		Subsystem: "transport",
		Name:      "calls_total",
		Help:      "Simulated API calls by op, kind and outcome",
	}, []string{"op", "kind", "outcome"})

	// delaySeconds tracks injected latency
	delaySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hrsync",
		Subsystem: "transport",
		Name:      "delay_seconds",
		Help:      "Injected latency per simulated call",
		Buckets:   prometheus.LinearBuckets(0.2, 0.2, 6), // 200ms to 1.2s
	}, []string{"kind"})
)
