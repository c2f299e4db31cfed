package optimistic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mutationsTotal counts settled mutations by kind and terminal phase
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrsync",
		Subsystem: "optimistic",
		Name:      "mutations_total",
		Help:      "Settled optimistic mutations by kind and phase",
	}, []string{"kind", "phase"})

	// staleFetchesTotal counts fetched views dropped for being older than
	// the published one
	staleFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hrsync",
		Subsystem: "optimistic",
		Name:      "stale_fetches_total",
		Help:      "Fetched views discarded because a newer revision was already published",
	})
)
