package msig

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	routeRelay  = "relay"
	routeDirect = "direct"
)

var (
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safetx_batches_total",
		Help: "Safe transactions built from the prepared queue.",
	})
	signaturesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safetx_signatures_total",
		Help: "Owner signatures attached to Safe transactions.",
	})
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetx_submissions_total",
			Help: "Safe transaction submissions by route and outcome.",
		},
		[]string{"route", "result"},
	)
)
