package object

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imgopt_cache_hits_total",
		Help: "Requests served from the local content store.",
	})
	upstreamFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imgopt_upstream_fetches_total",
		Help: "Upstream GETs issued by the pipeline.",
	})
	transformFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imgopt_transform_failures_total",
		Help: "Transforms that fell back to the base payload.",
	})
)
