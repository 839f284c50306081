package cacherefresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK         = "ok"
	outcomeSkipped    = "skipped"
	outcomeSuperseded = "superseded"
	outcomeError      = "error"
	outcomeStale      = "stale"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "debtorkeeper_cache_hits_total",
		Help: "Search scopes served from the ID cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "debtorkeeper_cache_misses_total",
		Help: "Search scopes not found in the ID cache.",
	})
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debtorkeeper_cache_refresh_total",
		Help: "Cache refreshes by trigger kind and outcome.",
	}, []string{"kind", "outcome"})
	refreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "debtorkeeper_cache_refresh_duration_seconds",
		Help:    "Duration of completed cache refreshes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)
