package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	NAMESPACE = "jwks_client"

	// ResultSuccess indicates a successful fetch
	ResultSuccess = "success"
	// ResultSourceError indicates the source could not be read
	ResultSourceError = "source_error"
	// ResultParseError indicates the fetched document was rejected
	ResultParseError = "parse_error"

	// LookupHit is a kid found in the cached snapshot
	LookupHit = "hit"
	// LookupRefreshedHit is a kid found only after a refresh
	LookupRefreshedHit = "refreshed_hit"
	// LookupNotFound is a kid absent after a refresh
	LookupNotFound = "not_found"
	// LookupError is a lookup that failed on fetch or parse
	LookupError = "error"
)

var (
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: NAMESPACE,
		Name:      "fetch_total",
		Help:      "number of key set fetches, by result",
	}, []string{"result"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: NAMESPACE,
		Name:      "fetch_duration_seconds",
		Help:      "duration of key set fetch and parse in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})

	LookupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: NAMESPACE,
		Name:      "lookup_total",
		Help:      "number of key lookups, by result",
	}, []string{"result"})

	SkippedKeysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: NAMESPACE,
		Name:      "skipped_keys_total",
		Help:      "number of key set entries dropped while parsing",
	})

	RefreshRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: NAMESPACE,
		Name:      "refresh_rate_limited_total",
		Help:      "number of refreshes on unknown kid suppressed by the minimum refresh interval",
	})
)
