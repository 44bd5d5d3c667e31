package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolutions counts redirect resolutions by terminal outcome
// (active, not_found, disabled, not_yet_active, expired, store_error).
var Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "shortspace",
	Name:      "resolutions_total",
	Help:      "Short-code resolutions by outcome.",
}, []string{"outcome"})

// Creations counts short-code creations by result
// (ok, invalid_url, rate_limited, captcha_failed, alias_taken, exhausted, error).
var Creations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "shortspace",
	Name:      "creations_total",
	Help:      "Short-code creation attempts by result.",
}, []string{"result"})

// DestProbes counts destination reachability probes by verdict
// (reachable, unreachable, cached).
var DestProbes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "shortspace",
	Name:      "destination_probes_total",
	Help:      "Destination validation probes by verdict.",
}, []string{"verdict"})
