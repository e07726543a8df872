package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "farmtrack", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "farmtrack", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// ProfileFallbacks counts resilient-policy operations served by the local store.
	ProfileFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "farmtrack", Name: "profile_fallbacks_total", Help: "Profile saves/loads that fell back to the local store."},
		[]string{"op"},
	)
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "farmtrack", Name: "api_requests_total", Help: "API requests by route and status class."},
		[]string{"route", "status"},
	)
	IdentityRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "farmtrack", Name: "identity_rejected_total", Help: "Requests rejected because no caller identity could be resolved."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ProfileFallbacks)
	reg.MustRegister(APIRequests)
	reg.MustRegister(IdentityRejected)
}
