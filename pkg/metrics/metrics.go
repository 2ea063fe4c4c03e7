package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clubhub"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type and scope."},
		[]string{"limiter", "scope"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type and scope."},
		[]string{"limiter", "scope"},
	)
	ApplicationsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "applications_submitted_total", Help: "Applications received by applicant type."},
		[]string{"type"},
	)
	ApplicationsReviewed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "applications_reviewed_total", Help: "Application reviews by resulting status."},
		[]string{"status"},
	)
	OfferTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "offer_transitions_total", Help: "Marketplace offer state changes by target status."},
		[]string{"status"},
	)
	PaymentsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "payments_recorded_total", Help: "Payments recorded by method."},
		[]string{"method"},
	)
	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "messages_sent_total", Help: "Direct messages sent."},
	)
	EmailDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "email_deliveries_total", Help: "Outgoing email attempts by template and result."},
		[]string{"template", "result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		RateLimitAllowed,
		RateLimitRejected,
		ApplicationsSubmitted,
		ApplicationsReviewed,
		OfferTransitions,
		PaymentsRecorded,
		MessagesSent,
		EmailDeliveries,
	)
}
