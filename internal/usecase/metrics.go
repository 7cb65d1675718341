package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	accessDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assinaturas",
		Name:      "access_decisions_total",
		Help:      "Access checks by classification and outcome",
	}, []string{"classification", "granted"})

	accessFailOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assinaturas",
		Name:      "access_fail_open_total",
		Help:      "Access checks granted because the subscription store was unavailable",
	})

	accessReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assinaturas",
		Name:      "access_reconciliations_total",
		Help:      "Lapsed subscription records moved to a terminal status during access checks",
	}, []string{"to", "result"})

	billingEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assinaturas",
		Name:      "billing_events_total",
		Help:      "Billing provider webhook deliveries by event type and outcome",
	}, []string{"type", "outcome"})
)
