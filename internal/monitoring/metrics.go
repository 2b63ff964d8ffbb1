package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	ChargesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_charges_created_total",
			Help: "Total number of charges created by routing mode",
		},
		[]string{"mode"},
	)
	ChargeReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_charge_idempotent_replays_total",
			Help: "Charge requests answered from the idempotency store",
		},
	)
	AuthorizationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_authorization_decisions_total",
			Help: "Tenant access decisions by granting path",
		},
		[]string{"decision"},
	)
	StatusSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_syncs_total",
			Help: "Connected account status syncs by resulting status",
		},
		[]string{"status"},
	)
	ProviderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_call_duration_seconds",
			Help:    "Duration of payment provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)
)

func InitMetrics() {
	collectors := map[string]prometheus.Collector{
		"ChargesCreated":         ChargesCreated,
		"ChargeReplays":          ChargeReplays,
		"AuthorizationDecisions": AuthorizationDecisions,
		"StatusSyncs":            StatusSyncs,
		"ProviderCallDuration":   ProviderCallDuration,
	}
	for name, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			log.Error().Err(err).Msgf("Failed to register %s metric", name)
		}
	}
}
