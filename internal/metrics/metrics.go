// Package metrics exposes Prometheus collectors for the conversation protocol.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveChannels tracks open conversation channels.
	ActiveChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "medisur",
			Subsystem: "session",
			Name:      "active_channels",
			Help:      "Number of open conversation channels",
		},
	)

	// ChannelRejections counts connection attempts refused at the boundary.
	ChannelRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medisur",
			Subsystem: "session",
			Name:      "channel_rejections_total",
			Help:      "Connection attempts closed with a policy violation",
		},
		[]string{"reason"},
	)

	// RoundsTotal counts processed inbound units by outcome.
	RoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medisur",
			Subsystem: "session",
			Name:      "rounds_total",
			Help:      "Inbound units processed, by outcome",
		},
		[]string{"outcome"},
	)

	// OracleDuration measures external oracle latency.
	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medisur",
			Subsystem: "triage",
			Name:      "oracle_duration_seconds",
			Help:      "Oracle call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"call", "status"},
	)

	// TranscriptionsTotal counts audio transcriptions by status.
	TranscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medisur",
			Subsystem: "normalizer",
			Name:      "transcriptions_total",
			Help:      "Audio transcriptions, by status",
		},
		[]string{"status"},
	)

	// HandoffsTotal counts facility notifications by result.
	HandoffsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medisur",
			Subsystem: "handoff",
			Name:      "dispatch_total",
			Help:      "Facility handoffs, by result",
		},
		[]string{"result"},
	)

	// FacilityUp reports the last health probe per facility.
	FacilityUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "medisur",
			Subsystem: "facilities",
			Name:      "up",
			Help:      "1 if the facility answered its last health probe",
		},
		[]string{"facility"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
