package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline and reporting metrics, exposed on /metrics.
var (
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_events_ingested_total",
		Help: "Events accepted by the ingestion pipeline.",
	})

	EventsSampledOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_events_sampled_out_total",
		Help: "Events dropped by edge sampling before forwarding.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_events_dropped_total",
		Help: "Events lost to queue overflow or exhausted store retries.",
	})

	SessionAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_session_anomalies_total",
		Help: "Late events discarded because their session had ended.",
	})

	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analytics_report_generation_seconds",
		Help:    "Wall time of report generation runs.",
		Buckets: prometheus.DefBuckets,
	})

	AlertDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_alert_delivery_failures_total",
		Help: "Alert sink deliveries that failed.",
	})
)
