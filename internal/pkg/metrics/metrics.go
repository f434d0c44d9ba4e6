package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Self-instrumentation of the exporter. These describe the exporter process,
// the vehicle series are produced by the snapshot collector.
var (
	// PollDuration records how long a poll attempt took.
	// outcome: success, skipped (vehicle not online) or the error kind.
	PollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tesla_exporter_poll_duration_seconds",
			Help:    "Duration of poll attempts against the Fleet API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// TokenRefreshTotal counts refresh calls to the token endpoint.
	TokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tesla_exporter_token_refresh_total",
			Help: "Total number of OAuth2 token refresh attempts by result.",
		},
		[]string{"result"}, // result: success or the error kind
	)

	// SinkPublishTotal counts report deliveries to the optional sinks.
	SinkPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tesla_exporter_sink_publish_total",
			Help: "Total number of reports handed to a sink by result.",
		},
		[]string{"sink", "result"}, // result: success/failed
	)
)

// MustRegister adds the exporter metrics to reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(PollDuration, TokenRefreshTotal, SinkPublishTotal)
}

// ObservePoll records a finished poll attempt.
func ObservePoll(outcome string, d time.Duration) {
	PollDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveTokenRefresh counts a token refresh attempt.
func ObserveTokenRefresh(result string) {
	TokenRefreshTotal.WithLabelValues(result).Inc()
}

// ObserveSinkPublish counts a sink delivery.
func ObserveSinkPublish(sink string, err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	SinkPublishTotal.WithLabelValues(sink, result).Inc()
}
