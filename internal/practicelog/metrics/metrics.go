package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the practice claim log.
type Metrics struct {
	EntriesLogged    prometheus.Counter
	EntriesModerated prometheus.Counter
	LogDuration      prometheus.Histogram
}

// New creates a Metrics instance with all practice log metrics registered.
func New() *Metrics {
	return &Metrics{
		EntriesLogged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agritrust_practice_entries_logged_total",
			Help: "Total number of practice entries appended",
		}),
		EntriesModerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agritrust_practice_entries_moderated_total",
			Help: "Total number of moderation decisions applied",
		}),
		LogDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agritrust_practice_log_duration_seconds",
			Help:    "Duration of Log operations including the verification check",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementEntriesLogged records a successful append.
func (m *Metrics) IncrementEntriesLogged() {
	m.EntriesLogged.Inc()
}

// IncrementEntriesModerated records an applied moderation decision.
func (m *Metrics) IncrementEntriesModerated() {
	m.EntriesModerated.Inc()
}

// ObserveLog records the duration of a Log operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveLog(start time.Time) {
	m.LogDuration.Observe(time.Since(start).Seconds())
}
