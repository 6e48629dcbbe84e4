package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity registry.
type Metrics struct {
	FarmersRegistered prometheus.Counter
	FarmersVerified   prometheus.Counter
	FeesWithdrawn     prometheus.Counter
	RegisterDuration  prometheus.Histogram
	VerifyDuration    prometheus.Histogram
}

// New creates a Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		FarmersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agritrust_farmers_registered_total",
			Help: "Total number of farmer profiles created",
		}),
		FarmersVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agritrust_farmers_verified_total",
			Help: "Total number of verification decisions applied",
		}),
		FeesWithdrawn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agritrust_fees_withdrawn_total",
			Help: "Total number of fee withdrawals",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agritrust_register_duration_seconds",
			Help:    "Duration of Register operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agritrust_verify_duration_seconds",
			Help:    "Duration of Verify operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementFarmersRegistered records a successful registration.
func (m *Metrics) IncrementFarmersRegistered() {
	m.FarmersRegistered.Inc()
}

// IncrementFarmersVerified records an applied verification decision.
func (m *Metrics) IncrementFarmersVerified() {
	m.FarmersVerified.Inc()
}

// IncrementFeesWithdrawn records a successful withdrawal.
func (m *Metrics) IncrementFeesWithdrawn() {
	m.FeesWithdrawn.Inc()
}

// ObserveRegister records the duration of a Register operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

// ObserveVerify records the duration of a Verify operation.
func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}
