package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts gate outcomes.
type Metrics struct {
	decisions      *prometheus.CounterVec
	oracleFailures prometheus.Counter
	storeErrors    *prometheus.CounterVec
}

// NewMetrics creates the gate counters and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupgate",
			Name:      "login_decisions_total",
			Help:      "Login decisions by result and deciding source.",
		}, []string{"result", "source"}),
		oracleFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "groupgate",
			Name:      "oracle_failures_total",
			Help:      "Live membership checks that failed and fell back to the store.",
		}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupgate",
			Name:      "store_errors_total",
			Help:      "Membership store failures by operation.",
		}, []string{"operation"}),
	}
}

func (m *Metrics) observeDecision(d Decision) {
	m.decisions.WithLabelValues(d.Result.String(), d.Source.String()).Inc()
}

func (m *Metrics) observeOracleFailure() {
	m.oracleFailures.Inc()
}

func (m *Metrics) observeStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}
