package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RestoresTotal     *prometheus.CounterVec
	SyncsTotal        *prometheus.CounterVec
	LegacyLoginsTotal *prometheus.CounterVec
	LogoutsTotal      prometheus.Counter
}

// New registers the session metrics on the default registry. Construct once
// per process; tests pass a nil *Metrics to the service instead.
func New() *Metrics {
	return &Metrics{
		RestoresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linker_session_restores_total",
			Help: "Session restore attempts by outcome",
		}, []string{"outcome"}),
		SyncsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linker_session_syncs_total",
			Help: "Identity sync exchanges by outcome",
		}, []string{"outcome"}),
		LegacyLoginsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linker_session_legacy_logins_total",
			Help: "Legacy admin password logins by outcome",
		}, []string{"outcome"}),
		LogoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linker_session_logouts_total",
			Help: "Total logouts, explicit or expiry-forced",
		}),
	}
}

func (m *Metrics) ObserveRestore(outcome string) {
	m.RestoresTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSync(outcome string) {
	m.SyncsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLegacyLogin(outcome string) {
	m.LegacyLoginsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementLogouts() {
	m.LogoutsTotal.Inc()
}
