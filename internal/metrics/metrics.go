package metrics

import "github.com/prometheus/client_golang/prometheus"

// Result labels shared by the attribution counters.
const (
	ResultCreated           = "created"
	ResultDuplicate         = "duplicate"
	ResultProbableDuplicate = "probable_duplicate"
	ResultNoop              = "noop"
	ResultFailed            = "failed"
)

// Metrics holds the Prometheus collectors for attribution and tracker liveness.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	clicks        *prometheus.CounterVec
	conversions   *prometheus.CounterVec
	heartbeats    prometheus.Counter
	trackerChecks *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		clicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attribution_clicks_total",
				Help: "Total number of redirect clicks by outcome",
			},
			[]string{"result"},
		),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attribution_conversions_total",
				Help: "Total number of conversion signals by transport and outcome",
			},
			[]string{"transport", "result"},
		),
		heartbeats: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_heartbeats_total",
				Help: "Total number of tracker heartbeats accepted",
			},
		),
		trackerChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_checks_total",
				Help: "Total number of tracker liveness checks by deciding method",
			},
			[]string{"method", "installed"},
		),
	}

	reg.MustRegister(m.clicks, m.conversions, m.heartbeats, m.trackerChecks)

	return m
}

// ObserveClick counts one click outcome.
func (m *Metrics) ObserveClick(result string) {
	if m == nil {
		return
	}

	m.clicks.WithLabelValues(result).Inc()
}

// ObserveConversion counts one conversion outcome for a transport.
func (m *Metrics) ObserveConversion(transport, result string) {
	if m == nil {
		return
	}

	m.conversions.WithLabelValues(transport, result).Inc()
}

// ObserveHeartbeat counts one accepted heartbeat.
func (m *Metrics) ObserveHeartbeat() {
	if m == nil {
		return
	}

	m.heartbeats.Inc()
}

// ObserveTrackerCheck counts one liveness decision.
func (m *Metrics) ObserveTrackerCheck(method string, installed bool) {
	if m == nil {
		return
	}

	label := "false"
	if installed {
		label = "true"
	}

	m.trackerChecks.WithLabelValues(method, label).Inc()
}
