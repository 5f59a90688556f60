package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the bridge's device and command activity.
type Metrics struct {
	commandsTotal    *prometheus.CounterVec
	pollCyclesTotal  *prometheus.CounterVec
	claimsTotal      *prometheus.CounterVec
	connectsTotal    *prometheus.CounterVec
	connectedDevices prometheus.Gauge
}

// NewMetrics creates and registers the bridge metrics.
//
// Parameters:
//   - reg: Registry to register with (the API server exposes it)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emberbridge_commands_total",
			Help: "Control commands processed, by kind and outcome",
		}, []string{"kind", "outcome"}),
		pollCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emberbridge_poll_cycles_total",
			Help: "Device poll cycles, by outcome",
		}, []string{"outcome"}),
		claimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emberbridge_ownership_claims_total",
			Help: "Ownership claim attempts, by outcome",
		}, []string{"outcome"}),
		connectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emberbridge_connect_attempts_total",
			Help: "Bluetooth connect attempts, by outcome",
		}, []string{"outcome"}),
		connectedDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emberbridge_connected_devices",
			Help: "Devices currently connected to this instance",
		}),
	}

	reg.MustRegister(
		m.commandsTotal,
		m.pollCyclesTotal,
		m.claimsTotal,
		m.connectsTotal,
		m.connectedDevices,
	)
	return m
}

func (m *Metrics) commandProcessed(kind, outcome string) {
	m.commandsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) pollCycle(outcome string) {
	m.pollCyclesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) claimAttempt(outcome string) {
	m.claimsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) connectAttempt(outcome string) {
	m.connectsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) deviceConnected()    { m.connectedDevices.Inc() }
func (m *Metrics) deviceDisconnected() { m.connectedDevices.Dec() }
