// Package metrics exposes Prometheus instrumentation for the voice worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Command outcome labels.
const (
	StatusDispatched     = "dispatched"
	StatusDispatchFailed = "dispatch_failed"
	StatusRejected       = "rejected"
	StatusNotConnected   = "not_connected"
)

// VoiceMetrics contains Prometheus metrics for the voice worker.
type VoiceMetrics struct {
	CommandsTotal   *prometheus.CounterVec
	EventsTotal     *prometheus.CounterVec
	ReconnectsTotal prometheus.Counter
	PendingCommands prometheus.Gauge
	PendingLists    prometheus.Gauge
}

// NewVoiceMetrics creates and registers voice worker metrics with the given
// registerer.
func NewVoiceMetrics(registerer prometheus.Registerer) *VoiceMetrics {
	m := &VoiceMetrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ttreg_voice_commands_total",
				Help: "Total number of commands handled by the voice worker",
			},
			[]string{"command", "status"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ttreg_voice_events_total",
				Help: "Total number of events polled from the voice client",
			},
			[]string{"kind"},
		),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ttreg_voice_reconnects_total",
			Help: "Total number of reconnection attempts",
		}),
		PendingCommands: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ttreg_voice_pending_commands",
			Help: "Commands dispatched and awaiting a terminal event",
		}),
		PendingLists: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ttreg_voice_pending_list_requests",
			Help: "List requests awaiting items or grace-window expiry",
		}),
	}

	registerer.MustRegister(
		m.CommandsTotal,
		m.EventsTotal,
		m.ReconnectsTotal,
		m.PendingCommands,
		m.PendingLists,
	)

	return m
}

// ObserveCommand records one command outcome. Nil-safe so the worker can run
// without metrics in tests.
func (m *VoiceMetrics) ObserveCommand(command, status string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, status).Inc()
}

// ObserveEvent records one polled event kind.
func (m *VoiceMetrics) ObserveEvent(kind string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind).Inc()
}

// ObserveReconnect records one reconnection attempt.
func (m *VoiceMetrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.ReconnectsTotal.Inc()
}

// SetPending updates the pending-table gauges.
func (m *VoiceMetrics) SetPending(commands, lists int) {
	if m == nil {
		return
	}
	m.PendingCommands.Set(float64(commands))
	m.PendingLists.Set(float64(lists))
}
