// Package metrics exposes prometheus counters and histograms for the
// conversation and reminder flows.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	inboundTotal    *prometheus.CounterVec
	bookingsTotal   *prometheus.CounterVec
	remindersTotal  *prometheus.CounterVec
	inboundLatency  *prometheus.HistogramVec
	broadcastsTotal *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "conversation",
			Name:      "inbound_total",
			Help:      "Inbound webhook messages by claimed flow and status",
		}, []string{"flow", "status"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by result",
		}, []string{"result"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "reminder",
			Name:      "sweep_total",
			Help:      "Reminder sweep outcomes per appointment",
		}, []string{"window", "outcome"}),
		inboundLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "carebridge",
			Subsystem: "conversation",
			Name:      "inbound_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"}),
		broadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebridge",
			Subsystem: "conversation",
			Name:      "broadcast_sends_total",
			Help:      "Per-patient outcomes of slot-offer broadcasts",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.bookingsTotal, m.remindersTotal, m.inboundLatency, m.broadcastsTotal)
	return m
}

func (m *Metrics) ObserveInbound(flow, status string, seconds float64) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(flow, status).Inc()
	m.inboundLatency.WithLabelValues(flow).Observe(seconds)
}

func (m *Metrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveReminder(window, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.remindersTotal.WithLabelValues(window, outcome).Add(float64(count))
}

func (m *Metrics) ObserveBroadcast(sent, failed int) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.broadcastsTotal.WithLabelValues("sent").Add(float64(sent))
	}
	if failed > 0 {
		m.broadcastsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}
