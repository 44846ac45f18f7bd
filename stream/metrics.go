package stream

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kleeedolinux/stream.go/stream/transport"
)

// Metrics counts streaming traffic. A nil *Metrics records nothing.
type Metrics struct {
	FramesReceived *prometheus.CounterVec
	FramesSent     *prometheus.CounterVec
	DecodeErrors   prometheus.Counter
	Handshakes     *prometheus.CounterVec
	Disconnects    *prometheus.CounterVec
	Connected      prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stream",
				Subsystem: "client",
				Name:      "frames_received_total",
				Help:      "Inbound frames by envelope kind (channel, global, none, binary)",
			},
			[]string{"kind"},
		),

		FramesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stream",
				Subsystem: "client",
				Name:      "frames_sent_total",
				Help:      "Outbound frames written to the transport by frame type",
			},
			[]string{"type"},
		),

		DecodeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stream",
				Subsystem: "client",
				Name:      "decode_errors_total",
				Help:      "Inbound text frames dropped because they were not valid JSON",
			},
		),

		Handshakes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stream",
				Subsystem: "client",
				Name:      "handshakes_total",
				Help:      "Connection handshakes by result (ok, error)",
			},
			[]string{"result"},
		),

		Disconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stream",
				Subsystem: "client",
				Name:      "disconnects_total",
				Help:      "Connection losses by the task that detected them",
			},
			[]string{"cause"},
		),

		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "stream",
				Subsystem: "client",
				Name:      "connected",
				Help:      "1 while the streaming connection is up",
			},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.FramesReceived,
		m.FramesSent,
		m.DecodeErrors,
		m.Handshakes,
		m.Disconnects,
		m.Connected,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) frameReceived(kind string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) frameSent(t transport.MessageType) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) decodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

func (m *Metrics) handshake(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Handshakes.WithLabelValues("error").Inc()
		return
	}
	m.Handshakes.WithLabelValues("ok").Inc()
	m.Connected.Set(1)
}

func (m *Metrics) disconnected(cause string) {
	if m == nil {
		return
	}
	m.Disconnects.WithLabelValues(cause).Inc()
	m.Connected.Set(0)
}
