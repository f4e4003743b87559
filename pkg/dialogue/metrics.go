package dialogue

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"

    "ttdialogue/pkg/packet"
)

// Metrics holds dialogue instruments. A nil *Metrics records nothing.
type Metrics struct {
    packetsIn     *prometheus.CounterVec
    packetsOut    *prometheus.CounterVec
    violations    *prometheus.CounterVec
    conversations *prometheus.GaugeVec
    dialogues     prometheus.Gauge
}

// NewMetrics registers the dialogue instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
    f := promauto.With(reg)
    return &Metrics{
        packetsIn: f.NewCounterVec(prometheus.CounterOpts{
            Namespace: "ttdialogue",
            Subsystem: "dialogue",
            Name:      "packets_received_total",
            Help:      "Packets read from the transport, by packet type.",
        }, []string{"type"}),
        packetsOut: f.NewCounterVec(prometheus.CounterOpts{
            Namespace: "ttdialogue",
            Subsystem: "dialogue",
            Name:      "packets_sent_total",
            Help:      "Packets handed to the transport, by packet type.",
        }, []string{"type"}),
        violations: f.NewCounterVec(prometheus.CounterOpts{
            Namespace: "ttdialogue",
            Subsystem: "dialogue",
            Name:      "protocol_violations_total",
            Help:      "Inbound protocol violations that closed a dialogue.",
        }, []string{"code"}),
        conversations: f.NewGaugeVec(prometheus.GaugeOpts{
            Namespace: "ttdialogue",
            Subsystem: "dialogue",
            Name:      "conversations",
            Help:      "Tracked conversations, by kind.",
        }, []string{"kind"}),
        dialogues: f.NewGauge(prometheus.GaugeOpts{
            Namespace: "ttdialogue",
            Subsystem: "dialogue",
            Name:      "open",
            Help:      "Dialogues that are not closed yet.",
        }),
    }
}

const (
    kindRequest = "request"
    kindRemote  = "remote_request"
    kindDuplex  = "duplex"
)

func (m *Metrics) packetIn(t packet.Type) {
    if m == nil { return }
    m.packetsIn.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) packetOut(t packet.Type) {
    if m == nil { return }
    m.packetsOut.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) violation(c ErrorCode) {
    if m == nil { return }
    m.violations.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) track(kind string, delta int) {
    if m == nil || delta == 0 { return }
    m.conversations.WithLabelValues(kind).Add(float64(delta))
}

func (m *Metrics) dialogue(delta float64) {
    if m == nil { return }
    m.dialogues.Add(delta)
}
