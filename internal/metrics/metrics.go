// Package metrics provides Prometheus instrumentation for RPC calls,
// portmapper broadcast discovery, SRQ delivery, and chunked device_write
// fragmentation. A struct of *prometheus.*Vec built in a constructor that
// accepts a prometheus.Registerer, registers eagerly if non-nil, and is
// safe to call on a nil *Metrics so every instrumentation site works
// whether or not the caller opted into metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "vxi11"
)

// Metrics holds every counter, gauge, and histogram this module exports.
type Metrics struct {
	rpcCallTotal    *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec

	broadcastRepliesTotal *prometheus.CounterVec
	broadcastActive       prometheus.Gauge

	srqDeliveredTotal *prometheus.CounterVec
	srqDroppedTotal   prometheus.Counter

	writeFragmentsTotal *prometheus.CounterVec
	writeBytesTotal     *prometheus.CounterVec
	readBytesTotal      *prometheus.CounterVec

	linksActive prometheus.Gauge
}

// New creates and, if registry is non-nil, registers the full metric set.
// Passing a nil registry is useful for tests and for callers who want the
// Metrics value (so call sites don't need nil checks of their own) without
// actually exporting anything.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		rpcCallTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "Total ONC RPC calls made, by program and procedure name.",
			},
			[]string{"program", "procedure", "status"},
		),
		rpcCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "call_duration_milliseconds",
				Help:      "Round-trip duration of an ONC RPC call.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			},
			[]string{"program", "procedure"},
		),
		broadcastRepliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "portmap",
				Name:      "broadcast_replies_total",
				Help:      "Total GETPORT replies received during broadcast discovery.",
			},
			[]string{"program"},
		),
		broadcastActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "portmap",
				Name:      "broadcast_active",
				Help:      "Number of broadcast discovery iterators currently open.",
			},
		),
		srqDeliveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "interrupt",
				Name:      "srq_delivered_total",
				Help:      "Total device_intr_srq calls delivered to a consumer.",
			},
			[]string{"tag"},
		),
		srqDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "interrupt",
				Name:      "srq_dropped_total",
				Help:      "Total SRQ deliveries dropped because the consumer channel was full.",
			},
		),
		writeFragmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "core",
				Name:      "write_fragments_total",
				Help:      "Total device_write chunks sent, per link.",
			},
			[]string{"device"},
		),
		writeBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "core",
				Name:      "write_bytes_total",
				Help:      "Total bytes accepted by device_write.",
			},
			[]string{"device"},
		),
		readBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "core",
				Name:      "read_bytes_total",
				Help:      "Total bytes returned by device_read.",
			},
			[]string{"device"},
		),
		linksActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "core",
				Name:      "links_active",
				Help:      "Number of currently open VXI-11 links.",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.rpcCallTotal, m.rpcCallDuration,
			m.broadcastRepliesTotal, m.broadcastActive,
			m.srqDeliveredTotal, m.srqDroppedTotal,
			m.writeFragmentsTotal, m.writeBytesTotal, m.readBytesTotal,
			m.linksActive,
		)
	}

	return m
}

// RecordCall records one completed RPC call. status is "ok" or "error".
func (m *Metrics) RecordCall(program uint32, procedure string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	prog := programLabel(program)
	m.rpcCallTotal.WithLabelValues(prog, procedure, status).Inc()
	m.rpcCallDuration.WithLabelValues(prog, procedure).Observe(float64(duration.Microseconds()) / 1000.0)
}

// RecordBroadcastReply records one GETPORT reply seen during broadcast
// discovery for the given program number.
func (m *Metrics) RecordBroadcastReply(program uint32) {
	if m == nil {
		return
	}
	m.broadcastRepliesTotal.WithLabelValues(programLabel(program)).Inc()
}

// BroadcastStarted/BroadcastEnded track concurrently open discovery
// iterators.
func (m *Metrics) BroadcastStarted() {
	if m == nil {
		return
	}
	m.broadcastActive.Inc()
}

func (m *Metrics) BroadcastEnded() {
	if m == nil {
		return
	}
	m.broadcastActive.Dec()
}

// RecordSRQDelivered records one device_intr_srq call handed to a consumer.
func (m *Metrics) RecordSRQDelivered(tag int32) {
	if m == nil {
		return
	}
	m.srqDeliveredTotal.WithLabelValues(tagLabel(tag)).Inc()
}

// RecordSRQDropped records one SRQ delivery dropped due to a full channel.
func (m *Metrics) RecordSRQDropped() {
	if m == nil {
		return
	}
	m.srqDroppedTotal.Inc()
}

// RecordWriteFragment records one device_write chunk for device.
func (m *Metrics) RecordWriteFragment(device string, bytes int) {
	if m == nil {
		return
	}
	m.writeFragmentsTotal.WithLabelValues(device).Inc()
	m.writeBytesTotal.WithLabelValues(device).Add(float64(bytes))
}

// RecordRead records bytes returned by one device_read call for device.
func (m *Metrics) RecordRead(device string, bytes int) {
	if m == nil {
		return
	}
	m.readBytesTotal.WithLabelValues(device).Add(float64(bytes))
}

// LinkOpened/LinkClosed track the number of currently open links.
func (m *Metrics) LinkOpened() {
	if m == nil {
		return
	}
	m.linksActive.Inc()
}

func (m *Metrics) LinkClosed() {
	if m == nil {
		return
	}
	m.linksActive.Dec()
}

func programLabel(program uint32) string {
	switch program {
	case 100000:
		return "portmap"
	case 395183:
		return "core"
	case 395184:
		return "abort"
	case 395185:
		return "interrupt"
	default:
		return "unknown"
	}
}

func tagLabel(tag int32) string {
	if tag == 0 {
		return "default"
	}
	return "tagged"
}
