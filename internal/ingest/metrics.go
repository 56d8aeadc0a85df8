package ingest

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons used as the "reason" label.
const (
	reasonUnknownTopic = "unknown_topic"
	reasonNoHandler    = "no_handler"
	reasonMalformed    = "malformed"
)

// Metrics instruments the pipeline. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	messages *prometheus.CounterVec
	drops    *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	depth    prometheus.Gauge

	// Plain counters mirrored for the JSON metrics endpoint.
	nReceived atomic.Uint64
	nDropped  atomic.Uint64
	nFailed   atomic.Uint64
	nQueued   atomic.Int64
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
	Failed   uint64 `json:"failed"`
	Queued   int64  `json:"queued"`
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iotcore",
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Inbound MQTT messages by topic kind.",
		}, []string{"kind"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iotcore",
			Subsystem: "ingest",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped without reaching a collaborator.",
		}, []string{"kind", "reason"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iotcore",
			Subsystem: "ingest",
			Name:      "handler_failures_total",
			Help:      "Handler invocations that returned an error or panicked.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "iotcore",
			Subsystem: "ingest",
			Name:      "handler_duration_seconds",
			Help:      "Time spent in a handler per message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "iotcore",
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Messages waiting in dispatcher shard queues.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.messages, m.drops, m.failures, m.latency, m.depth} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Received: m.nReceived.Load(),
		Dropped:  m.nDropped.Load(),
		Failed:   m.nFailed.Load(),
		Queued:   m.nQueued.Load(),
	}
}

func (m *Metrics) received(k Kind) {
	if m == nil {
		return
	}
	m.nReceived.Add(1)
	m.messages.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) dropped(k Kind, reason string) {
	if m == nil {
		return
	}
	m.nDropped.Add(1)
	m.drops.WithLabelValues(k.String(), reason).Inc()
}

func (m *Metrics) failed(k Kind) {
	if m == nil {
		return
	}
	m.nFailed.Add(1)
	m.failures.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) observe(k Kind, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(k.String()).Observe(d.Seconds())
}

func (m *Metrics) queued(delta int64) {
	if m == nil {
		return
	}
	m.depth.Set(float64(m.nQueued.Add(delta)))
}
