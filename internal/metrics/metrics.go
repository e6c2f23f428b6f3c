package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gateway"

// Metrics holds every collector of the process.
type Metrics struct {
	registry *prometheus.Registry

	shardState       *prometheus.GaugeVec
	reconnects       *prometheus.CounterVec
	heartbeatLatency *prometheus.HistogramVec
	eventsReceived   *prometheus.CounterVec
	decodeErrors     *prometheus.CounterVec
	framesSent       *prometheus.CounterVec

	cacheApplied   *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheSize      *prometheus.GaugeVec

	snapshotDuration prometheus.Histogram
	snapshotFailures prometheus.Counter
	snapshotBytes    prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		shardState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "shard", Name: "state",
			Help: "Connection state per shard (0 none, 1 connecting, 2 configured, 3 connected, 4 stopped).",
		}, []string{"shard"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shard", Name: "reconnects_total",
			Help: "Reconnections per shard and reason.",
		}, []string{"shard", "reason"}),
		heartbeatLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "shard", Name: "heartbeat_latency_seconds",
			Help:    "Time between a heartbeat and its acknowledgement.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"shard"}),
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "events", Name: "received_total",
			Help: "Decoded gateway events per shard and name.",
		}, []string{"shard", "event"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "events", Name: "decode_errors_total",
			Help: "Frames that could not be decompressed or decoded.",
		}, []string{"shard"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frames", Name: "sent_total",
			Help: "Outbound control frames per shard and opcode.",
		}, []string{"shard", "op"}),
		cacheApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "applied_total",
			Help: "Events applied to the cache.",
		}, []string{"event"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "evicted_total",
			Help: "Entries trimmed by the item limit.",
		}, []string{"collection"}),
		cacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "entries",
			Help: "Entries per cache collection.",
		}, []string{"collection"}),
		snapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "snapshot", Name: "write_duration_seconds",
			Help:    "Time to persist one cache snapshot.",
			Buckets: prometheus.DefBuckets,
		}),
		snapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "snapshot", Name: "failures_total",
			Help: "Snapshot writes that failed.",
		}),
		snapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "snapshot", Name: "bytes",
			Help: "Size of the last persisted snapshot.",
		}),
	}

	reg.MustRegister(
		m.shardState, m.reconnects, m.heartbeatLatency, m.eventsReceived,
		m.decodeErrors, m.framesSent, m.cacheApplied, m.cacheEvictions,
		m.cacheSize, m.snapshotDuration, m.snapshotFailures, m.snapshotBytes,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func shardLabel(shard int) string { return strconv.Itoa(shard) }

func (m *Metrics) ShardState(shard int, state int) {
	if m == nil {
		return
	}
	m.shardState.WithLabelValues(shardLabel(shard)).Set(float64(state))
}

func (m *Metrics) Reconnect(shard int, reason string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(shardLabel(shard), reason).Inc()
}

func (m *Metrics) HeartbeatLatency(shard int, d time.Duration) {
	if m == nil {
		return
	}
	m.heartbeatLatency.WithLabelValues(shardLabel(shard)).Observe(d.Seconds())
}

func (m *Metrics) EventReceived(shard int, name string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(shardLabel(shard), name).Inc()
}

func (m *Metrics) DecodeError(shard int) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(shardLabel(shard)).Inc()
}

func (m *Metrics) FrameSent(shard int, op string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(shardLabel(shard), op).Inc()
}

func (m *Metrics) CacheApplied(event string) {
	if m == nil {
		return
	}
	m.cacheApplied.WithLabelValues(event).Inc()
}

func (m *Metrics) CacheEvicted(collection string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.WithLabelValues(collection).Add(float64(n))
}

func (m *Metrics) CacheSize(collection string, n int) {
	if m == nil {
		return
	}
	m.cacheSize.WithLabelValues(collection).Set(float64(n))
}

// SnapshotWritten records one persistence attempt.
func (m *Metrics) SnapshotWritten(d time.Duration, size int, err error) {
	if m == nil {
		return
	}
	m.snapshotDuration.Observe(d.Seconds())
	if err != nil {
		m.snapshotFailures.Inc()
		return
	}
	m.snapshotBytes.Set(float64(size))
}
