package obs

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hft/internal/schema"
)

// Stage is a timed step of the hot path.
type Stage uint8

const (
	StageIngest Stage = iota
	StageFeature
	StageModel
	StageRoute
	stageCount
)

var stageSeries = [stageCount]string{
	StageIngest:  "hft_ingest_duration_us",
	StageFeature: "hft_feature_duration_us",
	StageModel:   "hft_model_duration_us",
	StageRoute:   "hft_route_duration_us",
}

var stageHelp = [stageCount]string{
	StageIngest:  "Time from venue timestamp to snapshot receipt in microseconds.",
	StageFeature: "Feature computation time in microseconds.",
	StageModel:   "Model inference time in microseconds.",
	StageRoute:   "Gate and routing time in microseconds.",
}

var durationBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000}

// Metrics owns the Prometheus registry of the engine and the in-process
// latency windows behind PerformanceMetrics.
type Metrics struct {
	registry *prometheus.Registry

	durations       [stageCount]prometheus.Histogram
	snapshotsPerSec prometheus.Gauge
	ordersPerSec    prometheus.Gauge
	droppedFrames   prometheus.Counter
	modelTimeouts   prometheus.Counter
	orderRejects    prometheus.Counter
	orderImpact     prometheus.Histogram

	windows [stageCount]*LatencyWindow
	stats   [stageCount]LatencyStats

	snapshots *RateMeter
	orders    *RateMeter

	dropped  uint64
	timeouts uint64
	rejects  uint64

	mu   sync.Mutex
	last schema.PerformanceMetrics
}

// NewMetrics registers the engine series on a fresh registry.
func NewMetrics() *Metrics {
	now := time.Now()
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		snapshotsPerSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hft_snapshots_per_sec",
			Help: "Market snapshots processed per second.",
		}),
		ordersPerSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hft_orders_per_sec",
			Help: "Orders submitted per second.",
		}),
		droppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hft_dropped_frames_total",
			Help: "Market snapshots dropped because the engine queue was full.",
		}),
		modelTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hft_model_timeouts_total",
			Help: "Model predictions that exceeded the inference timeout.",
		}),
		orderRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hft_order_rejects_total",
			Help: "Orders rejected by risk checks or venues.",
		}),
		orderImpact: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hft_order_impact_bps",
			Help:    "Expected market impact of submitted orders in basis points.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}),
		snapshots: NewRateMeter(now),
		orders:    NewRateMeter(now),
	}

	for i := range m.durations {
		m.durations[i] = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    stageSeries[i],
			Help:    stageHelp[i],
			Buckets: durationBuckets,
		})
		m.windows[i] = NewLatencyWindow(defaultWindowSize)
		m.registry.MustRegister(m.durations[i])
	}
	m.registry.MustRegister(
		m.snapshotsPerSec,
		m.ordersPerSec,
		m.droppedFrames,
		m.modelTimeouts,
		m.orderRejects,
		m.orderImpact,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records a stage duration.
func (m *Metrics) Observe(stage Stage, d time.Duration) {
	if m == nil || stage >= stageCount {
		return
	}
	us := float64(d) / float64(time.Microsecond)
	m.durations[stage].Observe(us)
	m.windows[stage].Observe(us)
	m.stats[stage].Observe(d)
}

// Since records the time elapsed since start for stage.
func (m *Metrics) Since(stage Stage, start time.Time) {
	m.Observe(stage, time.Since(start))
}

func (m *Metrics) IncSnapshots(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.snapshots.Mark(uint64(n))
}

func (m *Metrics) IncOrders() {
	if m == nil {
		return
	}
	m.orders.Mark(1)
}

// ObserveImpact records the expected impact of an order about to be sent.
func (m *Metrics) ObserveImpact(bps float64) {
	if m == nil {
		return
	}
	m.orderImpact.Observe(bps)
}

func (m *Metrics) IncDroppedFrame() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.dropped, 1)
	m.droppedFrames.Inc()
}

func (m *Metrics) IncModelTimeout() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.timeouts, 1)
	m.modelTimeouts.Inc()
}

func (m *Metrics) IncOrderReject() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rejects, 1)
	m.orderRejects.Inc()
}

// Tick recomputes throughput gauges and the performance snapshot. Call it once
// per publishing interval.
func (m *Metrics) Tick(now time.Time) schema.PerformanceMetrics {
	if m == nil {
		return schema.PerformanceMetrics{}
	}
	snapRate := m.snapshots.Rate(now)
	orderRate := m.orders.Rate(now)
	m.snapshotsPerSec.Set(snapRate)
	m.ordersPerSec.Set(orderRate)

	perf := schema.PerformanceMetrics{
		SnapshotsPerSec: snapRate,
		OrdersPerSec:    orderRate,
		DroppedFrames:   atomic.LoadUint64(&m.dropped),
		ModelTimeouts:   atomic.LoadUint64(&m.timeouts),
		OrderRejects:    atomic.LoadUint64(&m.rejects),
	}
	perf.IngestP50Us, perf.IngestP95Us, perf.IngestP99Us = m.windows[StageIngest].Percentiles()
	perf.FeatureP50Us, perf.FeatureP95Us, perf.FeatureP99Us = m.windows[StageFeature].Percentiles()
	perf.ModelP50Us, perf.ModelP95Us, perf.ModelP99Us = m.windows[StageModel].Percentiles()
	perf.RouteP50Us, perf.RouteP95Us, perf.RouteP99Us = m.windows[StageRoute].Percentiles()

	m.mu.Lock()
	m.last = perf
	m.mu.Unlock()
	return perf
}

// Performance returns the snapshot computed by the last Tick.
func (m *Metrics) Performance() schema.PerformanceMetrics {
	if m == nil {
		return schema.PerformanceMetrics{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Latency returns min/max/avg for a stage since start.
func (m *Metrics) Latency(stage Stage) LatencySnapshot {
	if m == nil || stage >= stageCount {
		return LatencySnapshot{}
	}
	return m.stats[stage].Snapshot()
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		cur := atomic.LoadUint64(&l.min)
		if cur != 0 && nanos >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, cur, nanos) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&l.max)
		if nanos <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, cur, nanos) {
			break
		}
	}
}

func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(atomic.LoadUint64(&l.sum) / count),
	}
}
