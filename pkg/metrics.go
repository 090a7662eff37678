package cache

// metrics.go contains a thin abstraction over Prometheus so that tier-cache
// can be used with or without metrics.  When the user passes a
// *prometheus.Registry via WithMetrics(reg), labeled collectors are
// registered; otherwise a no-op sink is used and the hot path does not pay
// for metric updates.
//
// Every series except the promotion and demotion counters carries a `tier`
// label ("memory", "disk", "hybrid"); aggregations are done on the
// Prometheus side via sum() / rate().
//
// ┌────────────────────────────────────────┐
// │ Metric                   │ Type │ Label│
// ├──────────────────────────┼──────┼──────┤
// │ hits_total               │ Ctr  │ tier │
// │ misses_total             │ Ctr  │ tier │
// │ evictions_total          │ Ctr  │ tier │
// │ promotions_total         │ Ctr  │  —   │
// │ demotions_total          │ Ctr  │  —   │
// │ resident_bytes           │ Gge  │ tier │
// │ entries                  │ Gge  │ tier │
// └────────────────────────────────────────┘
//
// © 2025 tier-cache authors. MIT License.

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Tier label values.
const (
	tierMemory = "memory"
	tierDisk   = "disk"
	tierHybrid = "hybrid"
)

// metricsSink is the internal interface abstracting the concrete backend
// (Prometheus vs noop).  Tiers only know about these methods.
type metricsSink interface {
	incHit(tier string)
	incMiss(tier string)
	incEvict(tier string)
	incPromotion()
	incDemotion()
	setBytes(tier string, v int64)
	setEntries(tier string, v int64)
}

/*
   ---------------- No-op implementation ----------------
*/

type noopMetrics struct{}

func (noopMetrics) incHit(string)            {}
func (noopMetrics) incMiss(string)           {}
func (noopMetrics) incEvict(string)          {}
func (noopMetrics) incPromotion()            {}
func (noopMetrics) incDemotion()             {}
func (noopMetrics) setBytes(string, int64)   {}
func (noopMetrics) setEntries(string, int64) {}

/*
   ---------------- Prometheus implementation ----------------
*/

type promMetrics struct {
	hits       *prometheus.CounterVec
	misses     *prometheus.CounterVec
	evictions  *prometheus.CounterVec
	promotions prometheus.Counter
	demotions  prometheus.Counter
	bytes      *prometheus.GaugeVec
	entries    *prometheus.GaugeVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"tier"}

	pm := &promMetrics{
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tier_cache",
				Name:      "hits_total",
				Help:      "Number of cache hits.",
			}, label),
		misses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tier_cache",
				Name:      "misses_total",
				Help:      "Number of cache misses.",
			}, label),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tier_cache",
				Name:      "evictions_total",
				Help:      "Number of entries evicted by capacity or TTL pressure.",
			}, label),
		promotions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tier_cache",
				Name:      "promotions_total",
				Help:      "Number of disk-to-memory promotions.",
			}),
		demotions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tier_cache",
				Name:      "demotions_total",
				Help:      "Number of memory-to-disk demotions (memory copy dropped).",
			}),
		bytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tier_cache",
				Name:      "resident_bytes",
				Help:      "Bytes resident per tier.",
			}, label),
		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tier_cache",
				Name:      "entries",
				Help:      "Entries resident per tier.",
			}, label),
	}

	// Caller guarantees reg != nil; nil means metrics disabled and this
	// function is never reached.
	reg.MustRegister(pm.hits, pm.misses, pm.evictions, pm.promotions,
		pm.demotions, pm.bytes, pm.entries)
	return pm
}

/*
   -------- promMetrics implements metricsSink --------
*/

func (m *promMetrics) incHit(tier string)   { m.hits.WithLabelValues(tier).Inc() }
func (m *promMetrics) incMiss(tier string)  { m.misses.WithLabelValues(tier).Inc() }
func (m *promMetrics) incEvict(tier string) { m.evictions.WithLabelValues(tier).Inc() }
func (m *promMetrics) incPromotion()        { m.promotions.Inc() }
func (m *promMetrics) incDemotion()         { m.demotions.Inc() }
func (m *promMetrics) setBytes(tier string, v int64) {
	m.bytes.WithLabelValues(tier).Set(float64(v))
}
func (m *promMetrics) setEntries(tier string, v int64) {
	m.entries.WithLabelValues(tier).Set(float64(v))
}

/*
   ---------------- Factory ----------------
*/

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
