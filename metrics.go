package cask

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// resolutionMetrics accumulates resolution counters and timings. All
// updates are lock-free; reads are point-in-time snapshots.
type resolutionMetrics struct {
	resolutions atomic.Int64
	failures    atomic.Int64
	cacheHits   atomic.Int64
	created     atomic.Int64

	totalNanos atomic.Int64
	minNanos   atomic.Int64
	maxNanos   atomic.Int64

	perDefinition sync.Map // name -> *definitionStats
}

type definitionStats struct {
	resolutions atomic.Int64
	created     atomic.Int64
}

func newResolutionMetrics() *resolutionMetrics {
	m := &resolutionMetrics{}
	m.minNanos.Store(math.MaxInt64)
	return m
}

func (m *resolutionMetrics) observe(elapsed time.Duration, err error) {
	m.resolutions.Add(1)
	if err != nil {
		m.failures.Add(1)
		return
	}

	nanos := elapsed.Nanoseconds()
	m.totalNanos.Add(nanos)
	for {
		min := m.minNanos.Load()
		if nanos >= min || m.minNanos.CompareAndSwap(min, nanos) {
			break
		}
	}
	for {
		max := m.maxNanos.Load()
		if nanos <= max || m.maxNanos.CompareAndSwap(max, nanos) {
			break
		}
	}
}

func (m *resolutionMetrics) stats(name string) *definitionStats {
	if stats, ok := m.perDefinition.Load(name); ok {
		return stats.(*definitionStats)
	}
	stats, _ := m.perDefinition.LoadOrStore(name, &definitionStats{})
	return stats.(*definitionStats)
}

func (m *resolutionMetrics) observeDefinition(name string, createdInstance bool) {
	stats := m.stats(name)
	stats.resolutions.Add(1)
	if createdInstance {
		stats.created.Add(1)
		m.created.Add(1)
	} else {
		m.cacheHits.Add(1)
	}
}

// PerformanceMetrics returns process-wide resolution counters and timings.
// Read-only; the only side effect anywhere is the internal counters.
func (c *Container) PerformanceMetrics() map[string]any {
	m := c.metrics

	succeeded := m.resolutions.Load() - m.failures.Load()
	out := map[string]any{
		"resolutions":       m.resolutions.Load(),
		"failures":          m.failures.Load(),
		"cache_hits":        m.cacheHits.Load(),
		"instances_created": m.created.Load(),
		"total_nanos":       m.totalNanos.Load(),
	}
	if succeeded > 0 {
		out["avg_nanos"] = m.totalNanos.Load() / succeeded
		out["min_nanos"] = m.minNanos.Load()
		out["max_nanos"] = m.maxNanos.Load()
	}
	return out
}

// DependencyStats returns per-definition resolution counts and declared
// dependency fan-out.
func (c *Container) DependencyStats() map[string]any {
	c.regMu.RLock()
	defs := c.registry.all()
	c.regMu.RUnlock()

	out := make(map[string]any, len(defs))
	for _, def := range defs {
		stats := c.metrics.stats(def.name)
		out[def.name] = map[string]any{
			"scope":        string(def.scope),
			"dependencies": len(def.dependencies),
			"resolutions":  stats.resolutions.Load(),
			"created":      stats.created.Load(),
		}
	}
	return out
}
