// Package metrics tracks navigation counters for page-object runs.
// A single Metrics may be shared by navigators running in parallel sessions.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks navigation outcomes.
// All fields are thread-safe for concurrent access.
type Metrics struct {
	// Navigation metrics
	NavigationsStarted   atomic.Int64
	NavigationsCompleted atomic.Int64
	NavigationsFailed    atomic.Int64

	// Failure taxonomy
	IdentityMismatches     atomic.Int64
	LoadTimeouts           atomic.Int64
	UnloadTimeouts         atomic.Int64
	UnresolvedDestinations atomic.Int64
	ElementFailures        atomic.Int64

	// Diagnostics
	Screenshots atomic.Int64

	// Timing metrics
	startTime    time.Time
	avgLatencyNs atomic.Int64
	latencyCount atomic.Int64

	mu sync.RWMutex
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Timestamp              time.Time `json:"timestamp" yaml:"timestamp"`
	Uptime                 string    `json:"uptime" yaml:"uptime"`
	NavigationsStarted     int64     `json:"navigations_started" yaml:"navigations_started"`
	NavigationsCompleted   int64     `json:"navigations_completed" yaml:"navigations_completed"`
	NavigationsFailed      int64     `json:"navigations_failed" yaml:"navigations_failed"`
	IdentityMismatches     int64     `json:"identity_mismatches" yaml:"identity_mismatches"`
	LoadTimeouts           int64     `json:"load_timeouts" yaml:"load_timeouts"`
	UnloadTimeouts         int64     `json:"unload_timeouts" yaml:"unload_timeouts"`
	UnresolvedDestinations int64     `json:"unresolved_destinations" yaml:"unresolved_destinations"`
	ElementFailures        int64     `json:"element_failures" yaml:"element_failures"`
	Screenshots            int64     `json:"screenshots" yaml:"screenshots"`
	AvgLatencyMs           float64   `json:"avg_latency_ms" yaml:"avg_latency_ms"`
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// RecordLatency records a single navigation latency and updates the running average.
func (m *Metrics) RecordLatency(d time.Duration) {
	ns := d.Nanoseconds()
	count := m.latencyCount.Add(1)

	// Running average: newAvg = oldAvg + (newValue - oldAvg) / count
	for {
		oldAvg := m.avgLatencyNs.Load()
		newAvg := oldAvg + (ns-oldAvg)/count
		if m.avgLatencyNs.CompareAndSwap(oldAvg, newAvg) {
			break
		}
		count = m.latencyCount.Load()
		if count == 0 {
			count = 1
		}
	}
}

// Uptime returns the duration since the metrics instance was created.
func (m *Metrics) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}

// AvgLatency returns the average recorded latency.
// Returns 0 if no latency has been recorded.
func (m *Metrics) AvgLatency() time.Duration {
	return time.Duration(m.avgLatencyNs.Load())
}

// Failures returns the sum of the failure taxonomy counters.
func (m *Metrics) Failures() int64 {
	return m.IdentityMismatches.Load() +
		m.LoadTimeouts.Load() +
		m.UnloadTimeouts.Load() +
		m.UnresolvedDestinations.Load() +
		m.ElementFailures.Load()
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Timestamp:              time.Now(),
		Uptime:                 m.Uptime().Round(time.Millisecond).String(),
		NavigationsStarted:     m.NavigationsStarted.Load(),
		NavigationsCompleted:   m.NavigationsCompleted.Load(),
		NavigationsFailed:      m.NavigationsFailed.Load(),
		IdentityMismatches:     m.IdentityMismatches.Load(),
		LoadTimeouts:           m.LoadTimeouts.Load(),
		UnloadTimeouts:         m.UnloadTimeouts.Load(),
		UnresolvedDestinations: m.UnresolvedDestinations.Load(),
		ElementFailures:        m.ElementFailures.Load(),
		Screenshots:            m.Screenshots.Load(),
		AvgLatencyMs:           float64(m.avgLatencyNs.Load()) / float64(time.Millisecond),
	}
}

// ToJSON returns a JSON-encoded representation of the current metrics snapshot.
func (m *Metrics) ToJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}

// Reset resets all metric counters to zero and restarts the uptime clock.
func (m *Metrics) Reset() {
	m.NavigationsStarted.Store(0)
	m.NavigationsCompleted.Store(0)
	m.NavigationsFailed.Store(0)
	m.IdentityMismatches.Store(0)
	m.LoadTimeouts.Store(0)
	m.UnloadTimeouts.Store(0)
	m.UnresolvedDestinations.Store(0)
	m.ElementFailures.Store(0)
	m.Screenshots.Store(0)
	m.avgLatencyNs.Store(0)
	m.latencyCount.Store(0)

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}
