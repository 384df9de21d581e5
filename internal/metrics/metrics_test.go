package metrics

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// TestNewMetrics verifies that a new Metrics instance is properly initialized.
func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if m.NavigationsStarted.Load() != 0 {
		t.Errorf("NavigationsStarted = %d, want 0", m.NavigationsStarted.Load())
	}
	if m.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0", m.Failures())
	}
}

// TestMetrics_Failures verifies that every taxonomy counter feeds Failures.
func TestMetrics_Failures(t *testing.T) {
	m := NewMetrics()

	m.IdentityMismatches.Add(1)
	m.LoadTimeouts.Add(2)
	m.UnloadTimeouts.Add(3)
	m.UnresolvedDestinations.Add(4)
	m.ElementFailures.Add(5)
	m.NavigationsFailed.Add(100) // not part of the taxonomy sum

	if got := m.Failures(); got != 15 {
		t.Errorf("Failures() = %d, want 15", got)
	}
}

// TestMetrics_RecordLatency verifies the running average.
func TestMetrics_RecordLatency(t *testing.T) {
	m := NewMetrics()

	if m.AvgLatency() != 0 {
		t.Errorf("AvgLatency() = %v before any record, want 0", m.AvgLatency())
	}

	m.RecordLatency(100 * time.Millisecond)
	m.RecordLatency(200 * time.Millisecond)
	m.RecordLatency(300 * time.Millisecond)

	if got := m.AvgLatency(); got != 200*time.Millisecond {
		t.Errorf("AvgLatency() = %v, want 200ms", got)
	}
}

// TestMetrics_ConcurrentAccess verifies counters under parallel sessions.
func TestMetrics_ConcurrentAccess(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.NavigationsStarted.Add(1)
			m.NavigationsCompleted.Add(1)
			m.RecordLatency(10 * time.Millisecond)
			_ = m.Snapshot()
		}()
	}
	wg.Wait()

	if m.NavigationsStarted.Load() != 50 {
		t.Errorf("NavigationsStarted = %d, want 50", m.NavigationsStarted.Load())
	}
	if m.AvgLatency() <= 0 || m.AvgLatency() > 10*time.Millisecond {
		t.Errorf("AvgLatency() = %v, want within (0, 10ms]", m.AvgLatency())
	}
}

// TestMetrics_ToJSON verifies the snapshot field names.
func TestMetrics_ToJSON(t *testing.T) {
	m := NewMetrics()
	m.NavigationsCompleted.Add(3)
	m.Screenshots.Add(1)

	data, err := m.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}
	if decoded["navigations_completed"] != float64(3) {
		t.Errorf("navigations_completed = %v, want 3", decoded["navigations_completed"])
	}
	if decoded["screenshots"] != float64(1) {
		t.Errorf("screenshots = %v, want 1", decoded["screenshots"])
	}
	for _, key := range []string{"identity_mismatches", "load_timeouts", "unload_timeouts", "unresolved_destinations", "element_failures", "uptime"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing key %q", key)
		}
	}
}

// TestMetrics_Reset verifies that Reset zeroes counters.
func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	m.NavigationsStarted.Add(5)
	m.LoadTimeouts.Add(1)
	m.RecordLatency(time.Second)

	m.Reset()

	snap := m.Snapshot()
	if snap.NavigationsStarted != 0 || snap.LoadTimeouts != 0 {
		t.Errorf("counters not reset: %+v", snap)
	}
	if snap.AvgLatencyMs != 0 {
		t.Errorf("AvgLatencyMs = %v after Reset, want 0", snap.AvgLatencyMs)
	}
}
