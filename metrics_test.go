package goClone

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricCallSuccess)

	if got := m.Value(MetricCallSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricCallDenied)
	m.Inc(MetricCallDenied)
	m.Add(MetricEntryPointRegistered, 4)

	if got := m.Value(MetricCallDenied); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricEntryPointRegistered); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricCallSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricCallSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		50 * time.Microsecond,
		250 * time.Microsecond,
		400 * time.Microsecond,
		time.Millisecond,
		2 * time.Millisecond,
		10 * time.Millisecond,
		40 * time.Millisecond,
		time.Second,
	}

	for _, d := range observations {
		m.Observe(MetricCallLatency, d)
	}
	m.Observe(MetricCallSuccess, time.Second)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricCallLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}

	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricCallSuccess]; ok {
		t.Fatal("counter metric must not carry a histogram")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricProxyCreated)
	m.Inc(MetricCallFailed)
	m.Inc(MetricCallFailed)
	m.Observe(MetricCallLatency, time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricProxyCreated] != 1 {
		t.Fatalf("expected MetricProxyCreated=1 got %d", snap.Counters[MetricProxyCreated])
	}
	if snap.Counters[MetricCallFailed] != 2 {
		t.Fatalf("expected MetricCallFailed=2 got %d", snap.Counters[MetricCallFailed])
	}
	if len(snap.Histograms) != 0 {
		t.Fatal("expected no histograms when latency is disabled")
	}
}
