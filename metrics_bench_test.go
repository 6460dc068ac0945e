package goClone

import (
	"sync/atomic"
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	for _, enabled := range []bool{true, false} {
		name := "enabled"
		if !enabled {
			name = "disabled"
		}
		b.Run(name, func(b *testing.B) {
			m := NewMetrics(MetricsConfig{Enabled: enabled})
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					m.Inc(MetricCallSuccess)
				}
			})
		})
	}
}

func BenchmarkMetricsObserveCallLatency(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	d := 700 * time.Microsecond
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricCallLatency, d)
		}
	})
}

// packedCounters drops the cache-line padding to show the false-sharing cost
// the padded layout avoids.
type packedCounters struct {
	counters [metricIDCount]uint64
}

func (m *packedCounters) Inc(id MetricID) {
	atomic.AddUint64(&m.counters[id], 1)
}

var callPathMetricIDs = [...]MetricID{
	MetricCallSuccess,
	MetricCallDenied,
	MetricCallUnknownSelector,
	MetricCallFailed,
	MetricProxyCreated,
	MetricFeatureSetUpdated,
}

func BenchmarkMetricsCallPathMixed(b *testing.B) {
	run := func(b *testing.B, inc func(MetricID)) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			idx := 0
			for pb.Next() {
				inc(callPathMetricIDs[idx])
				idx++
				if idx == len(callPathMetricIDs) {
					idx = 0
				}
			}
		})
	}

	b.Run("padded", func(b *testing.B) {
		m := NewMetrics(MetricsConfig{Enabled: true})
		run(b, m.Inc)
	})
	b.Run("packed", func(b *testing.B) {
		m := &packedCounters{}
		run(b, m.Inc)
	})
}
