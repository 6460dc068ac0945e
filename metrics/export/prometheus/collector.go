package prometheus

import (
	goClone "github.com/MrEthical07/goClone"
	"github.com/MrEthical07/goClone/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector adapts factory snapshots to a client_golang registry. Values are
// read at scrape time; nothing is cached between scrapes.
type Collector struct {
	source     metricsSource
	counters   []counterDesc
	histograms []histogramDesc
	dropped    *prometheus.Desc
}

type counterDesc struct {
	id   goClone.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   goClone.MetricID
	desc *prometheus.Desc
}

// NewCollector creates a Collector over factory.
func NewCollector(factory *goClone.Factory) *Collector {
	return NewCollectorFromSource(factory)
}

// NewCollectorFromSource creates a Collector over any snapshot source.
// constLabels are attached to every metric, e.g. {"factory": addr}.
func NewCollectorFromSource(source metricsSource, constLabels ...prometheus.Labels) *Collector {
	var labels prometheus.Labels
	if len(constLabels) > 0 {
		labels = constLabels[0]
	}

	c := &Collector{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		dropped:    prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, labels),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, labels),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, labels),
		})
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
	ch <- c.dropped
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()
	for _, d := range c.counters {
		ch <- prometheus.MustNewConstMetric(d.desc, prometheus.CounterValue, float64(snapshot.Counters[d.id]))
	}

	for _, d := range c.histograms {
		raw, ok := snapshot.Histograms[d.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBoundValues))
		for i, le := range internaldefs.HistogramBoundValues {
			buckets[le] = cumulative[i]
		}
		ch <- prometheus.MustNewConstHistogram(d.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

var _ prometheus.Collector = (*Collector)(nil)
