package prometheus

import (
	"net/http"

	goClone "github.com/MrEthical07/goClone"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() goClone.MetricsSnapshot
	AuditDropped() uint64
}

// NewRegistry returns a private registry with a [Collector] over source
// registered. Callers may register further collectors on it.
func NewRegistry(source metricsSource, constLabels ...prometheus.Labels) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollectorFromSource(source, constLabels...))
	return reg
}

// Handler serves source's metrics in the exposition format negotiated with
// the scraper.
func Handler(source metricsSource, constLabels ...prometheus.Labels) http.Handler {
	return HandlerFor(NewRegistry(source, constLabels...))
}

// HandlerFor serves everything gathered from reg.
func HandlerFor(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
