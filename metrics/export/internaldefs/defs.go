package internaldefs

import (
	goClone "github.com/MrEthical07/goClone"
)

// CounterDef names one factory counter for exporters.
type CounterDef struct {
	ID   goClone.MetricID
	Name string
	Help string
}

// HistogramDef names one factory histogram for exporters.
type HistogramDef struct {
	ID   goClone.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in rendering order.
var CounterDefs = []CounterDef{
	{ID: goClone.MetricCallSuccess, Name: "goclone_call_success_total", Help: "Forwarded calls that committed."},
	{ID: goClone.MetricCallDenied, Name: "goclone_call_denied_total", Help: "Calls rejected by the instance feature mask."},
	{ID: goClone.MetricCallUnknownSelector, Name: "goclone_call_unknown_selector_total", Help: "Calls naming an unregistered selector."},
	{ID: goClone.MetricCallFailed, Name: "goclone_call_failed_total", Help: "Forwarded calls whose implementation returned an error."},
	{ID: goClone.MetricCallStoreError, Name: "goclone_call_store_error_total", Help: "Calls aborted by an instance store failure."},
	{ID: goClone.MetricProxyCreated, Name: "goclone_proxy_created_total", Help: "Proxy instances cloned."},
	{ID: goClone.MetricImplementationUpgraded, Name: "goclone_implementation_upgraded_total", Help: "Implementation upgrades published."},
	{ID: goClone.MetricFeatureSetUpdated, Name: "goclone_feature_set_updated_total", Help: "Instance feature masks overwritten."},
	{ID: goClone.MetricEntryPointRegistered, Name: "goclone_entry_point_registered_total", Help: "Entry point ids assigned by the registry."},
	{ID: goClone.MetricOwnerRejected, Name: "goclone_owner_rejected_total", Help: "Owner operations refused by the owner capability."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goClone.MetricCallLatency, Name: "goclone_call_latency_seconds", Help: "Proxy call latency histogram."},
}

// AuditDroppedName is the counter for notifications dropped under
// backpressure.
const AuditDroppedName = "goclone_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped factory notifications due to dispatcher backpressure."

// HistogramBoundValues are the upper bounds, in seconds, of the core latency
// buckets. The eighth bucket is +Inf.
var HistogramBoundValues = []float64{
	0.0001,
	0.00025,
	0.0005,
	0.001,
	0.0025,
	0.01,
	0.05,
}

// HistogramBoundSuffix is [HistogramBoundValues] plus +Inf, rendered safe for
// instrument names.
var HistogramBoundSuffix = []string{
	"0_0001",
	"0_00025",
	"0_0005",
	"0_001",
	"0_0025",
	"0_01",
	"0_05",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the eight core buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
