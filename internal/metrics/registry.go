// Package metrics holds the agent's single shared Measurement and renders it
// as Prometheus metrics on demand.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry owns the current Measurement. The scheduler is the only writer;
// scrape handlers and the push client read snapshots. Update swaps the whole
// record in one atomic store, so a reader can never observe a half-written
// Measurement.
//
// Registry implements prometheus.Collector: each scrape emits const metrics
// from the snapshot current at that instant.
type Registry struct {
	nodeName string
	version  atomic.Value // node CLI version string, set once known
	current  atomic.Pointer[Measurement]
}

// NewRegistry creates a Registry for the named node, holding an unknown
// (unhealthy, slotless) Measurement until the first probe cycle completes.
func NewRegistry(nodeName string) *Registry {
	r := &Registry{nodeName: nodeName}
	r.current.Store(&Measurement{})
	return r
}

// Update replaces the held Measurement.
func (r *Registry) Update(m Measurement) {
	r.current.Store(&m)
}

// Snapshot returns a copy of the current Measurement.
func (r *Registry) Snapshot() Measurement {
	return *r.current.Load()
}

// SetNodeVersion records the monitored node's version string for the
// node_info family.
func (r *Registry) SetNodeVersion(v string) {
	r.version.Store(v)
}

// NodeVersion returns the recorded node version, or "" if not yet known.
func (r *Registry) NodeVersion() string {
	v, _ := r.version.Load().(string)
	return v
}

// NodeName returns the node label applied to every emitted metric.
func (r *Registry) NodeName() string {
	return r.nodeName
}

var (
	descSlotCurrent = prometheus.NewDesc(
		"node_slot_current",
		"Current processed slot on this node",
		[]string{"node"}, nil,
	)
	descSlotCluster = prometheus.NewDesc(
		"node_slot_cluster",
		"Cluster tip slot observed by the catchup probe",
		[]string{"node"}, nil,
	)
	descSlotLag = prometheus.NewDesc(
		"node_slot_lag",
		"Slots behind the cluster tip",
		[]string{"node"}, nil,
	)
	descHealth = prometheus.NewDesc(
		"node_health",
		"Node health status (1=healthy, 0=unhealthy)",
		[]string{"node"}, nil,
	)
	descLastUpdate = prometheus.NewDesc(
		"node_metrics_last_update_timestamp",
		"Unix timestamp of the last completed probe cycle",
		[]string{"node"}, nil,
	)
	descRPCError = prometheus.NewDesc(
		"node_rpc_error",
		"Probe error while fetching catchup status (1=error, 0=ok)",
		[]string{"node"}, nil,
	)
	descInfo = prometheus.NewDesc(
		"node_info",
		"Monitored node information",
		[]string{"node", "version"}, nil,
	)
)

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- descSlotCurrent
	ch <- descSlotCluster
	ch <- descSlotLag
	ch <- descHealth
	ch <- descLastUpdate
	ch <- descRPCError
	ch <- descInfo
}

// Collect implements prometheus.Collector. Slot families are omitted while no
// successful probe has run; health and timestamp are always present so
// scrapers can tell "unknown" from "missing target".
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	m := r.Snapshot()

	if m.HasSlots {
		ch <- prometheus.MustNewConstMetric(descSlotCurrent, prometheus.GaugeValue, float64(m.CurrentSlot), r.nodeName)
		ch <- prometheus.MustNewConstMetric(descSlotCluster, prometheus.GaugeValue, float64(m.ClusterSlot), r.nodeName)
		ch <- prometheus.MustNewConstMetric(descSlotLag, prometheus.GaugeValue, float64(m.Lag), r.nodeName)
	}

	ch <- prometheus.MustNewConstMetric(descHealth, prometheus.GaugeValue, boolToFloat(m.Healthy), r.nodeName)
	ch <- prometheus.MustNewConstMetric(descRPCError, prometheus.GaugeValue, boolToFloat(m.ProbeFailed), r.nodeName)

	var ts float64
	if !m.LastUpdate.IsZero() {
		ts = float64(m.LastUpdate.Unix())
	}
	ch <- prometheus.MustNewConstMetric(descLastUpdate, prometheus.GaugeValue, ts, r.nodeName)

	if v := r.NodeVersion(); v != "" {
		ch <- prometheus.MustNewConstMetric(descInfo, prometheus.GaugeValue, 1, r.nodeName, v)
	}
}

// Export returns the current metric values keyed by family name, in the shape
// the push endpoint ingests.
func (r *Registry) Export() map[string]any {
	m := r.Snapshot()

	out := map[string]any{
		"node_health":    boolToFloat(m.Healthy),
		"node_rpc_error": boolToFloat(m.ProbeFailed),
	}
	if !m.LastUpdate.IsZero() {
		out["node_metrics_last_update_timestamp"] = float64(m.LastUpdate.Unix())
	}
	if m.HasSlots {
		out["node_slot_current"] = float64(m.CurrentSlot)
		out["node_slot_cluster"] = float64(m.ClusterSlot)
		out["node_slot_lag"] = float64(m.Lag)
	}
	if v := r.NodeVersion(); v != "" {
		out["node_version"] = v
	}
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
