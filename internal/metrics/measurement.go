package metrics

import (
	"time"

	"github.com/T3chie-404/xand-mon-agent/internal/probe"
)

// Measurement is the latest complete observation of the monitored node. It is
// replaced wholesale on every probe cycle; there is no history.
type Measurement struct {
	CurrentSlot uint64
	ClusterSlot uint64
	Lag         uint64
	// HasSlots reports whether the slot fields hold real values. It is false
	// before the first successful probe and after any failed one.
	HasSlots    bool
	Healthy     bool
	ProbeFailed bool
	LastUpdate  time.Time
}

// FromProbe converts a probe result into a Measurement. LastUpdate advances
// whether or not the probe succeeded, so staleness is observable.
func FromProbe(r probe.Result) Measurement {
	m := Measurement{
		Healthy:     r.Healthy,
		ProbeFailed: !r.Healthy,
		LastUpdate:  r.CheckedAt,
	}
	if r.Healthy {
		m.CurrentSlot = r.CurrentSlot
		m.ClusterSlot = r.ClusterSlot
		m.Lag = r.Lag
		m.HasSlots = true
	}
	return m
}
