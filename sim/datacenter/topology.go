package datacenter

import (
	"fmt"

	"github.com/netsim-lab/netsim/sim"
)

// Topology answers bandwidth and latency questions about network nodes.
type Topology interface {
	// DownlinkBandwidth returns the Mbps a node offers each attached host;
	// 0 for an unknown node.
	DownlinkBandwidth(node sim.EntityID) float64
	// Latency returns the ticks a packet takes from one node to another.
	Latency(from, to sim.EntityID) int64
}

type link struct{ a, b sim.EntityID }

// StaticTopology is a Topology fixed at setup. Latencies are symmetric and
// default to zero.
type StaticTopology struct {
	downlink map[sim.EntityID]float64
	latency  map[link]int64
}

// NewStaticTopology creates an empty topology.
func NewStaticTopology() *StaticTopology {
	return &StaticTopology{
		downlink: make(map[sim.EntityID]float64),
		latency:  make(map[link]int64),
	}
}

// AddNode declares a node and its downlink bandwidth in Mbps.
func (t *StaticTopology) AddNode(id sim.EntityID, downlinkMbps float64) {
	t.downlink[id] = downlinkMbps
}

// SetLatency sets the latency between two nodes in both directions.
func (t *StaticTopology) SetLatency(a, b sim.EntityID, ticks int64) error {
	if ticks < 0 {
		return fmt.Errorf("latency %s<->%s must be >= 0, got %d", a, b, ticks)
	}
	t.latency[link{a, b}] = ticks
	t.latency[link{b, a}] = ticks
	return nil
}

func (t *StaticTopology) DownlinkBandwidth(node sim.EntityID) float64 {
	return t.downlink[node]
}

func (t *StaticTopology) Latency(from, to sim.EntityID) int64 {
	if from == to {
		return 0
	}
	return t.latency[link{from, to}]
}
