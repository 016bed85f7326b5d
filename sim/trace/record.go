// Package trace provides packet and stage recording for netsim runs.
// This package has no dependencies on sim/ or sim/datacenter/; it stores pure data types.
package trace

// Route classifies what a host router did with a packet.
type Route string

const (
	RouteLocal    Route = "local"    // handed to a VM on the same host, no delay
	RouteRemote   Route = "remote"   // sent towards the edge switch
	RouteReceived Route = "received" // drained from the host's inbound buffer
	RouteDropped  Route = "dropped"  // destination VM no longer resident
)

// PacketRecord captures a single packet hand-off performed by a host router.
type PacketRecord struct {
	PacketID  string
	Host      string
	SrcTask   string
	SrcVM     string
	DstTask   string
	DstVM     string
	Bytes     int64
	Route     Route
	Clock     int64
	Delay     int64   // ticks until the edge switch sees it; 0 unless remote
	ShareMbps float64 // bandwidth available to this packet; 0 unless remote
}

// StageRecord captures one completed task stage.
type StageRecord struct {
	TaskID string
	VM     string
	Stage  int
	Kind   string
	Start  int64
	End    int64
}
