package datacenter

import (
	"fmt"

	"github.com/netsim-lab/netsim/sim"
)

// HostID uniquely identifies a host within a datacenter.
type HostID string

// HostPacket wraps a VM packet while it travels between hosts. Its
// timestamps are host-level: ReceiveTime is when the origin host picked the
// packet up from the VM, SendTime when the host dispatched it.
type HostPacket struct {
	Packet      *sim.Packet
	Origin      HostID
	Destination HostID // set by the edge switch once resolved
	SendTime    int64
	ReceiveTime int64
}

// NewHostPacket wraps p collected by origin at now.
func NewHostPacket(p *sim.Packet, origin HostID, now int64) *HostPacket {
	return &HostPacket{Packet: p, Origin: origin, ReceiveTime: now}
}

func (hp *HostPacket) String() string {
	return fmt.Sprintf("HostPacket: (%s, %s -> %s, sent: %d)", hp.Packet.ID(), hp.Origin, hp.Destination, hp.SendTime)
}
