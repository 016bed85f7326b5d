package datacenter

import (
	"github.com/sirupsen/logrus"

	"github.com/netsim-lab/netsim/sim"
)

// EdgeSwitch connects a group of hosts. Packets travel host → edge switch
// (NetworkUp) → edge switch of the destination host (NetworkDown) → host.
type EdgeSwitch struct {
	id      sim.EntityID
	dc      *Datacenter
	metrics *switchMetrics
}

func (sw *EdgeSwitch) ID() sim.EntityID { return sw.id }

// Process handles NetworkUp and NetworkDown deliveries carrying a *HostPacket.
func (sw *EdgeSwitch) Process(s *sim.Simulator, tag sim.EventTag, payload any) {
	hp, ok := payload.(*HostPacket)
	if !ok {
		logrus.Warnf("[tick %07d] switch %s: unexpected %s payload %T", s.Now(), sw.id, tag, payload)
		return
	}
	switch tag {
	case sim.TagNetworkUp:
		sw.forward(s, hp)
	case sim.TagNetworkDown:
		sw.deliver(s, hp)
	default:
		logrus.Warnf("[tick %07d] switch %s: unexpected tag %s", s.Now(), sw.id, tag)
	}
}

// forward resolves the host the destination VM lives on now and sends the
// packet to that host's switch after the topology latency.
func (sw *EdgeSwitch) forward(s *sim.Simulator, hp *HostPacket) {
	dst := hp.Packet.Destination().VM
	host, ok := sw.dc.HostOf(dst)
	if !ok {
		logrus.Warnf("[tick %07d] switch %s dropped packet %s: %v VM %s", s.Now(), sw.id, hp.Packet.ID(), ErrUnresolvedDestination, dst)
		sw.metrics.dropped.Inc(1)
		return
	}
	hp.Destination = host.ID()
	next := host.Router().Uplink()
	sw.metrics.forwarded.Inc(1)
	s.Send(sw.dc.topology.Latency(sw.id, next), next, sim.TagNetworkDown, hp)
}

// deliver buffers the packet at its destination host and asks for processing
// at the current tick.
func (sw *EdgeSwitch) deliver(s *sim.Simulator, hp *HostPacket) {
	host, ok := sw.dc.hostsByID[hp.Destination]
	if !ok {
		logrus.Warnf("[tick %07d] switch %s dropped packet %s: unknown host %s", s.Now(), sw.id, hp.Packet.ID(), hp.Destination)
		sw.metrics.dropped.Inc(1)
		return
	}
	host.Router().Enqueue(hp)
	sw.dc.requestUpdate(s.Now())
}
