package datacenter

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/netsim-lab/netsim/sim"
	"github.com/netsim-lab/netsim/sim/trace"
)

// PacketScheduler is the packet side of a VM's task scheduler.
type PacketScheduler interface {
	// Intake accepts an inbound packet for later receive-stage matching.
	Intake(p *sim.Packet) error
	// DrainOutbound returns packets queued since the previous drain, keyed by
	// destination VM.
	DrainOutbound() map[sim.VMID][]*sim.Packet
}

// Residency is what a router needs to know about its host.
type Residency interface {
	HostID() HostID
	// ResidentVMs returns the VMs currently on the host, in a stable order.
	ResidentVMs() []sim.VMID
	IsResident(vm sim.VMID) bool
	// SchedulerFor returns ErrUnresolvedDestination if vm is not resident.
	SchedulerFor(vm sim.VMID) (PacketScheduler, error)
	// RefreshProcessing re-runs every resident VM's scheduler at now.
	RefreshProcessing(now int64)
}

// Engine is the part of the simulator a router schedules deliveries with.
type Engine interface {
	Now() int64
	Send(delay int64, target sim.EntityID, tag sim.EventTag, payload any)
}

// HostPacketRouter buffers a host's inbound packets and flushes the packets
// its VMs want to send. Receive runs before SendLocal; Flush dispatches the
// remote packets at most once per tick.
//
// Every remote packet of a flush gets an equal share of the uplink, and only
// one flush runs per tick, so the bandwidth attributed at a tick never exceeds
// the host's capacity. Packets collected after the tick's flush wait for the
// next tick.
//
// Thread-safety: NOT thread-safe. Buffers are only touched during the owning
// host's processing.
type HostPacketRouter struct {
	host   Residency
	engine Engine

	uplink    sim.EntityID
	bandwidth float64 // Mbps
	attached  bool

	inbound []*HostPacket
	local   []*HostPacket
	remote  []*HostPacket

	flushedAt int64 // tick of the last remote flush, -1 before the first

	totalBytes int64
	metrics    *routerMetrics
	recorder   trace.Recorder
}

// NewHostPacketRouter creates an unattached router. A nil scope disables metrics.
func NewHostPacketRouter(host Residency, engine Engine, scope tally.Scope) *HostPacketRouter {
	if host == nil || engine == nil {
		panic("NewHostPacketRouter: host and engine are required")
	}
	if scope == nil {
		scope = tally.NoopScope
	}
	return &HostPacketRouter{
		host:      host,
		engine:    engine,
		metrics:   newRouterMetrics(scope, host.HostID()),
		flushedAt: -1,
	}
}

// Attach connects the router to its edge switch with the given capacity.
func (r *HostPacketRouter) Attach(uplink sim.EntityID, bandwidthMbps float64) error {
	if uplink == "" {
		return errors.Errorf("host %s: empty uplink", r.host.HostID())
	}
	if err := r.SetBandwidth(bandwidthMbps); err != nil {
		return err
	}
	r.uplink = uplink
	r.attached = true
	return nil
}

// SetBandwidth overrides the uplink capacity.
func (r *HostPacketRouter) SetBandwidth(mbps float64) error {
	if mbps <= 0 || math.IsNaN(mbps) || math.IsInf(mbps, 0) {
		return errors.Wrapf(ErrBandwidthConfiguration, "host %s: %v Mbps", r.host.HostID(), mbps)
	}
	r.bandwidth = mbps
	return nil
}

// Bandwidth returns the uplink capacity in Mbps.
func (r *HostPacketRouter) Bandwidth() float64 { return r.bandwidth }

// Uplink returns the edge switch the router sends remote packets to.
func (r *HostPacketRouter) Uplink() sim.EntityID { return r.uplink }

// SetRecorder sends a trace record for every hand-off to rec. Nil disables it.
func (r *HostPacketRouter) SetRecorder(rec trace.Recorder) { r.recorder = rec }

// TotalDataTransferBytes returns the bytes this host has sent to remote hosts.
func (r *HostPacketRouter) TotalDataTransferBytes() int64 { return r.totalBytes }

// Enqueue buffers a packet that arrived from the network.
func (r *HostPacketRouter) Enqueue(hp *HostPacket) {
	r.inbound = append(r.inbound, hp)
}

// InboundLen returns how many packets wait for the next Receive.
func (r *HostPacketRouter) InboundLen() int { return len(r.inbound) }

// BandwidthPerPacket is the capacity each of n packets flushed together gets.
func (r *HostPacketRouter) BandwidthPerPacket(n int) float64 {
	if n <= 1 {
		return r.bandwidth
	}
	return r.bandwidth / float64(n)
}

// TransmissionDelay returns the seconds needed to push sizeBytes through
// bandwidthMbps.
func TransmissionDelay(sizeBytes int64, bandwidthMbps float64) float64 {
	return sim.BytesToMegabits(sizeBytes) / bandwidthMbps
}

// Receive hands every buffered inbound packet, in arrival order, to its
// destination VM's scheduler. Packets whose destination is gone are dropped
// with a warning. Any other failure stops the drain and returns a
// *RoutingFault; the failed packet and the ones after it stay buffered.
func (r *HostPacketRouter) Receive() (int, error) {
	now := r.engine.Now()
	delivered, dropped := 0, 0
	for i, hp := range r.inbound {
		err := r.receiveOne(now, hp)
		switch {
		case err == nil:
			delivered++
			r.metrics.received.Inc(1)
			r.record(hp, trace.RouteReceived, now, 0, 0)
		case errors.Is(err, ErrUnresolvedDestination):
			dropped++
			r.drop(now, hp, err)
		default:
			r.inbound = r.inbound[i:]
			return delivered, r.fault(now, "receive", delivered, dropped, len(r.inbound), err)
		}
	}
	clear(r.inbound)
	r.inbound = r.inbound[:0]
	return delivered, nil
}

func (r *HostPacketRouter) receiveOne(now int64, hp *HostPacket) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("panic while receiving %v: %v", hp, rec)
		}
	}()
	p := hp.Packet
	p.SetReceiveTime(now)
	if err := r.deliver(p); err != nil {
		return err
	}
	dst := p.Destination()
	src := p.Source()
	logrus.Debugf("[tick %07d] Host %s received packet with %d bytes from task %s in VM %s and forwarded it to task %s in VM %s",
		now, r.host.HostID(), p.Size(), src.Task, src.VM, dst.Task, dst.VM)
	return nil
}

// deliver hands p to its destination scheduler on this host.
func (r *HostPacketRouter) deliver(p *sim.Packet) error {
	dst := p.Destination()
	sched, err := r.host.SchedulerFor(dst.VM)
	if err != nil {
		return err
	}
	err = sched.Intake(p)
	if errors.Is(err, sim.ErrTaskNotFound) {
		return errors.Wrap(ErrUnresolvedDestination, err.Error())
	}
	return errors.Wrapf(err, "intake of %s", p.ID())
}

func (r *HostPacketRouter) drop(now int64, hp *HostPacket, err error) {
	logrus.Warnf("[tick %07d] Host %s dropped packet %s: %v", now, r.host.HostID(), hp.Packet.ID(), err)
	r.metrics.dropped.Inc(1)
	r.record(hp, trace.RouteDropped, now, 0, 0)
}

func (r *HostPacketRouter) fault(now int64, phase string, delivered, dropped, remaining int, err error) error {
	r.metrics.faults.Inc(1)
	return &RoutingFault{
		Host:      r.host.HostID(),
		Clock:     now,
		Phase:     phase,
		Delivered: delivered,
		Dropped:   dropped,
		Remaining: remaining,
		Err:       err,
	}
}

// Send runs SendLocal then Flush. Returns the number of local and remote
// packets handled.
func (r *HostPacketRouter) Send() (int, int, error) {
	local, err := r.SendLocal()
	if err != nil {
		return local, 0, err
	}
	remote, err := r.Flush()
	return local, remote, err
}

// SendLocal collects the outbound packets of every resident VM and delivers
// those for VMs on this host immediately. Remote packets stay buffered until
// the next Flush.
func (r *HostPacketRouter) SendLocal() (int, error) {
	now := r.engine.Now()
	if err := r.collect(now); err != nil {
		return 0, err
	}
	return r.sendLocal(now)
}

// Flush dispatches the buffered remote packets to the uplink. A second call
// at the same tick sends nothing and leaves the packets for the next tick.
func (r *HostPacketRouter) Flush() (int, error) {
	now := r.engine.Now()
	if len(r.remote) == 0 || r.flushedAt == now {
		return 0, nil
	}
	n, err := r.sendRemote(now)
	if err == nil {
		r.flushedAt = now
	}
	return n, err
}

// PendingRemote returns how many remote packets wait for a Flush.
func (r *HostPacketRouter) PendingRemote() int { return len(r.remote) }

// collect splits outbound packets by whether their destination VM is resident
// right now. Residency is re-checked every flush since VMs migrate.
func (r *HostPacketRouter) collect(now int64) error {
	for _, vm := range r.host.ResidentVMs() {
		sched, err := r.host.SchedulerFor(vm)
		if err != nil {
			return r.fault(now, "collect", 0, 0, 0, err)
		}
		out := sched.DrainOutbound()
		for _, dst := range sim.SortedVMIDs(out) {
			for _, p := range out[dst] {
				hp := NewHostPacket(p, r.host.HostID(), now)
				if r.host.IsResident(dst) {
					hp.Destination = r.host.HostID()
					r.local = append(r.local, hp)
				} else {
					r.remote = append(r.remote, hp)
				}
			}
		}
	}
	return nil
}

// sendLocal hands local packets over without propagation delay, then lets
// every resident VM react to them at the same tick.
func (r *HostPacketRouter) sendLocal(now int64) (int, error) {
	if len(r.local) == 0 {
		return 0, nil
	}
	delivered, dropped := 0, 0
	for i, hp := range r.local {
		hp.SendTime = hp.ReceiveTime
		err := r.sendLocalOne(now, hp)
		switch {
		case err == nil:
			delivered++
			r.metrics.local.Inc(1)
			r.record(hp, trace.RouteLocal, now, 0, 0)
		case errors.Is(err, ErrUnresolvedDestination):
			dropped++
			r.drop(now, hp, err)
		default:
			r.local = r.local[i:]
			return delivered, r.fault(now, "local", delivered, dropped, len(r.local), err)
		}
	}
	clear(r.local)
	r.local = r.local[:0]
	if delivered > 0 {
		r.host.RefreshProcessing(now)
	}
	return delivered, nil
}

func (r *HostPacketRouter) sendLocalOne(now int64, hp *HostPacket) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("panic while delivering %v locally: %v", hp, rec)
		}
	}()
	hp.Packet.SetReceiveTime(now)
	return r.deliver(hp.Packet)
}

// sendRemote dispatches remote packets to the uplink. Every packet of the
// batch gets an equal share of the bandwidth.
func (r *HostPacketRouter) sendRemote(now int64) (int, error) {
	n := len(r.remote)
	if n == 0 {
		return 0, nil
	}
	if !r.attached {
		return 0, r.fault(now, "remote", 0, 0, n,
			errors.Wrapf(ErrBandwidthConfiguration, "host %s has no uplink", r.host.HostID()))
	}
	share := r.BandwidthPerPacket(n)
	r.metrics.remoteBatchSize.Update(float64(n))
	for _, hp := range r.remote {
		size := hp.Packet.Size()
		delay := sim.SecondsToTicks(TransmissionDelay(size, share))
		r.totalBytes += size
		hp.SendTime = now
		r.engine.Send(delay, r.uplink, sim.TagNetworkUp, hp)
		r.metrics.remote.Inc(1)
		r.metrics.bytes.Inc(size)
		r.record(hp, trace.RouteRemote, now, delay, share)
	}
	clear(r.remote)
	r.remote = r.remote[:0]
	return n, nil
}

func (r *HostPacketRouter) record(hp *HostPacket, route trace.Route, now, delay int64, share float64) {
	if r.recorder == nil {
		return
	}
	p := hp.Packet
	src, dst := p.Source(), p.Destination()
	r.recorder.RecordPacket(trace.PacketRecord{
		PacketID:  p.ID(),
		Host:      string(r.host.HostID()),
		SrcTask:   string(src.Task),
		SrcVM:     string(src.VM),
		DstTask:   string(dst.Task),
		DstVM:     string(dst.VM),
		Bytes:     p.Size(),
		Route:     route,
		Clock:     now,
		Delay:     delay,
		ShareMbps: share,
	})
}
