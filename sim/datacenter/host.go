package datacenter

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/uber-go/tally/v4"

	"github.com/netsim-lab/netsim/sim"
)

// Host is a physical machine the datacenter advances once per processing pass.
type Host interface {
	ID() HostID
	// Advance runs the host at now. Returns true if anything changed, in
	// which case the datacenter runs another pass at the same tick.
	Advance(now int64) (bool, error)
	// Flush sends what the passes at now left for other hosts. Returns true
	// if packets are held back for the next tick.
	Flush(now int64) (bool, error)
	// NextCompletion returns the earliest tick a running execute stage ends.
	NextCompletion(now int64) (int64, bool)
}

// ComputeHost runs its resident VMs. Its PEs are time-shared: when the VMs
// ask for more MIPS than the host has, every VM is scaled down by the same
// factor.
//
// Thread-safety: NOT thread-safe.
type ComputeHost struct {
	id   HostID
	pes  int
	mips float64 // per PE
	vms  []*sim.VM
}

// NewComputeHost creates an empty host. Panics if pes < 1 or mips <= 0.
func NewComputeHost(id HostID, pes int, mips float64) *ComputeHost {
	if pes < 1 || mips <= 0 {
		panic(fmt.Sprintf("NewComputeHost: host %s needs PEs >= 1 and MIPS > 0, got %d and %v", id, pes, mips))
	}
	return &ComputeHost{id: id, pes: pes, mips: mips}
}

func (h *ComputeHost) ID() HostID     { return h.id }
func (h *ComputeHost) HostID() HostID { return h.id }
func (h *ComputeHost) PEs() int       { return h.pes }

// FreePEs returns the PEs not claimed by a resident VM.
func (h *ComputeHost) FreePEs() int {
	used := 0
	for _, vm := range h.vms {
		used += vm.PEs
	}
	return h.pes - used
}

// AddVM makes vm resident. Fails if the host lacks free PEs.
func (h *ComputeHost) AddVM(vm *sim.VM) error {
	if h.IsResident(vm.ID) {
		return fmt.Errorf("host %s: VM %s already resident", h.id, vm.ID)
	}
	if vm.PEs > h.FreePEs() {
		return fmt.Errorf("host %s: VM %s needs %d PEs, %d free", h.id, vm.ID, vm.PEs, h.FreePEs())
	}
	h.vms = append(h.vms, vm)
	return nil
}

// RemoveVM evicts a resident VM. Returns nil if it was not resident.
func (h *ComputeHost) RemoveVM(id sim.VMID) *sim.VM {
	for i, vm := range h.vms {
		if vm.ID == id {
			h.vms = append(h.vms[:i], h.vms[i+1:]...)
			return vm
		}
	}
	return nil
}

// ResidentVMs returns VM ids in placement order.
func (h *ComputeHost) ResidentVMs() []sim.VMID {
	ids := make([]sim.VMID, len(h.vms))
	for i, vm := range h.vms {
		ids[i] = vm.ID
	}
	return ids
}

func (h *ComputeHost) IsResident(id sim.VMID) bool {
	return h.vm(id) != nil
}

func (h *ComputeHost) vm(id sim.VMID) *sim.VM {
	for _, vm := range h.vms {
		if vm.ID == id {
			return vm
		}
	}
	return nil
}

// SchedulerFor resolves a resident VM's scheduler.
func (h *ComputeHost) SchedulerFor(id sim.VMID) (PacketScheduler, error) {
	vm := h.vm(id)
	if vm == nil {
		return nil, errors.Wrapf(ErrUnresolvedDestination, "VM %s is not on host %s", id, h.id)
	}
	return vm.Scheduler, nil
}

// AllocatedMIPS returns the MIPS the host gives vm.
func (h *ComputeHost) AllocatedMIPS(vm *sim.VM) float64 {
	requested := 0.0
	for _, v := range h.vms {
		requested += v.RequestedMIPS()
	}
	capacity := float64(h.pes) * h.mips
	if requested <= capacity {
		return vm.RequestedMIPS()
	}
	return vm.RequestedMIPS() * capacity / requested
}

// RunVMs runs every resident VM's scheduler at now. Returns true if any
// task or stage started or completed.
func (h *ComputeHost) RunVMs(now int64) bool {
	progressed := false
	for _, vm := range h.vms {
		if vm.Scheduler.Update(now, h.AllocatedMIPS(vm)) {
			progressed = true
		}
	}
	return progressed
}

// RefreshProcessing re-evaluates every resident VM at now.
func (h *ComputeHost) RefreshProcessing(now int64) {
	h.RunVMs(now)
}

func (h *ComputeHost) NextCompletion(now int64) (int64, bool) {
	next, found := int64(math.MaxInt64), false
	for _, vm := range h.vms {
		if t, ok := vm.Scheduler.NextCompletion(now, h.AllocatedMIPS(vm)); ok && t < next {
			next, found = t, true
		}
	}
	return next, found
}

// NetworkHost is a ComputeHost whose VMs exchange packets through a
// HostPacketRouter. Each Advance runs the VMs first, then drains the inbound
// buffer, then delivers packets between its own VMs. Remote packets leave in
// Flush, once the tick's passes are done.
type NetworkHost struct {
	*ComputeHost
	router *HostPacketRouter
}

// NewNetworkHost creates a host with an unattached router.
func NewNetworkHost(id HostID, pes int, mips float64, engine Engine, scope tally.Scope) *NetworkHost {
	h := &NetworkHost{ComputeHost: NewComputeHost(id, pes, mips)}
	h.router = NewHostPacketRouter(h.ComputeHost, engine, scope)
	return h
}

// Router returns the host's packet router.
func (h *NetworkHost) Router() *HostPacketRouter { return h.router }

// TotalDataTransferBytes returns the bytes this host sent to other hosts.
func (h *NetworkHost) TotalDataTransferBytes() int64 {
	return h.router.TotalDataTransferBytes()
}

func (h *NetworkHost) Advance(now int64) (bool, error) {
	progressed := h.RunVMs(now)
	received, err := h.router.Receive()
	if err != nil {
		return progressed, err
	}
	local, err := h.router.SendLocal()
	if err != nil {
		return progressed, err
	}
	return progressed || received > 0 || local > 0, nil
}

func (h *NetworkHost) Flush(now int64) (bool, error) {
	if _, err := h.router.Flush(); err != nil {
		return false, err
	}
	return h.router.PendingRemote() > 0, nil
}
