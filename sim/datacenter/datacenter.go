package datacenter

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/netsim-lab/netsim/sim"
	"github.com/netsim-lab/netsim/sim/trace"
)

// DefaultID is the entity id a Datacenter registers under when Config.ID is empty.
const DefaultID sim.EntityID = "datacenter"

// Config holds the optional Datacenter settings.
type Config struct {
	ID           sim.EntityID
	Seed         int64
	StallTimeout int64       // ticks without stage progress before a task is reported; 0 disables
	Scope        tally.Scope // nil disables metrics
	Recorder     trace.Recorder
}

// Datacenter owns hosts, edge switches and VMs, and advances every host on
// ProcessingUpdate events.
//
// Thread-safety: NOT thread-safe. All methods must be called from the
// simulation goroutine.
type Datacenter struct {
	id       sim.EntityID
	sim      *sim.Simulator
	topology Topology
	scope    tally.Scope
	rng      *sim.PartitionedRNG
	recorder trace.Recorder

	switches  map[sim.EntityID]*EdgeSwitch
	hosts     []Host
	hostsByID map[HostID]*NetworkHost
	vms       map[sim.VMID]*sim.VM
	vmHost    map[sim.VMID]HostID
	tasks     []*sim.StagedTask

	stallTimeout int64
	stalled      []sim.TaskID
	pending      map[int64]bool // ticks with a scheduled ProcessingUpdate
	started      bool
}

// NewDatacenter creates a datacenter and registers it with s.
func NewDatacenter(s *sim.Simulator, topology Topology, cfg Config) *Datacenter {
	if s == nil || topology == nil {
		panic("NewDatacenter: simulator and topology are required")
	}
	if cfg.ID == "" {
		cfg.ID = DefaultID
	}
	if cfg.Scope == nil {
		cfg.Scope = tally.NoopScope
	}
	d := &Datacenter{
		id:           cfg.ID,
		sim:          s,
		topology:     topology,
		scope:        cfg.Scope,
		rng:          sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed)),
		recorder:     cfg.Recorder,
		switches:     make(map[sim.EntityID]*EdgeSwitch),
		hostsByID:    make(map[HostID]*NetworkHost),
		vms:          make(map[sim.VMID]*sim.VM),
		vmHost:       make(map[sim.VMID]HostID),
		stallTimeout: cfg.StallTimeout,
		pending:      make(map[int64]bool),
	}
	s.Register(d)
	return d
}

func (d *Datacenter) ID() sim.EntityID { return d.id }

// AddSwitch creates an edge switch. Its downlink bandwidth comes from the topology.
func (d *Datacenter) AddSwitch(id sim.EntityID) (*EdgeSwitch, error) {
	if _, exists := d.switches[id]; exists {
		return nil, fmt.Errorf("switch %s already exists", id)
	}
	sw := &EdgeSwitch{id: id, dc: d, metrics: newSwitchMetrics(d.scope, string(id))}
	d.switches[id] = sw
	d.sim.Register(sw)
	return sw, nil
}

// AddHost creates a network host attached to switch sw. The host gets the
// switch's downlink bandwidth unless bandwidthMbps overrides it (> 0).
// A resulting bandwidth <= 0 fails with ErrBandwidthConfiguration.
func (d *Datacenter) AddHost(id HostID, pes int, mips float64, sw sim.EntityID, bandwidthMbps float64) (*NetworkHost, error) {
	if _, exists := d.hostsByID[id]; exists {
		return nil, fmt.Errorf("host %s already exists", id)
	}
	if _, ok := d.switches[sw]; !ok {
		return nil, fmt.Errorf("host %s: unknown switch %s", id, sw)
	}
	if bandwidthMbps < 0 {
		return nil, errors.Wrapf(ErrBandwidthConfiguration, "host %s: override %v Mbps", id, bandwidthMbps)
	}
	if pes < 1 || mips <= 0 {
		return nil, fmt.Errorf("host %s: needs PEs >= 1 and MIPS > 0, got %d and %v", id, pes, mips)
	}
	bw := bandwidthMbps
	if bw == 0 {
		bw = d.topology.DownlinkBandwidth(sw)
	}

	h := NewNetworkHost(id, pes, mips, d.sim, d.scope)
	if err := h.Router().Attach(sw, bw); err != nil {
		return nil, err
	}
	h.Router().SetRecorder(d.recorder)
	d.hosts = append(d.hosts, h)
	d.hostsByID[id] = h
	return h, nil
}

// Host returns a host by id.
func (d *Datacenter) Host(id HostID) (*NetworkHost, bool) {
	h, ok := d.hostsByID[id]
	return h, ok
}

// HostOf returns the host vm currently lives on.
func (d *Datacenter) HostOf(vm sim.VMID) (*NetworkHost, bool) {
	id, ok := d.vmHost[vm]
	if !ok {
		return nil, false
	}
	return d.hostsByID[id], true
}

// VM returns a placed VM by id.
func (d *Datacenter) VM(id sim.VMID) (*sim.VM, bool) {
	vm, ok := d.vms[id]
	return vm, ok
}

// PlaceVM puts vm on host.
func (d *Datacenter) PlaceVM(vm *sim.VM, host HostID) error {
	if _, exists := d.vms[vm.ID]; exists {
		return fmt.Errorf("VM %s already placed", vm.ID)
	}
	h, ok := d.hostsByID[host]
	if !ok {
		return fmt.Errorf("VM %s: unknown host %s", vm.ID, host)
	}
	if err := h.AddVM(vm); err != nil {
		return err
	}
	vm.Scheduler.SetStageObserver(d.observeStage)
	d.vms[vm.ID] = vm
	d.vmHost[vm.ID] = host
	logrus.Debugf("VM %s placed on host %s", vm.ID, host)
	return nil
}

// PlaceVMAuto puts vm on the host with the most free PEs; ties go to the
// host added first.
func (d *Datacenter) PlaceVMAuto(vm *sim.VM) (HostID, error) {
	var best *NetworkHost
	for _, h := range d.hosts {
		nh := d.hostsByID[h.ID()]
		if nh.FreePEs() < vm.PEs {
			continue
		}
		if best == nil || nh.FreePEs() > best.FreePEs() {
			best = nh
		}
	}
	if best == nil {
		return "", fmt.Errorf("VM %s: no host has %d free PEs", vm.ID, vm.PEs)
	}
	return best.ID(), d.PlaceVM(vm, best.ID())
}

// PlaceVMRandom puts vm on a host drawn uniformly from those with enough free PEs.
func (d *Datacenter) PlaceVMRandom(vm *sim.VM) (HostID, error) {
	var fits []HostID
	for _, h := range d.hosts {
		if d.hostsByID[h.ID()].FreePEs() >= vm.PEs {
			fits = append(fits, h.ID())
		}
	}
	if len(fits) == 0 {
		return "", fmt.Errorf("VM %s: no host has %d free PEs", vm.ID, vm.PEs)
	}
	host := fits[d.rng.ForSubsystem(sim.SubsystemPlacement).Intn(len(fits))]
	return host, d.PlaceVM(vm, host)
}

// MigrateVM moves a placed VM to another host. Packets already in flight
// follow it if they reach a switch after the move; packets buffered at the
// old host are dropped there.
func (d *Datacenter) MigrateVM(id sim.VMID, to HostID) error {
	vm, ok := d.vms[id]
	if !ok {
		return fmt.Errorf("migrate: unknown VM %s", id)
	}
	from := d.vmHost[id]
	if from == to {
		return nil
	}
	dst, ok := d.hostsByID[to]
	if !ok {
		return fmt.Errorf("migrate VM %s: unknown host %s", id, to)
	}
	src := d.hostsByID[from]
	if d.started {
		vm.Scheduler.Update(d.sim.Now(), src.AllocatedMIPS(vm))
	}
	src.RemoveVM(id)
	if err := dst.AddVM(vm); err != nil {
		// Put it back; the source had room a moment ago.
		_ = src.AddVM(vm)
		return err
	}
	d.vmHost[id] = to
	logrus.Infof("[tick %07d] VM %s migrated from host %s to host %s", d.sim.Now(), id, from, to)
	if d.started {
		d.requestUpdate(d.sim.Now())
	}
	return nil
}

type migration struct {
	vm sim.VMID
	to HostID
}

// ScheduleMigration moves vm to host at tick at.
func (d *Datacenter) ScheduleMigration(vm sim.VMID, to HostID, at int64) error {
	if _, ok := d.vms[vm]; !ok {
		return fmt.Errorf("migrate: unknown VM %s", vm)
	}
	if _, ok := d.hostsByID[to]; !ok {
		return fmt.Errorf("migrate VM %s: unknown host %s", vm, to)
	}
	if at < d.sim.Now() {
		return fmt.Errorf("migrate VM %s: tick %d is in the past", vm, at)
	}
	d.sim.Send(at-d.sim.Now(), d.id, sim.TagProcessingUpdate, migration{vm: vm, to: to})
	return nil
}

// Submit hands a task to the scheduler of its VM.
func (d *Datacenter) Submit(t *sim.StagedTask) error {
	vm, ok := d.vms[t.VM]
	if !ok {
		return fmt.Errorf("task %s: VM %q is not placed", t.ID, t.VM)
	}
	if err := vm.Scheduler.Submit(t); err != nil {
		return err
	}
	d.tasks = append(d.tasks, t)
	if d.started {
		d.requestUpdate(d.sim.Now())
	}
	return nil
}

// Tasks returns every submitted task in submission order.
func (d *Datacenter) Tasks() []*sim.StagedTask {
	return d.tasks
}

// Start schedules the first processing update at the current tick.
func (d *Datacenter) Start() {
	d.started = true
	d.requestUpdate(d.sim.Now())
}

// requestUpdate schedules at most one ProcessingUpdate per tick.
func (d *Datacenter) requestUpdate(at int64) {
	if d.pending[at] {
		return
	}
	d.pending[at] = true
	d.sim.Send(at-d.sim.Now(), d.id, sim.TagProcessingUpdate, nil)
}

// Process handles ProcessingUpdate events. A migration payload moves a VM
// and requests an update at the same tick.
func (d *Datacenter) Process(s *sim.Simulator, tag sim.EventTag, payload any) {
	if tag != sim.TagProcessingUpdate {
		logrus.Warnf("[tick %07d] datacenter %s: unexpected tag %s", s.Now(), d.id, tag)
		return
	}
	if m, ok := payload.(migration); ok {
		if err := d.MigrateVM(m.vm, m.to); err != nil {
			logrus.Warnf("[tick %07d] %v", s.Now(), err)
		}
		return
	}
	d.update(s)
}

// update advances every host at now until no host makes progress, then
// flushes each host's remote packets once. Each pass either completes a
// stage or moves a packet, so the loop ends.
func (d *Datacenter) update(s *sim.Simulator) {
	now := s.Now()
	delete(d.pending, now)
	for {
		progressed := false
		for _, h := range d.hosts {
			p, err := h.Advance(now)
			if err != nil {
				d.halt(s, err)
				return
			}
			progressed = progressed || p
		}
		if !progressed {
			break
		}
	}
	for _, h := range d.hosts {
		held, err := h.Flush(now)
		if err != nil {
			d.halt(s, err)
			return
		}
		if held {
			logrus.Debugf("[tick %07d] host %s already flushed, remote packets wait for the next tick", now, h.ID())
			d.requestUpdate(now + 1)
		}
	}
	d.checkStalls(now)
	d.scheduleNext(now)
}

func (d *Datacenter) halt(s *sim.Simulator, err error) {
	logrus.Errorf("[tick %07d] %v", s.Now(), err)
	s.Halt(err)
}

func (d *Datacenter) checkStalls(now int64) {
	if d.stallTimeout <= 0 {
		return
	}
	for _, h := range d.hosts {
		for _, id := range d.hostsByID[h.ID()].ResidentVMs() {
			for _, t := range d.vms[id].Scheduler.StalledTasks(now, d.stallTimeout) {
				cur, _ := t.CurrentStage()
				logrus.Warnf("[tick %07d] task %s on VM %s made no progress since tick %d (waiting in %s)",
					now, t.ID, t.VM, t.LastProgress(), cur)
				if !slices.Contains(d.stalled, t.ID) {
					d.stalled = append(d.stalled, t.ID)
				}
			}
		}
	}
}

// scheduleNext requests an update at the earliest execute completion. When
// nothing is executing but some task waits unreported, it requests one more
// update after the stall timeout so the stall can be diagnosed.
func (d *Datacenter) scheduleNext(now int64) {
	next, found := int64(math.MaxInt64), false
	for _, h := range d.hosts {
		if t, ok := h.NextCompletion(now); ok && t < next {
			next, found = t, true
		}
	}
	if found {
		d.requestUpdate(next)
		return
	}
	if d.stallTimeout <= 0 {
		return
	}
	for _, t := range d.tasks {
		if !t.IsFinished() && t.State != sim.TaskPending && !t.StallReported() {
			d.requestUpdate(max(t.LastProgress()+d.stallTimeout+1, now))
			return
		}
	}
}

func (d *Datacenter) observeStage(t *sim.StagedTask, st sim.Stage, start, end int64) {
	logrus.Debugf("[tick %07d] task %s finished %s", end, t.ID, st)
	if d.recorder == nil {
		return
	}
	d.recorder.RecordStage(trace.StageRecord{
		TaskID: string(t.ID),
		VM:     string(t.VM),
		Stage:  st.ID,
		Kind:   string(st.Kind),
		Start:  start,
		End:    end,
	})
}

// TaskOutcome is one task's line in a Summary.
type TaskOutcome struct {
	ID     sim.TaskID
	VM     sim.VMID
	State  sim.TaskState
	Stage  int // stages completed
	Stages int
	Start  int64
	Finish int64
}

// Summary describes a finished run.
type Summary struct {
	Status     sim.RunStatus
	Clock      int64
	Err        error
	Completed  int
	Total      int
	Tasks      []TaskOutcome
	HostBytes  map[HostID]int64
	TotalBytes int64
	Stalled    []sim.TaskID
}

// Finalize builds the run summary from the simulator result.
func (d *Datacenter) Finalize(res sim.Result) Summary {
	sum := Summary{
		Status:    res.Status,
		Clock:     res.Clock,
		Err:       res.Err,
		Total:     len(d.tasks),
		HostBytes: make(map[HostID]int64, len(d.hosts)),
		Stalled:   append([]sim.TaskID(nil), d.stalled...),
	}
	for _, t := range d.tasks {
		if t.State == sim.TaskComplete {
			sum.Completed++
		}
		sum.Tasks = append(sum.Tasks, TaskOutcome{
			ID:     t.ID,
			VM:     t.VM,
			State:  t.State,
			Stage:  t.CurrentIndex(),
			Stages: len(t.Stages()),
			Start:  t.StartTime,
			Finish: t.FinishTime,
		})
	}
	for id, h := range d.hostsByID {
		sum.HostBytes[id] = h.TotalDataTransferBytes()
		sum.TotalBytes += h.TotalDataTransferBytes()
	}
	return sum
}

// Print writes a human-readable report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "=== Simulation Summary ===\n")
	fmt.Fprintf(w, "Status          : %s\n", s.Status)
	fmt.Fprintf(w, "Final clock     : %d ticks (%.6f s)\n", s.Clock, sim.TicksToSeconds(s.Clock))
	if s.Err != nil {
		fmt.Fprintf(w, "Error           : %v\n", s.Err)
	}
	fmt.Fprintf(w, "Tasks completed : %d / %d\n", s.Completed, s.Total)
	for _, t := range s.Tasks {
		if t.State == sim.TaskComplete {
			fmt.Fprintf(w, "  %-12s VM %-8s start %10d  finish %10d\n", t.ID, t.VM, t.Start, t.Finish)
		} else {
			fmt.Fprintf(w, "  %-12s VM %-8s %s at stage %d/%d\n", t.ID, t.VM, t.State, t.Stage, t.Stages)
		}
	}
	hosts := make([]HostID, 0, len(s.HostBytes))
	for id := range s.HostBytes {
		hosts = append(hosts, id)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i] < hosts[j] })
	fmt.Fprintf(w, "Bytes sent      : %d\n", s.TotalBytes)
	for _, id := range hosts {
		fmt.Fprintf(w, "  host %-10s %d\n", id, s.HostBytes[id])
	}
	if len(s.Stalled) > 0 {
		fmt.Fprintf(w, "Stalled tasks   : %v\n", s.Stalled)
	}
}
