package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

var (
	// ErrTaskNotFound is returned by Intake for a packet whose destination
	// task is not (or no longer) submitted to the VM.
	ErrTaskNotFound = errors.New("destination task not found")
	// ErrMisrouted is returned by Intake for a packet addressed to another VM.
	ErrMisrouted = errors.New("packet misrouted")
)

// TaskScheduler runs the staged tasks of one VM, space-shared: every running
// task holds one PE, extra tasks wait in FIFO order.
//
// It is also the VM's packet endpoint. Intake accepts packets for its tasks;
// packets created by send stages are queued per destination VM until the host
// collects them with DrainOutbound.
//
// Thread-safety: NOT thread-safe. All methods must be called from the same goroutine.
type TaskScheduler struct {
	vm  VMID
	pes int

	tasks    map[TaskID]*StagedTask
	order    []*StagedTask // submission order
	waiting  WaitQueue
	running  []*StagedTask
	outbound map[VMID][]*Packet

	lastUpdate int64
	observer   StageObserver
}

// NewTaskScheduler creates a scheduler for vm with pes processing elements.
// Panics if pes < 1.
func NewTaskScheduler(vm VMID, pes int) *TaskScheduler {
	if pes < 1 {
		panic(fmt.Sprintf("NewTaskScheduler: VM %s needs at least one PE, got %d", vm, pes))
	}
	return &TaskScheduler{
		vm:       vm,
		pes:      pes,
		tasks:    make(map[TaskID]*StagedTask),
		outbound: make(map[VMID][]*Packet),
	}
}

// SetStageObserver registers fn to be told about every completed stage.
func (s *TaskScheduler) SetStageObserver(fn StageObserver) {
	s.observer = fn
}

// Submit queues a pending task. Its VM must be empty or this scheduler's VM.
func (s *TaskScheduler) Submit(t *StagedTask) error {
	if t == nil {
		return fmt.Errorf("scheduler %s: nil task", s.vm)
	}
	if t.VM == "" {
		t.VM = s.vm
	}
	if t.VM != s.vm {
		return fmt.Errorf("scheduler %s: task %s is bound to VM %s", s.vm, t.ID, t.VM)
	}
	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("scheduler %s: task %s already submitted", s.vm, t.ID)
	}
	if t.State != TaskPending {
		return fmt.Errorf("scheduler %s: task %s is %s, want %s", s.vm, t.ID, t.State, TaskPending)
	}
	for _, st := range t.stages {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	s.tasks[t.ID] = t
	s.order = append(s.order, t)
	s.waiting.Enqueue(t)
	return nil
}

// Cancel removes a task. Packets that later arrive for it are rejected with
// ErrTaskNotFound. Returns false if the task is unknown or already finished.
func (s *TaskScheduler) Cancel(id TaskID, now int64) bool {
	t, ok := s.tasks[id]
	if !ok || t.IsFinished() {
		return false
	}
	if !s.waiting.Remove(id) {
		s.running = removeTask(s.running, t)
	}
	delete(s.tasks, id)
	t.cancel(now)
	return true
}

// Task returns a submitted task.
func (s *TaskScheduler) Task(id TaskID) (*StagedTask, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

// Tasks returns every task ever submitted, in submission order.
func (s *TaskScheduler) Tasks() []*StagedTask {
	return s.order
}

// Finished reports whether every submitted task reached a terminal state.
func (s *TaskScheduler) Finished() bool {
	for _, t := range s.order {
		if !t.IsFinished() {
			return false
		}
	}
	return true
}

// Intake accepts an inbound packet for later receive-stage matching.
func (s *TaskScheduler) Intake(p *Packet) error {
	if p == nil {
		return fmt.Errorf("scheduler %s: nil packet", s.vm)
	}
	dst := p.Destination()
	if dst.VM != s.vm {
		return fmt.Errorf("%w: %s for %s delivered to VM %s", ErrMisrouted, p.ID(), dst, s.vm)
	}
	t, ok := s.tasks[dst.Task]
	if !ok {
		return fmt.Errorf("%w: %s on VM %s", ErrTaskNotFound, dst.Task, s.vm)
	}
	t.deliver(p)
	return nil
}

// DrainOutbound returns the packets queued since the previous drain, keyed by
// destination VM, and resets the queue.
func (s *TaskScheduler) DrainOutbound() map[VMID][]*Packet {
	out := s.outbound
	s.outbound = make(map[VMID][]*Packet)
	return out
}

func (s *TaskScheduler) enqueueOutbound(p *Packet) {
	dst := p.Destination().VM
	s.outbound[dst] = append(s.outbound[dst], p)
}

// mipsPerTask is the share of allocatedMIPS one running task gets: one PE.
func (s *TaskScheduler) mipsPerTask(allocatedMIPS float64) float64 {
	return allocatedMIPS / float64(s.pes)
}

// Update advances every running task to now given the MIPS the host
// allocated to the VM since the previous update, starts waiting tasks on free
// PEs and completes every stage that can complete. Returns true if any task
// started or any stage started or completed.
func (s *TaskScheduler) Update(now int64, allocatedMIPS float64) bool {
	if now < s.lastUpdate {
		panic(fmt.Sprintf("TaskScheduler %s: update at %d before last update %d", s.vm, now, s.lastUpdate))
	}
	if elapsed := TicksToSeconds(now - s.lastUpdate); elapsed > 0 {
		perTask := s.mipsPerTask(allocatedMIPS)
		for _, t := range s.running {
			t.execute(perTask * elapsed)
		}
	}
	s.lastUpdate = now

	progressed := false
	for {
		changed := false
		for _, t := range s.running {
			if t.step(now, s.enqueueOutbound, s.observer) {
				changed = true
			}
		}
		s.retireFinished(now)
		for len(s.running) < s.pes && s.waiting.Len() > 0 {
			t := s.waiting.Dequeue()
			t.start(now)
			logrus.Debugf("[tick %07d] VM %s started task %s", now, s.vm, t.ID)
			s.running = append(s.running, t)
			changed = true
		}
		if !changed {
			break
		}
		progressed = true
	}
	return progressed
}

func (s *TaskScheduler) retireFinished(now int64) {
	kept := s.running[:0]
	for _, t := range s.running {
		if t.IsFinished() {
			logrus.Debugf("[tick %07d] VM %s finished task %s", now, s.vm, t.ID)
			continue
		}
		kept = append(kept, t)
	}
	clear(s.running[len(kept):])
	s.running = kept
}

// NextCompletion returns the earliest tick at which a running execute stage
// finishes under allocatedMIPS. False if no execute stage is making progress.
func (s *TaskScheduler) NextCompletion(now int64, allocatedMIPS float64) (int64, bool) {
	perTask := s.mipsPerTask(allocatedMIPS)
	if perTask <= 0 {
		return 0, false
	}
	next := int64(math.MaxInt64)
	found := false
	for _, t := range s.running {
		rem, ok := t.remaining()
		if !ok {
			continue
		}
		ticks := max(int64(math.Ceil(rem/perTask*TicksPerSecond)), 1)
		if now+ticks < next {
			next = now + ticks
		}
		found = true
	}
	return next, found
}

// StalledTasks returns tasks that made no stage progress for more than
// timeout ticks and were not reported since their last progress.
func (s *TaskScheduler) StalledTasks(now, timeout int64) []*StagedTask {
	var stalled []*StagedTask
	for _, t := range s.order {
		if t.Stalled(now, timeout) && !t.stallReported {
			t.stallReported = true
			stalled = append(stalled, t)
		}
	}
	return stalled
}

// SortedVMIDs returns the keys of a per-VM packet map in sorted order, so
// callers never depend on map iteration order.
func SortedVMIDs(m map[VMID][]*Packet) []VMID {
	ids := make([]VMID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func removeTask(ts []*StagedTask, t *StagedTask) []*StagedTask {
	for i, x := range ts {
		if x == t {
			return append(ts[:i], ts[i+1:]...)
		}
	}
	return ts
}
