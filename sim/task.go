// Defines the StagedTask struct that models a workload split into ordered
// execute/send/receive stages.

package sim

import (
	"fmt"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskExecuting TaskState = "execute_active"
	TaskSending   TaskState = "send_active"
	TaskReceiving TaskState = "receive_active"
	TaskComplete  TaskState = "complete"
	TaskCancelled TaskState = "cancelled"
)

// completionEpsilon absorbs floating point drift when comparing processed MI
// against a stage length.
const completionEpsilon = 1e-6

// StageObserver is told about every stage a task completes.
type StageObserver func(t *StagedTask, st Stage, start, end int64)

// StagedTask is a cloudlet whose execution is a fixed sequence of stages.
// Stages run strictly one after another: a send stage finishes only when all of
// its packets have been accepted by the receiver's scheduler, a receive stage
// only when the expected packets are in the task's inbound store.
type StagedTask struct {
	ID TaskID
	VM VMID

	State      TaskState
	StartTime  int64 // tick the first stage started
	FinishTime int64 // tick the last stage completed

	stages         []Stage
	current        int     // index of the active stage
	stageStart     int64   // tick the active stage started
	processed      float64 // MI processed in the active execute stage
	totalProcessed float64 // MI processed across all execute stages
	lastProgress   int64   // tick of the last stage start or completion
	stallReported  bool

	inbound []*Packet // delivered and not yet consumed, in arrival order
	sending *transfer // packets of the active send stage
	seq     int       // packets created so far, used for ids
}

// NewStagedTask creates a pending task bound to vm with no stages.
func NewStagedTask(id TaskID, vm VMID) *StagedTask {
	return &StagedTask{ID: id, VM: vm, State: TaskPending}
}

// AddStage appends a stage and assigns its ID. The plan is fixed once the task
// starts; adding a stage afterwards panics.
func (t *StagedTask) AddStage(st Stage) *StagedTask {
	if t.State != TaskPending {
		panic(fmt.Sprintf("StagedTask %s: AddStage after start (state %s)", t.ID, t.State))
	}
	st.ID = len(t.stages)
	t.stages = append(t.stages, st)
	return t
}

// Stages returns a copy of the task's plan.
func (t *StagedTask) Stages() []Stage {
	return append([]Stage(nil), t.stages...)
}

// CurrentIndex returns the index of the active stage, or len(stages) once the
// task is complete.
func (t *StagedTask) CurrentIndex() int {
	return t.current
}

// CurrentStage returns the active stage; false once the task has no stage left.
func (t *StagedTask) CurrentStage() (Stage, bool) {
	if t.current >= len(t.stages) {
		return Stage{}, false
	}
	return t.stages[t.current], true
}

// TotalProcessed returns the MI processed by all execute stages so far.
func (t *StagedTask) TotalProcessed() float64 {
	return t.totalProcessed
}

// LastProgress returns the tick the task last started or completed a stage.
func (t *StagedTask) LastProgress() int64 {
	return t.lastProgress
}

// PendingPackets returns how many delivered packets are waiting to be consumed.
func (t *StagedTask) PendingPackets() int {
	return len(t.inbound)
}

// IsFinished reports whether the task reached a terminal state.
func (t *StagedTask) IsFinished() bool {
	return t.State == TaskComplete || t.State == TaskCancelled
}

// Stalled reports whether an unfinished task has made no stage progress for
// more than timeout ticks.
func (t *StagedTask) Stalled(now, timeout int64) bool {
	if t.IsFinished() || timeout <= 0 || t.State == TaskPending {
		return false
	}
	return now-t.lastProgress > timeout
}

// StallReported reports whether the current stall was already diagnosed.
func (t *StagedTask) StallReported() bool {
	return t.stallReported
}

func (t *StagedTask) String() string {
	return fmt.Sprintf("StagedTask: (ID: %s, VM: %s, State: %s, Stage: %d/%d)", t.ID, t.VM, t.State, t.current, len(t.stages))
}

func (t *StagedTask) start(now int64) {
	t.StartTime = now
	t.stageStart = now
	t.lastProgress = now
	t.enterStage(now)
}

func (t *StagedTask) cancel(now int64) {
	t.State = TaskCancelled
	t.FinishTime = now
	t.sending = nil
}

// enterStage sets State for the active stage, or completes the task.
func (t *StagedTask) enterStage(now int64) {
	st, ok := t.CurrentStage()
	if !ok {
		t.State = TaskComplete
		t.FinishTime = now
		return
	}
	switch st.Kind {
	case StageExecute:
		t.State = TaskExecuting
	case StageSend:
		t.State = TaskSending
	case StageReceive:
		t.State = TaskReceiving
	}
}

// execute credits mi of CPU work to the active execute stage.
func (t *StagedTask) execute(mi float64) {
	st, ok := t.CurrentStage()
	if !ok || st.Kind != StageExecute || t.IsFinished() {
		return
	}
	mi = min(mi, float64(st.Length)-t.processed)
	if mi <= 0 {
		return
	}
	t.processed += mi
	t.totalProcessed += mi
}

// remaining returns the MI left in the active execute stage.
func (t *StagedTask) remaining() (float64, bool) {
	st, ok := t.CurrentStage()
	if !ok || st.Kind != StageExecute || t.IsFinished() {
		return 0, false
	}
	return float64(st.Length) - t.processed, true
}

// deliver stores an inbound packet and acknowledges it to its sender.
func (t *StagedTask) deliver(p *Packet) {
	t.inbound = append(t.inbound, p)
	if p.receipt != nil {
		p.receipt.delivered++
	}
}

// step completes as many stages as possible at now. Packets created by a send
// stage are handed to send. Returns true if any stage started or completed.
func (t *StagedTask) step(now int64, send func(*Packet), observe StageObserver) bool {
	if t.IsFinished() || t.State == TaskPending {
		return false
	}
	progressed := false
	for t.current < len(t.stages) {
		st := t.stages[t.current]
		switch st.Kind {
		case StageExecute:
			if float64(st.Length)-t.processed > completionEpsilon {
				return progressed
			}
		case StageSend:
			if t.sending == nil {
				t.sending = &transfer{expected: st.Packets}
				for i := 0; i < st.Packets; i++ {
					t.seq++
					p := NewPacket(fmt.Sprintf("%s/%d", t.ID, t.seq), Endpoint{Task: t.ID, VM: t.VM}, st.Peer, st.Size, now)
					p.receipt = t.sending
					send(p)
				}
				progressed = true
			}
			if !t.sending.done() {
				return progressed
			}
			t.sending = nil
		case StageReceive:
			if !t.consume(st) {
				return progressed
			}
		}
		t.completeStage(now, st, observe)
		progressed = true
	}
	return progressed
}

func (t *StagedTask) completeStage(now int64, st Stage, observe StageObserver) {
	if observe != nil {
		observe(t, st, t.stageStart, now)
	}
	t.current++
	t.processed = 0
	t.stageStart = now
	t.lastProgress = now
	t.stallReported = false
	t.enterStage(now)
}

// consume removes the packets a receive stage waits for, oldest first.
// Nothing is removed unless all of them are present.
func (t *StagedTask) consume(st Stage) bool {
	found := 0
	for _, p := range t.inbound {
		if st.matches(p) {
			found++
		}
	}
	if found < st.Packets {
		return false
	}
	kept := t.inbound[:0]
	taken := 0
	for _, p := range t.inbound {
		if taken < st.Packets && st.matches(p) {
			taken++
			continue
		}
		kept = append(kept, p)
	}
	clear(t.inbound[len(kept):])
	t.inbound = kept
	return true
}
