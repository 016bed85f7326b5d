// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// eventQueue is a min-heap ordered by (Timestamp, Priority, EventID).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type eventQueue []Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].Timestamp() != q[j].Timestamp() {
		return q[i].Timestamp() < q[j].Timestamp()
	}
	if q[i].Priority() != q[j].Priority() {
		return q[i].Priority() < q[j].Priority()
	}
	return q[i].EventID() < q[j].EventID()
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) {
	*q = append(*q, x.(Event))
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// RunStatus describes how a Run ended.
type RunStatus string

const (
	StatusCompleted  RunStatus = "completed"  // event queue drained
	StatusHorizon    RunStatus = "horizon"    // next event was past the horizon
	StatusTerminated RunStatus = "terminated" // an entity called Halt
)

// Result is returned by Run.
type Result struct {
	Status RunStatus
	Clock  int64
	Events int   // number of events executed
	Err    error // set when Status == StatusTerminated
}

// Simulator owns the simulation clock, the pending event queue and the
// registry of entities that events can be addressed to.
//
// Thread-safety: NOT thread-safe. One event is processed to completion before
// the next one is popped; entities must only be touched from event handlers.
type Simulator struct {
	clock       int64
	horizon     int64
	queue       eventQueue
	entities    map[EntityID]Entity
	nextEventID uint64
	halted      error
	hasRun      bool
}

// NewSimulator creates a Simulator. A horizon <= 0 means no horizon.
func NewSimulator(horizon int64) *Simulator {
	if horizon <= 0 {
		horizon = math.MaxInt64
	}
	return &Simulator{
		horizon:  horizon,
		queue:    make(eventQueue, 0),
		entities: make(map[EntityID]Entity),
	}
}

// Now returns the current simulation clock (in ticks).
func (s *Simulator) Now() int64 {
	return s.clock
}

// Register makes an entity addressable by Send. Panics on a duplicate ID.
func (s *Simulator) Register(e Entity) {
	if _, exists := s.entities[e.ID()]; exists {
		panic(fmt.Sprintf("Simulator.Register: entity %q already registered", e.ID()))
	}
	s.entities[e.ID()] = e
}

// Send schedules a fire-and-forget delivery of payload to target after delay
// ticks. Panics on a negative delay.
func (s *Simulator) Send(delay int64, target EntityID, tag EventTag, payload any) {
	if delay < 0 {
		panic(fmt.Sprintf("Simulator.Send: negative delay %d for %s", delay, tag))
	}
	s.Schedule(&DeliveryEvent{
		BaseEvent: s.newBaseEvent(s.clock+delay, EventTagPriority[tag]),
		Target:    target,
		Tag:       tag,
		Payload:   payload,
	})
}

// Schedule pushes an event into the queue. Events in the past panic.
func (s *Simulator) Schedule(ev Event) {
	if ev.Timestamp() < s.clock {
		panic(fmt.Sprintf("Simulator.Schedule: event at %d is before clock %d", ev.Timestamp(), s.clock))
	}
	heap.Push(&s.queue, ev)
}

func (s *Simulator) newBaseEvent(timestamp int64, priority int) BaseEvent {
	s.nextEventID++
	return BaseEvent{timestamp: timestamp, priority: priority, eventID: s.nextEventID}
}

// Halt stops the run after the current event. The first error wins.
func (s *Simulator) Halt(err error) {
	if err == nil {
		err = fmt.Errorf("simulation halted at tick %d", s.clock)
	}
	if s.halted == nil {
		s.halted = err
	}
}

// Run executes events until the queue drains, the horizon is passed or an
// entity halts the simulation. Panics if called more than once.
func (s *Simulator) Run() Result {
	if s.hasRun {
		panic("Simulator.Run() called more than once")
	}
	s.hasRun = true

	res := Result{Status: StatusCompleted}
	for len(s.queue) > 0 {
		if s.queue[0].Timestamp() > s.horizon {
			res.Status = StatusHorizon
			break
		}
		ev := heap.Pop(&s.queue).(Event)
		if ev.Timestamp() < s.clock {
			panic(fmt.Sprintf("Clock went backwards: %d < %d", ev.Timestamp(), s.clock))
		}
		s.clock = ev.Timestamp()
		ev.Execute(s)
		res.Events++
		if s.halted != nil {
			res.Status = StatusTerminated
			res.Err = s.halted
			break
		}
	}
	res.Clock = s.clock
	logrus.Infof("[tick %07d] Simulation ended (%s) after %d events", s.clock, res.Status, res.Events)
	return res
}
