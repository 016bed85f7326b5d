package sim

import "github.com/sirupsen/logrus"

// Event defines the interface for all simulation events.
// Each event has a Timestamp (in ticks), a Priority used to order events that
// share a timestamp, a per-simulator EventID for stable insertion-order
// tie-breaking, and an Execute method that advances simulation state.
type Event interface {
	Timestamp() int64
	Priority() int
	EventID() uint64
	Execute(*Simulator)
}

// EventTag names what a delivered event means to the receiving entity.
type EventTag string

const (
	// TagNetworkUp carries a host packet from a host to its edge switch.
	TagNetworkUp EventTag = "NetworkUp"
	// TagNetworkDown carries a host packet from a switch down to a host.
	TagNetworkDown EventTag = "NetworkDown"
	// TagProcessingUpdate asks the datacenter to advance every host.
	TagProcessingUpdate EventTag = "ProcessingUpdate"
)

// EventTagPriority defines ordering for simultaneous events.
// Lower values are processed first: packets that land at a host at time t
// are buffered before that host's processing at t drains them.
var EventTagPriority = map[EventTag]int{
	TagNetworkUp:        1,
	TagNetworkDown:      2,
	TagProcessingUpdate: 3,
}

// EntityID uniquely identifies an entity registered with a Simulator.
type EntityID string

// Entity is anything that can be the target of Simulator.Send.
type Entity interface {
	ID() EntityID
	Process(s *Simulator, tag EventTag, payload any)
}

// BaseEvent provides common event fields
type BaseEvent struct {
	timestamp int64
	priority  int
	eventID   uint64
}

func (e *BaseEvent) Timestamp() int64 {
	return e.timestamp
}

func (e *BaseEvent) Priority() int {
	return e.priority
}

func (e *BaseEvent) EventID() uint64 {
	return e.eventID
}

// DeliveryEvent hands a tagged payload to a registered entity.
type DeliveryEvent struct {
	BaseEvent
	Target  EntityID
	Tag     EventTag
	Payload any
}

// Execute dispatches the payload to the target entity. A target that was
// never registered is logged and skipped.
func (e *DeliveryEvent) Execute(s *Simulator) {
	ent, ok := s.entities[e.Target]
	if !ok {
		logrus.Warnf("[tick %07d] %s event for unknown entity %q dropped", e.timestamp, e.Tag, e.Target)
		return
	}
	logrus.Debugf("[tick %07d] %s -> %s", e.timestamp, e.Tag, e.Target)
	ent.Process(s, e.Tag, e.Payload)
}
