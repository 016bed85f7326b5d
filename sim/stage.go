package sim

import "fmt"

// StageKind tags what a Stage does.
type StageKind string

const (
	StageExecute StageKind = "execute"
	StageSend    StageKind = "send"
	StageReceive StageKind = "receive"
)

// IsValidStageKind returns true if the given string names a stage kind.
func IsValidStageKind(kind string) bool {
	switch StageKind(kind) {
	case StageExecute, StageSend, StageReceive:
		return true
	}
	return false
}

// Stage is one step of a StagedTask's plan. Which fields matter depends on
// Kind:
//   - execute: Length (million instructions)
//   - send: Peer, Size (bytes per packet), Packets (number to send)
//   - receive: Peer (expected sender; an empty VM matches any VM), Packets (number expected)
type Stage struct {
	ID      int // position within the owning task, set by AddStage
	Kind    StageKind
	Memory  int64 // footprint in MB
	Length  int64
	Size    int64
	Packets int
	Peer    Endpoint
}

// NewExecuteStage creates a stage that burns length MI of CPU.
func NewExecuteStage(length, memory int64) Stage {
	return Stage{Kind: StageExecute, Length: length, Memory: memory}
}

// NewSendStage creates a stage that sends packets packets of size bytes each to peer.
func NewSendStage(peer Endpoint, size int64, packets int, memory int64) Stage {
	return Stage{Kind: StageSend, Peer: peer, Size: size, Packets: max(packets, 1), Memory: memory}
}

// NewReceiveStage creates a stage that waits for packets packets from peer.
func NewReceiveStage(peer Endpoint, packets int, memory int64) Stage {
	return Stage{Kind: StageReceive, Peer: peer, Packets: max(packets, 1), Memory: memory}
}

// Validate reports a stage whose parameters cannot run.
func (s Stage) Validate() error {
	switch s.Kind {
	case StageExecute:
		if s.Length < 0 {
			return fmt.Errorf("stage %d: execute length must be >= 0, got %d", s.ID, s.Length)
		}
	case StageSend:
		if s.Peer.Task == "" || s.Peer.VM == "" {
			return fmt.Errorf("stage %d: send needs a peer task and VM, got %s", s.ID, s.Peer)
		}
		if s.Size < 0 {
			return fmt.Errorf("stage %d: send size must be >= 0, got %d", s.ID, s.Size)
		}
	case StageReceive:
		if s.Peer.Task == "" {
			return fmt.Errorf("stage %d: receive needs a peer task", s.ID)
		}
	default:
		return fmt.Errorf("stage %d: unknown kind %q", s.ID, s.Kind)
	}
	if s.Kind != StageExecute && s.Packets < 1 {
		return fmt.Errorf("stage %d: %s needs at least one packet, got %d", s.ID, s.Kind, s.Packets)
	}
	return nil
}

// matches reports whether p satisfies this receive stage.
func (s Stage) matches(p *Packet) bool {
	src := p.Source()
	return src.Task == s.Peer.Task && (s.Peer.VM == "" || src.VM == s.Peer.VM)
}

func (s Stage) String() string {
	switch s.Kind {
	case StageExecute:
		return fmt.Sprintf("Stage %d: execute %d MI", s.ID, s.Length)
	case StageSend:
		return fmt.Sprintf("Stage %d: send %dx%d bytes to %s", s.ID, s.Packets, s.Size, s.Peer)
	default:
		return fmt.Sprintf("Stage %d: receive %d from %s", s.ID, s.Packets, s.Peer)
	}
}
