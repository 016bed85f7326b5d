package trace

// TraceLevel controls which records are collected.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelPackets captures every router hand-off.
	TraceLevelPackets TraceLevel = "packets"
	// TraceLevelFull captures router hand-offs and completed stages.
	TraceLevelFull TraceLevel = "full"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:    true,
	TraceLevelPackets: true,
	TraceLevelFull:    true,
	"":                true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// Recorder receives trace records as the simulation produces them.
type Recorder interface {
	RecordPacket(PacketRecord)
	RecordStage(StageRecord)
}

// SimulationTrace collects records in memory.
type SimulationTrace struct {
	Level   TraceLevel
	Packets []PacketRecord
	Stages  []StageRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(level TraceLevel) *SimulationTrace {
	return &SimulationTrace{
		Level:   level,
		Packets: make([]PacketRecord, 0),
		Stages:  make([]StageRecord, 0),
	}
}

// RecordPacket appends a packet record unless tracing is off.
func (st *SimulationTrace) RecordPacket(record PacketRecord) {
	if st.Level == TraceLevelNone || st.Level == "" {
		return
	}
	st.Packets = append(st.Packets, record)
}

// RecordStage appends a stage record at TraceLevelFull.
func (st *SimulationTrace) RecordStage(record StageRecord) {
	if st.Level != TraceLevelFull {
		return
	}
	st.Stages = append(st.Stages, record)
}

// multi fans records out to several recorders.
type multi []Recorder

func (m multi) RecordPacket(r PacketRecord) {
	for _, rec := range m {
		rec.RecordPacket(r)
	}
}

func (m multi) RecordStage(r StageRecord) {
	for _, rec := range m {
		rec.RecordStage(r)
	}
}

// Multi returns a Recorder that forwards to every non-nil recorder.
// Returns nil when none are given.
func Multi(recorders ...Recorder) Recorder {
	var m multi
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}
