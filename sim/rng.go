package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey is the seed of a run. The same key and scenario give the
// same placements, event order and finish ticks.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// SubsystemPlacement is the stream used for random VM placement.
const SubsystemPlacement = "placement"

// PartitionedRNG hands out one random stream per named consumer, seeded with
// key XOR fnv1a64(name). Drawing from one stream never shifts another, so
// adding a random consumer does not change existing placements.
//
// Thread-safety: NOT thread-safe.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG for key.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream for name, creating it on first use.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	rng, ok := p.streams[name]
	if !ok {
		rng = rand.New(rand.NewSource(p.seedFor(name)))
		p.streams[name] = rng
	}
	return rng
}

func (p *PartitionedRNG) seedFor(name string) int64 {
	return int64(p.key) ^ fnv1a64(name)
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
