package sim

import "math"

// TicksPerSecond fixes the clock resolution: one tick is one microsecond.
const TicksPerSecond = 1e6

// BytesToMegabits converts a byte count to megabits (10^6 bits).
func BytesToMegabits(bytes int64) float64 {
	return float64(bytes) * 8 / 1e6
}

// SecondsToTicks rounds a duration in seconds to the nearest tick.
func SecondsToTicks(seconds float64) int64 {
	return int64(math.Round(seconds * TicksPerSecond))
}

// TicksToSeconds converts a tick count to seconds.
func TicksToSeconds(ticks int64) float64 {
	return float64(ticks) / TicksPerSecond
}
