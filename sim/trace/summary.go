package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	Received      int
	Local         int
	Remote        int
	Dropped       int
	RemoteBytes   int64
	MeanDelay     float64 // ticks, remote packets only
	MaxDelay      int64
	StagesByKind  map[string]int
	PacketsByHost map[string]int // host → packets it sent (local + remote)
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		StagesByKind:  make(map[string]int),
		PacketsByHost: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	var totalDelay int64
	for _, p := range st.Packets {
		switch p.Route {
		case RouteReceived:
			summary.Received++
		case RouteDropped:
			summary.Dropped++
		case RouteLocal:
			summary.Local++
			summary.PacketsByHost[p.Host]++
		case RouteRemote:
			summary.Remote++
			summary.PacketsByHost[p.Host]++
			summary.RemoteBytes += p.Bytes
			totalDelay += p.Delay
			if p.Delay > summary.MaxDelay {
				summary.MaxDelay = p.Delay
			}
		}
	}
	if summary.Remote > 0 {
		summary.MeanDelay = float64(totalDelay) / float64(summary.Remote)
	}

	for _, s := range st.Stages {
		summary.StagesByKind[s.Kind]++
	}
	return summary
}
