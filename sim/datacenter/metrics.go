package datacenter

import (
	"github.com/uber-go/tally/v4"
)

// routerMetrics tracks one host router.
type routerMetrics struct {
	received        tally.Counter
	dropped         tally.Counter
	local           tally.Counter
	remote          tally.Counter
	bytes           tally.Counter
	faults          tally.Counter
	remoteBatchSize tally.Gauge
}

// newRouterMetrics returns router metrics rooted at scope and tagged with the host.
func newRouterMetrics(scope tally.Scope, host HostID) *routerMetrics {
	s := scope.SubScope("router").Tagged(map[string]string{"host": string(host)})
	return &routerMetrics{
		received:        s.Counter("packets_received"),
		dropped:         s.Counter("packets_dropped"),
		local:           s.Counter("packets_local"),
		remote:          s.Counter("packets_remote"),
		bytes:           s.Counter("bytes_transferred"),
		faults:          s.Counter("routing_faults"),
		remoteBatchSize: s.Gauge("remote_batch_size"),
	}
}

// switchMetrics tracks one edge switch.
type switchMetrics struct {
	forwarded tally.Counter
	dropped   tally.Counter
}

func newSwitchMetrics(scope tally.Scope, id string) *switchMetrics {
	s := scope.SubScope("switch").Tagged(map[string]string{"switch": id})
	return &switchMetrics{
		forwarded: s.Counter("packets_forwarded"),
		dropped:   s.Counter("packets_dropped"),
	}
}
