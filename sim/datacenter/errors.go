package datacenter

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBandwidthConfiguration rejects a host whose uplink bandwidth is not a
	// positive finite number of Mbps. It is returned at setup, never at flush.
	ErrBandwidthConfiguration = errors.New("invalid host bandwidth")
	// ErrUnresolvedDestination marks a packet whose destination VM (or task)
	// is not resident where it was delivered. Such packets are dropped.
	ErrUnresolvedDestination = errors.New("unresolved packet destination")
)

// RoutingFault reports an unexpected failure while a host router drained one
// of its buffers. Delivered packets stay delivered; the Remaining ones, starting
// with the one that failed, are still in the buffer.
type RoutingFault struct {
	Host      HostID
	Clock     int64
	Phase     string // "receive", "local" or "remote"
	Delivered int
	Dropped   int
	Remaining int
	Err       error
}

func (f *RoutingFault) Error() string {
	return fmt.Sprintf("routing fault on host %s at tick %d during %s (%d delivered, %d dropped, %d remaining): %v",
		f.Host, f.Clock, f.Phase, f.Delivered, f.Dropped, f.Remaining, f.Err)
}

// Unwrap supports errors.Is/As from the standard library.
func (f *RoutingFault) Unwrap() error { return f.Err }

// Cause supports errors.Cause from github.com/pkg/errors.
func (f *RoutingFault) Cause() error { return f.Err }
