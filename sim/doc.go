// Package sim provides the discrete-event kernel and the staged workload model
// for netsim.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - simulator.go: clock, deterministic event heap and the Run loop
//   - event.go: Event, Entity and the tagged DeliveryEvent used by Send
//   - task.go: StagedTask lifecycle (pending → execute/send/receive → complete)
//   - scheduler.go: per-VM space-shared TaskScheduler and its packet intake
//
// # Architecture
//
// The sim package knows nothing about hosts or networks. Implementations that
// need them live in sub-packages:
//   - sim/datacenter/: hosts, the per-host packet router, edge switches, placement
//   - sim/trace/: packet and stage records, in-memory and SQLite recorders
//
// # Time
//
// All timestamps are ticks; one tick is one microsecond (TicksPerSecond).
// Events at the same tick are ordered by EventTagPriority, then by the order
// in which they were scheduled.
package sim
