package sim

import "fmt"

// TaskID uniquely identifies a StagedTask.
// Uses distinct type (not alias) to prevent accidental string mixing.
type TaskID string

// VMID uniquely identifies a VM.
type VMID string

// Endpoint names one side of a transfer.
type Endpoint struct {
	Task TaskID
	VM   VMID
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s@%s", e.Task, e.VM)
}

// Packet is one data transfer between two tasks. Everything except the
// receive time is fixed when the SEND stage that produced it starts.
type Packet struct {
	id          string
	size        int64 // bytes
	src         Endpoint
	dst         Endpoint
	sendTime    int64
	receiveTime int64
	received    bool

	// receipt is shared with the SEND stage that created the packet;
	// intake at the destination counts toward that stage's completion.
	receipt *transfer
}

// NewPacket creates a packet of size bytes sent at sendTime.
// Panics on a negative size.
func NewPacket(id string, src, dst Endpoint, size int64, sendTime int64) *Packet {
	if size < 0 {
		panic(fmt.Sprintf("NewPacket: negative size %d", size))
	}
	return &Packet{id: id, size: size, src: src, dst: dst, sendTime: sendTime}
}

func (p *Packet) ID() string            { return p.id }
func (p *Packet) Size() int64           { return p.size }
func (p *Packet) Source() Endpoint      { return p.src }
func (p *Packet) Destination() Endpoint { return p.dst }
func (p *Packet) SendTime() int64       { return p.sendTime }

// ReceiveTime returns the last stamped receive time and whether one was set.
func (p *Packet) ReceiveTime() (int64, bool) {
	return p.receiveTime, p.received
}

// SetReceiveTime stamps the receive time. Panics if t precedes the send time.
func (p *Packet) SetReceiveTime(t int64) {
	if t < p.sendTime {
		panic(fmt.Sprintf("Packet %s: receive time %d before send time %d", p.id, t, p.sendTime))
	}
	p.receiveTime = t
	p.received = true
}

func (p *Packet) String() string {
	return fmt.Sprintf("Packet: (ID: %s, %d bytes, %s -> %s, sent: %d)", p.id, p.size, p.src, p.dst, p.sendTime)
}

// transfer tracks the packets of one SEND stage run.
type transfer struct {
	expected  int
	delivered int
}

func (tr *transfer) done() bool {
	return tr.delivered >= tr.expected
}
