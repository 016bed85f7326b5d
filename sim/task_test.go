package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(out *[]*Packet) func(*Packet) {
	return func(p *Packet) { *out = append(*out, p) }
}

func TestStagedTask_ExecuteStageLifecycle(t *testing.T) {
	// GIVEN a task with one execute stage of 100 MI
	task := NewStagedTask("A", "vm1").AddStage(NewExecuteStage(100, 0))
	require.Equal(t, TaskPending, task.State)

	// WHEN it starts and receives half of its work
	task.start(10)
	task.execute(50)

	// THEN it stays active until the remainder is processed
	assert.Equal(t, TaskExecuting, task.State)
	assert.False(t, task.step(20, nil, nil))
	rem, ok := task.remaining()
	require.True(t, ok)
	assert.InDelta(t, 50, rem, 1e-9)

	task.execute(80) // capped at the stage length
	assert.True(t, task.step(30, nil, nil))
	assert.Equal(t, TaskComplete, task.State)
	assert.Equal(t, int64(10), task.StartTime)
	assert.Equal(t, int64(30), task.FinishTime)
	assert.InDelta(t, 100, task.TotalProcessed(), 1e-9)
	assert.Equal(t, 1, task.CurrentIndex())
}

func TestStagedTask_NoStagesCompletesOnStart(t *testing.T) {
	task := NewStagedTask("empty", "vm1")
	task.start(7)
	assert.Equal(t, TaskComplete, task.State)
	assert.Equal(t, int64(7), task.FinishTime)
}

func TestStagedTask_SendCompletesOnlyWhenAllPacketsAccepted(t *testing.T) {
	// GIVEN a task that sends 2 packets of 1000 bytes to B@vm2
	peer := Endpoint{Task: "B", VM: "vm2"}
	task := NewStagedTask("A", "vm1").AddStage(NewSendStage(peer, 1000, 2, 0))
	var sent []*Packet

	// WHEN the send stage starts
	task.start(5)
	assert.True(t, task.step(5, collect(&sent), nil))

	// THEN both packets are created with the send time and the stage waits
	require.Len(t, sent, 2)
	assert.Equal(t, TaskSending, task.State)
	for i, p := range sent {
		assert.Equal(t, int64(5), p.SendTime())
		assert.Equal(t, int64(1000), p.Size())
		assert.Equal(t, peer, p.Destination())
		assert.Equal(t, Endpoint{Task: "A", VM: "vm1"}, p.Source())
		assert.Equal(t, []string{"A/1", "A/2"}[i], p.ID())
	}

	// WHEN only one is accepted the stage still waits; no packets are re-sent
	receiver := NewStagedTask("B", "vm2")
	receiver.deliver(sent[0])
	assert.False(t, task.step(6, collect(&sent), nil))
	assert.Len(t, sent, 2)

	// WHEN the second is accepted the task completes
	receiver.deliver(sent[1])
	assert.True(t, task.step(9, collect(&sent), nil))
	assert.Equal(t, TaskComplete, task.State)
	assert.Equal(t, int64(9), task.FinishTime)
}

func TestStagedTask_ReceiveConsumesOldestMatchingPackets(t *testing.T) {
	// GIVEN a task expecting 2 packets from A and one from X
	task := NewStagedTask("C", "vm3").
		AddStage(NewReceiveStage(Endpoint{Task: "A"}, 2, 0)).
		AddStage(NewReceiveStage(Endpoint{Task: "X", VM: "vmX"}, 1, 0))
	task.start(0)
	dst := Endpoint{Task: "C", VM: "vm3"}
	a1 := NewPacket("a1", Endpoint{Task: "A", VM: "vm1"}, dst, 10, 0)
	x1 := NewPacket("x1", Endpoint{Task: "X", VM: "other"}, dst, 10, 0)
	a2 := NewPacket("a2", Endpoint{Task: "A", VM: "vm9"}, dst, 10, 0)
	a3 := NewPacket("a3", Endpoint{Task: "A", VM: "vm1"}, dst, 10, 0)

	// WHEN only one matching packet is present nothing is consumed
	task.deliver(a1)
	assert.False(t, task.step(1, nil, nil))
	assert.Equal(t, 1, task.PendingPackets())

	// WHEN a second one arrives the oldest two are consumed
	task.deliver(x1)
	task.deliver(a2)
	task.deliver(a3)
	assert.True(t, task.step(2, nil, nil))
	assert.Equal(t, 1, task.CurrentIndex())
	assert.Equal(t, 2, task.PendingPackets(), "x1 and a3 remain")

	// THEN the second stage does not match x1 because its VM differs
	assert.Equal(t, TaskReceiving, task.State)
	assert.False(t, task.step(3, nil, nil))
}

func TestStagedTask_ObserverSeesEveryStage(t *testing.T) {
	task := NewStagedTask("A", "vm1").
		AddStage(NewExecuteStage(0, 0)).
		AddStage(NewExecuteStage(0, 0))
	type span struct {
		id         int
		start, end int64
	}
	var spans []span
	obs := func(_ *StagedTask, st Stage, start, end int64) { spans = append(spans, span{st.ID, start, end}) }

	task.start(4)
	task.step(4, nil, obs)

	assert.Equal(t, []span{{0, 4, 4}, {1, 4, 4}}, spans)
	assert.Equal(t, TaskComplete, task.State)
}

func TestStagedTask_AddStageAfterStartPanics(t *testing.T) {
	task := NewStagedTask("A", "vm1").AddStage(NewExecuteStage(1, 0))
	task.start(0)
	assert.Panics(t, func() { task.AddStage(NewExecuteStage(1, 0)) })
}

func TestStagedTask_Stalled(t *testing.T) {
	task := NewStagedTask("C", "vm1").AddStage(NewReceiveStage(Endpoint{Task: "A"}, 1, 0))
	assert.False(t, task.Stalled(1000, 10), "pending tasks are not stalled")
	task.start(0)
	assert.False(t, task.Stalled(10, 10))
	assert.True(t, task.Stalled(11, 10))
	assert.False(t, task.Stalled(11, 0), "zero timeout disables the check")
}

func TestPacket_ReceiveTimeBeforeSendPanics(t *testing.T) {
	p := NewPacket("p", Endpoint{}, Endpoint{}, 0, 10)
	_, ok := p.ReceiveTime()
	assert.False(t, ok)
	assert.Panics(t, func() { p.SetReceiveTime(9) })
	p.SetReceiveTime(10)
	rt, ok := p.ReceiveTime()
	assert.True(t, ok)
	assert.Equal(t, int64(10), rt)
	assert.Panics(t, func() { NewPacket("neg", Endpoint{}, Endpoint{}, -1, 0) })
}

func TestStage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		stage   Stage
		wantErr bool
	}{
		{"execute", NewExecuteStage(10, 0), false},
		{"negative length", NewExecuteStage(-1, 0), true},
		{"send", NewSendStage(Endpoint{Task: "B", VM: "vm2"}, 0, 1, 0), false},
		{"send without VM", NewSendStage(Endpoint{Task: "B"}, 10, 1, 0), true},
		{"negative size", NewSendStage(Endpoint{Task: "B", VM: "vm2"}, -5, 1, 0), true},
		{"receive any VM", NewReceiveStage(Endpoint{Task: "A"}, 1, 0), false},
		{"receive without task", NewReceiveStage(Endpoint{}, 1, 0), true},
		{"zero packets", Stage{Kind: StageReceive, Peer: Endpoint{Task: "A"}}, true},
		{"unknown kind", Stage{Kind: "compute"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stage.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.True(t, IsValidStageKind("send"))
	assert.False(t, IsValidStageKind("SEND"))
}
