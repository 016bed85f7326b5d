package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitQueue_FIFO(t *testing.T) {
	// GIVEN a queue with tasks [A, B, C]
	wq := &WaitQueue{}
	a, b, c := NewStagedTask("A", "vm"), NewStagedTask("B", "vm"), NewStagedTask("C", "vm")
	wq.Enqueue(a)
	wq.Enqueue(b)
	wq.Enqueue(c)

	// WHEN Dequeue is called
	// THEN tasks come out in arrival order
	assert.Equal(t, 3, wq.Len())
	assert.Equal(t, "[A B C]", wq.String())
	assert.Same(t, a, wq.Dequeue())
	assert.Same(t, b, wq.Dequeue())
	assert.Equal(t, 1, wq.Len())
}

func TestWaitQueue_Empty(t *testing.T) {
	wq := &WaitQueue{}
	assert.Nil(t, wq.Dequeue())
	assert.Equal(t, "[]", wq.String())
}

func TestWaitQueue_Remove_KeepsOrder(t *testing.T) {
	wq := &WaitQueue{}
	for _, id := range []TaskID{"A", "B", "C"} {
		wq.Enqueue(NewStagedTask(id, "vm"))
	}

	assert.True(t, wq.Remove("B"))
	assert.False(t, wq.Remove("B"))
	assert.Equal(t, "[A C]", wq.String())
	assert.Equal(t, TaskID("A"), wq.Dequeue().ID)
	assert.Equal(t, TaskID("C"), wq.Dequeue().ID)
}
