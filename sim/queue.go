// Implements the WaitQueue, which holds tasks submitted to a VM that do not
// have a free PE yet.

package sim

import (
	"strings"
)

// WaitQueue represents a FIFO queue of tasks waiting for a PE.
type WaitQueue struct {
	queue []*StagedTask
}

// Enqueue adds a task to the back of the wait queue.
func (wq *WaitQueue) Enqueue(t *StagedTask) {
	wq.queue = append(wq.queue, t)
}

func (wq *WaitQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, t := range wq.queue {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(string(t.ID))
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of tasks in the queue.
func (wq *WaitQueue) Len() int {
	return len(wq.queue)
}

// Dequeue removes and returns the task at the front of the queue.
// Returns nil if the queue is empty.
func (wq *WaitQueue) Dequeue() *StagedTask {
	if len(wq.queue) == 0 {
		return nil
	}
	t := wq.queue[0]
	wq.queue[0] = nil
	wq.queue = wq.queue[1:]
	return t
}

// Remove deletes the task with the given id, keeping the order of the rest.
// Returns false if it is not queued.
func (wq *WaitQueue) Remove(id TaskID) bool {
	for i, t := range wq.queue {
		if t.ID == id {
			wq.queue = append(wq.queue[:i], wq.queue[i+1:]...)
			return true
		}
	}
	return false
}

