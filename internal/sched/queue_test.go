package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriQueueOrdersByEffectivePriorityThenFIFO(t *testing.T) {
	q := newPriQueue(byEffectivePriority)
	low := &Thread{priority: 10, heapIndex: -1}
	mid1 := &Thread{priority: 20, heapIndex: -1}
	mid2 := &Thread{priority: 20, heapIndex: -1}
	high := &Thread{priority: 30, heapIndex: -1}

	q.insert(low)
	q.insert(mid1)
	q.insert(high)
	q.insert(mid2)

	assert.Same(t, high, q.popTop(), "highest priority first")
	assert.Same(t, mid1, q.popTop(), "equal priority broken FIFO")
	assert.Same(t, mid2, q.popTop())
	assert.Same(t, low, q.popTop())
	assert.Nil(t, q.popTop(), "empty queue returns nil")
}

func TestPriQueueOrdersByWakeTick(t *testing.T) {
	q := newPriQueue(byWakeTick)
	late := &Thread{wakeTick: 100, heapIndex: -1}
	early := &Thread{wakeTick: 10, heapIndex: -1}
	mid := &Thread{wakeTick: 50, heapIndex: -1}

	q.insert(late)
	q.insert(early)
	q.insert(mid)

	assert.Same(t, early, q.popTop())
	assert.Same(t, mid, q.popTop())
	assert.Same(t, late, q.popTop())
}

func TestPriQueueRemove(t *testing.T) {
	q := newPriQueue(byEffectivePriority)
	a := &Thread{priority: 10, heapIndex: -1}
	b := &Thread{priority: 20, heapIndex: -1}
	c := &Thread{priority: 30, heapIndex: -1}
	q.insert(a)
	q.insert(b)
	q.insert(c)

	q.remove(b)
	assert.Equal(t, 2, q.Len())
	assert.Same(t, c, q.popTop())
	assert.Same(t, a, q.popTop())

	// removing a thread no longer in any queue is a no-op.
	q.remove(b)
}

func TestPriQueuePeekDoesNotRemove(t *testing.T) {
	q := newPriQueue(byEffectivePriority)
	a := &Thread{priority: 5, heapIndex: -1}
	q.insert(a)

	assert.Same(t, a, q.peekTop())
	assert.Equal(t, 1, q.Len(), "peek must not remove")
}
