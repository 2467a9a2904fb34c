package sched

import "sync"

// Semaphore is a counting semaphore (spec.md §4.1). It adapts the
// compare-and-retry-under-lock idiom in the teacher's ilock.go (an atomic
// state word guarded by re-check-and-block loops) to this package's
// cooperative scheduler: instead of a condition variable, a blocked waiter
// parks on the scheduler itself via Block, and Up wakes exactly the one
// waiter it releases via Unblock.
//
// Waiters are kept in a plain slice, not a heap: spec.md §4.1 requires the
// waiter list to be re-scanned for the highest *current* priority at each Up,
// since a waiter's priority can change (via donation) while it sleeps, and a
// slice rescan is simpler to get right than keeping a heap reordered on every
// external priority change.
type Semaphore struct {
	mu      sync.Mutex
	value   int
	waiters []*Thread
}

// NewSemaphore returns a semaphore with the given initial value.
func NewSemaphore(value int) *Semaphore {
	return &Semaphore{value: value}
}

// Down waits for the semaphore to become positive, then decrements it
// (spec.md §4.1's sema_down).
func (sem *Semaphore) Down(s *Scheduler) {
	t := s.Current()
	sem.mu.Lock()
	for sem.value == 0 {
		sem.waiters = append(sem.waiters, t)
		sem.mu.Unlock()
		s.Block()
		sem.mu.Lock()
	}
	sem.value--
	sem.mu.Unlock()
}

// TryDown decrements the semaphore and returns true only if it was already
// positive; it never blocks (spec.md §4.1's sema_try_down).
func (sem *Semaphore) TryDown() bool {
	sem.mu.Lock()
	defer sem.mu.Unlock()
	if sem.value > 0 {
		sem.value--
		return true
	}
	return false
}

// Up increments the semaphore and, if any thread is waiting, wakes whichever
// waiter currently has the highest effective priority (spec.md §4.1).
func (sem *Semaphore) Up(s *Scheduler) {
	sem.mu.Lock()
	var next *Thread
	if len(sem.waiters) > 0 {
		best := 0
		for i := 1; i < len(sem.waiters); i++ {
			if sem.waiters[i].priority > sem.waiters[best].priority {
				best = i
			}
		}
		next = sem.waiters[best]
		sem.waiters = append(sem.waiters[:best], sem.waiters[best+1:]...)
	}
	sem.value++
	sem.mu.Unlock()

	if next != nil {
		s.Unblock(next)
	}
}
