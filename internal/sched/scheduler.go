// Package sched implements the thread control block, run/sleep queues,
// scheduler, and the synchronization primitives built directly on top of it
// (semaphore.go, lock.go, condvar.go) — spec.md §3 and §4.1/§4.2. Lock
// acquire/release must reach directly into donor-thread fields, so (as in
// Pintos, where synch.c and thread.c are separate translation units compiled
// into one kernel) all of it lives in one Go package, split across files by
// concern.
//
// spec.md §5 is single-CPU and preemptive: at most one thread runs kernel
// code at a time, and a thread only suspends at an explicit block/down/sleep
// or at a timer-tick preemption. This package reproduces that on top of Go's
// M:N goroutine scheduler by running every thread body on its own goroutine
// but gating execution behind a single "CPU permit": only the goroutine
// holding it may run, and every suspension point hands the permit to the
// scheduler's chosen next thread before parking (grounded on the M/P/G
// hand-off in other_examples/.../toysched/step6/toysched6.go, hardened
// against missed wake-ups with the wait/notify idiom in
// other_examples/.../vanadium-go.lib/nsync/cv.go). A real timer interrupt
// never suspends and can preempt code at any instruction; Go code can only be
// preempted at a call, so Tick records that a preemption is due and
// Checkpoint (called by thread bodies and by every blocking primitive, the
// same spots a real kernel reaches schedule()) is where it actually happens.
package sched

import (
	"log"
	"os"
	"sync"
)

// Scheduler owns the ready queue, sleep list, idle thread, and (in MLFQ
// mode) the load average — the "well-defined kernel singleton" spec.md §9
// asks for, expressed as an explicit struct rather than package globals so
// tests can run many independent kernels.
type Scheduler struct {
	mu    sync.Mutex
	mlfqs bool
	log   *log.Logger

	ready    *priQueue
	sleeping *priQueue

	current *Thread
	idle    *Thread

	tick   int64
	nextID int
	all    []*Thread

	loadAvg Fixed

	pendingFree *Thread
	booted      bool
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithMLFQS selects the multi-level feedback queue policy (spec.md §4.2,
// kernel command-line flag "-mlfqs" per spec.md §6) instead of the default
// strict priority scheduler.
func WithMLFQS() Option { return func(s *Scheduler) { s.mlfqs = true } }

// WithLogger overrides the default stderr logger.
func WithLogger(l *log.Logger) Option { return func(s *Scheduler) { s.log = l } }

// New creates a scheduler, spawns its idle thread, and makes idle the
// initial running thread.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		ready:    newPriQueue(byEffectivePriority),
		sleeping: newPriQueue(byWakeTick),
		log:      log.New(os.Stderr, "", 0),
	}
	for _, o := range opts {
		o(s)
	}
	s.idle = newThread(s.allocID(), "idle", PriMin, nil)
	s.idle.status = StatusRunning
	s.current = s.idle
	s.all = append(s.all, s.idle)
	go func() {
		for {
			<-s.idle.resume
			// "disables interrupts, blocks itself, then halts until the
			// next interrupt" (spec.md §4.2): idle never does real work,
			// it just gives the CPU right back.
			s.mu.Lock()
			s.idle.status = StatusBlocked
			s.mu.Unlock()
			s.reschedule()
		}
	}()
	return s
}

func (s *Scheduler) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

// MLFQS reports whether this scheduler runs the MLFQ policy.
func (s *Scheduler) MLFQS() bool { return s.mlfqs }

// TickCount returns the current tick count.
func (s *Scheduler) TickCount() int64 { return s.tick }

// Current returns the thread presently holding the CPU permit. It asserts
// the thread's stack canary, the same check thread_current() makes in
// Pintos (spec.md §4.2).
func (s *Scheduler) Current() *Thread {
	s.mu.Lock()
	t := s.current
	s.mu.Unlock()
	t.checkMagic()
	return t
}

// LoadAvg returns the current system load average (MLFQ mode only).
func (s *Scheduler) LoadAvg() Fixed { return s.loadAvg }

// AllThreads returns every live thread, kernel and user.
func (s *Scheduler) AllThreads() []*Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Thread, len(s.all))
	copy(out, s.all)
	return out
}

// CreateThread allocates a new ready thread running body and returns it
// (spec.md §4.2/§4.3: "creation fails when allocation fails" has no Go
// analogue — allocation failure is represented by Go's own OOM, which panics
// the process, so CreateThread here is unfailing). If the new thread's
// effective priority exceeds the caller's, the caller yields immediately
// (spec.md §4.2).
//
// The very first CreateThread call is special: until then, the CPU permit
// sits with s.idle without any goroutine actually playing the running
// thread's part (the caller is whatever set up the scheduler, not a Thread
// at all). That first call performs the one-time hand-off a real kernel's
// thread_start() does, so every later context-switch decision in this
// package can keep assuming s.current names a goroutine that will actually
// act on the CPU permit it's given.
func (s *Scheduler) CreateThread(name string, priority int, body func(*Thread)) *Thread {
	s.mu.Lock()
	t := newThread(s.allocID(), name, priority, body)
	s.all = append(s.all, t)
	s.ready.insert(t)
	cur := s.current
	booting := !s.booted
	s.booted = true
	shouldYield := !booting && cur != s.idle && t.priority > cur.priority
	s.mu.Unlock()

	go func() {
		<-t.resume
		if t.body != nil {
			t.body(t)
		}
		s.finish(t)
	}()

	if booting {
		s.bootHandoff()
	} else if shouldYield {
		s.Yield()
	}
	return t
}

// bootHandoff performs the one-time switch away from the scheduler's
// construction context to the first real thread. Unlike reschedule, it does
// not wait to be resumed: there is no thread on the other end of that
// handoff, only the code that called New()/CreateThread(), which has no
// business being scheduled again.
func (s *Scheduler) bootHandoff() {
	s.mu.Lock()
	next := s.ready.popTop()
	if next == nil {
		s.mu.Unlock()
		return
	}
	s.current = next
	next.status = StatusRunning
	s.mu.Unlock()
	next.resume <- struct{}{}
}

// Block suspends the current thread. The caller must already have recorded
// it on whatever wait queue (semaphore, lock, condvar, or none at all) it
// should be woken from; Block only performs the context switch.
func (s *Scheduler) Block() {
	t := s.Current()
	s.mu.Lock()
	t.status = StatusBlocked
	s.mu.Unlock()
	s.reschedule()
}

// Unblock moves t from blocked to ready, in priority order, and yields the
// current thread immediately if t now outranks it (spec.md §4.1's semaphore
// Up rule, and §4.2's general unblock/set_priority preemption rule).
func (s *Scheduler) Unblock(t *Thread) {
	s.mu.Lock()
	t.status = StatusReady
	t.ticks = 0
	s.ready.insert(t)
	cur := s.current
	shouldYield := cur != s.idle && t.priority > cur.priority
	s.mu.Unlock()
	if shouldYield {
		s.Yield()
	}
}

// Yield inserts the current thread back onto the ready queue (unless it is
// idle) and reschedules (spec.md §4.2).
func (s *Scheduler) Yield() {
	t := s.Current()
	if t == s.idle {
		return
	}
	s.mu.Lock()
	t.status = StatusReady
	t.ticks = 0
	s.ready.insert(t)
	s.mu.Unlock()
	s.reschedule()
}

// SleepUntil blocks the current thread until the scheduler's tick counter
// reaches wakeTick (spec.md §4.2's sleep_until). It returns at once if the
// counter has already reached wakeTick.
func (s *Scheduler) SleepUntil(wakeTick int64) {
	t := s.Current()
	s.mu.Lock()
	if wakeTick <= s.tick {
		s.mu.Unlock()
		return
	}
	t.wakeTick = wakeTick
	t.status = StatusBlocked
	s.sleeping.insert(t)
	s.mu.Unlock()
	s.reschedule()
}

// Checkpoint is where a pending timer-driven preemption actually takes
// effect (see package doc). Thread bodies that run for more than one tick's
// worth of simulated work should call this periodically, the same role
// long-running Pintos test threads fill by calling thread_yield() or looping
// on timer_ticks().
func (s *Scheduler) Checkpoint() {
	t := s.Current()
	s.mu.Lock()
	pending := t.yieldPending
	t.yieldPending = false
	s.mu.Unlock()
	if pending {
		s.Yield()
	}
}

// Tick advances the simulated timer by one tick: it is the interrupt handler
// of spec.md §4.2, so (per spec.md §5) it never suspends — it only updates
// state and, at most, marks the running thread for preemption at its next
// Checkpoint.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	cur := s.current

	if cur != s.idle {
		cur.ticks++
	}

	for {
		top := s.sleeping.peekTop()
		if top == nil || top.wakeTick > s.tick {
			break
		}
		s.sleeping.popTop()
		top.status = StatusReady
		s.ready.insert(top)
	}

	if s.mlfqs {
		if cur != s.idle {
			cur.recentCPU = cur.recentCPU.AddInt(1)
		}
		if s.tick%TimerFreq == 0 {
			s.recomputeLoadAvgLocked()
			for _, th := range s.all {
				s.recomputeRecentCPULocked(th)
			}
		}
		if s.tick%4 == 0 {
			for _, th := range s.all {
				s.recomputePriorityMLFQLocked(th)
			}
		}
	}

	if cur == s.idle {
		// The idle goroutine waits on its resume channel; hand it a token so
		// it reschedules onto whatever this tick woke. Never blocks.
		if s.ready.Len() > 0 {
			select {
			case s.idle.resume <- struct{}{}:
			default:
			}
		}
		return
	}
	preempt := false
	if cur.ticks >= TimeSlice {
		if top := s.ready.peekTop(); top != nil && top.priority == cur.priority {
			preempt = true
		}
	}
	if top := s.ready.peekTop(); top != nil && top.priority > cur.priority {
		preempt = true
	}
	if preempt {
		cur.yieldPending = true
	}
}

// SetPriority sets t's base priority. Under MLFQ this is a no-op (spec.md
// §4.2: "set_priority is a no-op"). Otherwise the effective priority is
// recomputed from the (possibly unchanged) donor set, and the caller yields
// if a now higher-priority thread is ready.
func (s *Scheduler) SetPriority(t *Thread, priority int) {
	if s.mlfqs {
		return
	}
	s.mu.Lock()
	t.basePriority = priority
	t.recomputeEffectivePriority()
	cur := s.current
	shouldYield := cur == t && func() bool {
		top := s.ready.peekTop()
		return top != nil && top.priority > t.priority
	}()
	s.mu.Unlock()
	if shouldYield {
		s.Yield()
	}
}

// SetNice sets t's niceness (MLFQ mode; spec.md §4.2) and recomputes its
// priority immediately.
func (s *Scheduler) SetNice(t *Thread, nice int) {
	if nice < NiceMin {
		nice = NiceMin
	}
	if nice > NiceMax {
		nice = NiceMax
	}
	s.mu.Lock()
	t.nice = nice
	if s.mlfqs {
		s.recomputePriorityMLFQLocked(t)
	}
	cur := s.current
	shouldYield := cur == t && s.mlfqs && func() bool {
		top := s.ready.peekTop()
		return top != nil && top.priority > t.priority
	}()
	s.mu.Unlock()
	if shouldYield {
		s.Yield()
	}
}

// finish transitions t to dying and performs the final context switch away
// from it. The thread's TCB is reaped (removed from the all-thread list) on
// the scheduler's next invocation, never this one, because a thread cannot
// free its own resources while still the one executing (spec.md §3, §4.2).
func (s *Scheduler) finish(t *Thread) {
	s.mu.Lock()
	t.status = StatusDying
	s.mu.Unlock()
	s.reschedule()
}

// reschedule picks the next thread to run and performs the permit handoff.
// It must be called on the current thread's own goroutine with no lock held.
func (s *Scheduler) reschedule() {
	s.mu.Lock()
	toFree := s.pendingFree
	s.pendingFree = nil

	next := s.ready.popTop()
	if next == nil {
		next = s.idle
	}
	prev := s.current
	s.current = next
	next.status = StatusRunning
	prevDying := prev.status == StatusDying
	if prevDying {
		s.pendingFree = prev
	}
	s.mu.Unlock()

	if toFree != nil {
		s.reap(toFree)
	}

	// Picking the same thread that's already running (nothing else was
	// ready) needs no handoff at all: that thread's goroutine is the one
	// calling reschedule right now, and resume only ever has one token to
	// give — a second send here has nobody left to drain it.
	if next == prev {
		return
	}

	next.resume <- struct{}{}
	if !prevDying {
		<-prev.resume
	}
}

// reap removes a finished thread's TCB from the all-thread list.
func (s *Scheduler) reap(t *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, th := range s.all {
		if th == t {
			s.all = append(s.all[:i], s.all[i+1:]...)
			break
		}
	}
}
