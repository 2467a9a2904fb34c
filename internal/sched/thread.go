package sched

import "fmt"

// Priority and nice bounds (spec.md §4.2, include/threads/thread.h).
const (
	PriMin     = 0
	PriDefault = 31
	PriMax     = 63

	NiceMin     = -20
	NiceDefault = 0
	NiceMax     = 20
)

// TimeSlice is the number of ticks a thread runs before round-robin
// preemption among equal-priority ready threads (spec.md §4.2).
const TimeSlice = 4

// TimerFreq is the number of ticks per second, used by the MLFQ load-average
// update (spec.md §4.2).
const TimerFreq = 100

// donationDepthCap bounds nested priority-donation propagation (spec.md
// §4.1, §9: "a policy, not a correctness bound").
const donationDepthCap = 8

const threadMagic = 0xcd6abf4b

// Status is a thread's position in its life cycle (spec.md §3).
type Status int

const (
	StatusRunning Status = iota
	StatusReady
	StatusBlocked
	StatusDying
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusReady:
		return "ready"
	case StatusBlocked:
		return "blocked"
	case StatusDying:
		return "dying"
	default:
		return "unknown"
	}
}

// Thread is a kernel thread control block: the scheduling, synchronization,
// and rendezvous state named in spec.md §3. User-mode attributes (pml4, the
// supplemental page table, the fd table) are not fields here: Go has no
// equivalent of Pintos's "#ifdef USERPROG"/"#ifdef VM" struct members, so
// internal/process.Process composes a *Thread with those resources instead
// of a single struct carrying unused fields for kernel-only threads.
type Thread struct {
	ID   int
	Name string

	status Status

	basePriority int // original priority, restored once donations are released
	priority     int // effective priority (cache; recomputed by donation/MLFQ)

	nice      int
	recentCPU Fixed

	waitOnLock *Lock     // non-nil while blocked acquiring a lock
	donors     []*Thread // threads that have donated priority to this one

	wakeTick     int64 // valid while sleeping
	ticks        int   // ticks consumed in the current quantum
	yieldPending bool  // set by Tick when a timer interrupt would preempt; consumed by Checkpoint

	heapIndex int   // index maintained by whichever priQueue holds this thread
	seqNo     int64 // insertion sequence into the queue currently holding it; breaks priority ties FIFO

	parent   *Thread
	children []*Thread

	forkSema *Semaphore // child signals once fork duplication finishes (or fails)
	waitSema *Semaphore // child signals on exit; parent's Wait downs this
	freeSema *Semaphore // parent signals once it has read the exit status

	exitStatus int

	magic uint32

	resume chan struct{} // parks/wakes this thread's goroutine
	body   func(*Thread)
}

func newThread(id int, name string, priority int, body func(*Thread)) *Thread {
	t := &Thread{
		ID:           id,
		Name:         name,
		status:       StatusReady,
		basePriority: priority,
		priority:     priority,
		recentCPU:    0,
		heapIndex:    -1,
		forkSema:     NewSemaphore(0),
		waitSema:     NewSemaphore(0),
		freeSema:     NewSemaphore(0),
		magic:        threadMagic,
		resume:       make(chan struct{}, 1),
		body:         body,
	}
	return t
}

// checkMagic panics if the stack canary at the base of this thread's (would
// be 4 KiB) frame has been corrupted, the same stack-overflow detection
// thread_current() performs in Pintos (spec.md §4.2).
func (t *Thread) checkMagic() {
	if t.magic != threadMagic {
		panic(fmt.Sprintf("thread %d (%s): stack overflow detected (magic corrupted)", t.ID, t.Name))
	}
}

// Status returns the thread's current scheduling status.
func (t *Thread) Status() Status { return t.status }

// BasePriority returns the thread's own priority, ignoring donations.
func (t *Thread) BasePriority() int { return t.basePriority }

// Priority returns the thread's cached effective priority: the max of its
// base priority and every currently-held donation (spec.md §3). The cache is
// kept current by donate/revoke on every lock acquire/release.
func (t *Thread) Priority() int { return t.priority }

// Nice returns the thread's niceness, used only in MLFQ mode.
func (t *Thread) Nice() int { return t.nice }

// ExitStatus returns the status a finished thread exited with.
func (t *Thread) ExitStatus() int { return t.exitStatus }

// Parent returns the thread that created this one via fork, or nil.
func (t *Thread) Parent() *Thread { return t.parent }

// Children returns the live (not yet reaped) children of this thread.
func (t *Thread) Children() []*Thread { return t.children }

// SetParent records the thread that created this one via fork.
func (t *Thread) SetParent(p *Thread) { t.parent = p }

// AddChild records a newly-forked child.
func (t *Thread) AddChild(c *Thread) { t.children = append(t.children, c) }

// RemoveChild drops c from this thread's child list, as Wait does once it
// has read c's exit status (spec.md §4.3).
func (t *Thread) RemoveChild(c *Thread) {
	for i, ch := range t.children {
		if ch == c {
			t.children = append(t.children[:i], t.children[i+1:]...)
			return
		}
	}
}

// SetExitStatus records the status a thread is exiting (or failing to
// start) with.
func (t *Thread) SetExitStatus(v int) { t.exitStatus = v }

// ForkSema, WaitSema, and FreeSema are the three rendezvous points of
// spec.md §4.3's fork/wait/exit protocol.
func (t *Thread) ForkSema() *Semaphore { return t.forkSema }
func (t *Thread) WaitSema() *Semaphore { return t.waitSema }
func (t *Thread) FreeSema() *Semaphore { return t.freeSema }

// recomputeEffectivePriority applies spec.md §4.1's rule: effective priority
// is the max of base priority and all donors' priorities. Called on lock
// acquire/release paths. MLFQ mode records no donations, so there it just
// copies the base priority that recomputePriorityMLFQLocked derives from
// recent_cpu and nice (spec.md §4.2).
func (t *Thread) recomputeEffectivePriority() {
	best := t.basePriority
	for _, d := range t.donors {
		if d.priority > best {
			best = d.priority
		}
	}
	t.priority = best
}
