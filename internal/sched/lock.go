package sched

// Lock is a binary semaphore with an owner and priority donation (spec.md
// §4.1). All bookkeeping on Lock and Thread donation fields happens while
// the caller holds the single CPU permit (see scheduler.go's package doc),
// so none of it needs its own mutex: at most one goroutine ever touches a
// given Lock at a time.
type Lock struct {
	sema   *Semaphore
	holder *Thread
}

// NewLock returns an unheld lock.
func NewLock() *Lock {
	return &Lock{sema: NewSemaphore(1)}
}

// Holder returns the thread currently holding l, or nil.
func (l *Lock) Holder() *Thread { return l.holder }

// Acquire blocks until l is free, then takes it. If l is already held,
// Acquire donates the caller's priority up the chain of lock holders
// (capped at donationDepthCap nested locks — spec.md §9 calls this a policy
// bound, not a correctness one). Acquiring a lock already held by the
// calling thread is undefined behavior in Pintos and is asserted against
// here.
func (l *Lock) Acquire(s *Scheduler, t *Thread) {
	if l.holder == t {
		panic("sched: lock: recursive acquire by current holder")
	}
	if l.holder != nil && !s.mlfqs {
		t.waitOnLock = l
		cur := t
		for depth := 0; depth < donationDepthCap; depth++ {
			wl := cur.waitOnLock
			if wl == nil || wl.holder == nil {
				break
			}
			holder := wl.holder
			// cur always joins holder's donor set, win or not: holder may
			// already hold other locks with other waiters (spec.md §4.1 step
			// 1), and a future Release on one of those must still see cur.
			// Only the decision to keep walking up the chain depends on
			// whether this donation actually raised holder's priority.
			holder.donors = append(holder.donors, cur)
			before := holder.priority
			holder.recomputeEffectivePriority()
			if holder.priority <= before {
				break
			}
			cur = holder
		}
	}
	l.sema.Down(s)
	t.waitOnLock = nil
	l.holder = t
}

// TryAcquire takes l only if it is currently free; it never blocks or
// donates (spec.md §4.1's lock_try_acquire).
func (l *Lock) TryAcquire(t *Thread) bool {
	if l.holder == t {
		panic("sched: lock: recursive acquire by current holder")
	}
	if !l.sema.TryDown() {
		return false
	}
	l.holder = t
	return true
}

// Release gives up l. Any donations made on its account are stripped from
// the holder's donor set and its effective priority recomputed to whatever
// remains (spec.md §4.1: "revoked... on release, not merely on the final
// unlock").
func (l *Lock) Release(s *Scheduler, t *Thread) {
	if l.holder != t {
		panic("sched: lock: release by non-holder")
	}
	l.holder = nil

	kept := t.donors[:0]
	for _, d := range t.donors {
		if d.waitOnLock != l {
			kept = append(kept, d)
		}
	}
	t.donors = kept
	t.recomputeEffectivePriority()

	l.sema.Up(s)
}
