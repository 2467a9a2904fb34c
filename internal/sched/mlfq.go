package sched

// MLFQ recompute helpers (spec.md §4.2). All three are called with s.mu
// already held, from Tick (and SetNice for the priority recompute) — split
// out of scheduler.go because they are pure formula, not context-switch
// mechanics.

// recomputeLoadAvgLocked updates the system load average once per second
// (every TimerFreq ticks): load_avg = (59/60)*load_avg + (1/60)*ready_threads,
// where ready_threads counts the running thread (unless idle) plus everyone
// on the ready queue.
func (s *Scheduler) recomputeLoadAvgLocked() {
	readyThreads := s.ready.Len()
	if s.current != s.idle {
		readyThreads++
	}
	fiftyNineSixtieths := FromInt(59).Div(FromInt(60))
	oneSixtieth := FromInt(1).Div(FromInt(60))
	s.loadAvg = fiftyNineSixtieths.Mul(s.loadAvg).Add(oneSixtieth.MulInt(readyThreads))
}

// recomputeRecentCPULocked updates t's recent_cpu once per second:
// recent_cpu = (2*load_avg)/(2*load_avg+1) * recent_cpu + nice.
func (s *Scheduler) recomputeRecentCPULocked(t *Thread) {
	twiceLoad := s.loadAvg.MulInt(2)
	coeff := twiceLoad.Div(twiceLoad.AddInt(1))
	t.recentCPU = coeff.Mul(t.recentCPU).AddInt(t.nice)
}

// recomputePriorityMLFQLocked recomputes t's scheduling priority from its
// recent CPU usage and niceness: priority = PRI_MAX - (recent_cpu/4) -
// (nice*2), clamped to [PriMin, PriMax]. Called every four ticks for every
// thread, and immediately on SetNice.
func (s *Scheduler) recomputePriorityMLFQLocked(t *Thread) {
	p := FromInt(PriMax).Sub(t.recentCPU.DivInt(4)).SubInt(t.nice * 2).ToIntRound()
	if p < PriMin {
		p = PriMin
	}
	if p > PriMax {
		p = PriMax
	}
	t.basePriority = p
	t.recomputeEffectivePriority()
}
