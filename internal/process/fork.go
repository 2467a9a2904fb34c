package process

import (
	"github.com/go-pintos/kernel/internal/fs"
	"github.com/go-pintos/kernel/internal/hw"
	"github.com/go-pintos/kernel/internal/sched"
)

// ForkEntry is a forked child's body. Unlike EntryFunc, a fork child does
// not load a new executable or receive argc/argv: spec.md §4.3 has it
// observe rax = 0 in place of its parent's child-tid return value, which
// this package represents by simply giving the child a distinct function
// rather than threading a fake register value through.
type ForkEntry func(p *Process)

// Fork duplicates the calling process's address space and fd table into a
// new child thread (spec.md §4.3). It returns the child's thread ID, or -1
// if duplication failed. The duplication itself runs here, before the child
// thread is even created — since this package's single-CPU-permit model
// guarantees no other thread can observe the parent's address space mid-copy,
// doing the work in the parent instead of (as original_source does) the
// child is behavior-equivalent and avoids a second rendezvous purely for the
// copy step.
func (p *Process) Fork(childName string, entry ForkEntry) int {
	parent := p.Thread

	childPT := hw.NewFakePageTable()
	reopen := func(h *fs.Handle) *fs.Handle {
		p.mgr.FS.Lock()
		defer p.mgr.FS.Unlock()
		return p.mgr.FS.Reopen(h)
	}

	childSPT, err := p.spt.Fork(childPT, p.mgr.Frames, reopen)
	if err != nil {
		return -1
	}
	childFDs := p.fds.Fork(reopen)
	childExe := reopen(p.exeHandle)
	childExe.DenyWrite()

	child := &Process{mgr: p.mgr, pt: childPT, spt: childSPT, fds: childFDs, exeHandle: childExe, done: make(chan struct{})}

	ct := p.mgr.Sched.CreateThread(childName, parent.Priority(), func(th *sched.Thread) {
		child.Thread = th
		th.SetParent(parent)
		th.ForkSema().Up(p.mgr.Sched) // duplication already succeeded; signal fork-rendezvous
		entry(child)
		child.Exit(0)
	})
	child.Thread = ct
	parent.AddChild(ct)

	p.mgr.mu.Lock()
	p.mgr.byTID[ct.ID] = child
	p.mgr.mu.Unlock()

	ct.ForkSema().Down(p.mgr.Sched)
	return ct.ID
}
