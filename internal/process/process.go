// Package process implements user-process creation, fork, exec, wait, and
// exit (spec.md §4.3) on top of internal/sched's threads, internal/vm's
// supplemental page tables, and internal/fd's descriptor tables. There is no
// real CPU to transfer control to in user mode, so a process's "user
// program" is a Go closure (EntryFunc) run with argc/argv already marshaled
// onto its simulated stack — the same substitution the teacher's model of
// "thread body as a function" makes for what would otherwise be a context
// switch to ring 3.
package process

import (
	"fmt"
	"sync"

	"github.com/go-pintos/kernel/internal/fd"
	"github.com/go-pintos/kernel/internal/fs"
	"github.com/go-pintos/kernel/internal/hw"
	"github.com/go-pintos/kernel/internal/kerrno"
	"github.com/go-pintos/kernel/internal/sched"
	"github.com/go-pintos/kernel/internal/vm"
)

// EntryFunc is a loaded program's body. argc/argv mirror the registers
// load() sets up in original_source/userprog/process.c (rdi = argc, rsi =
// argv); the process itself is threaded through so the program can issue
// further syscalls against its own fd table and address space.
type EntryFunc func(p *Process, argc int, argv []string)

// Process is a thread with a user address space (spec.md §3).
type Process struct {
	*sched.Thread

	mgr *Manager

	mu        sync.Mutex
	pt        hw.PageTable
	spt       *vm.SPT
	fds       *fd.Table
	exeHandle *fs.Handle // held open, write-denied, for the process's lifetime

	rsp, rdi, rsi uintptr
	exited        bool
	done          chan struct{} // closed once Exit has fully unwound the process
}

// Done returns a channel closed once the process has exited and every
// resource it held (fds, address space, executable write-deny) has been
// released. A caller with no Thread of its own — the kernel command line's
// `run` action (spec.md §6), in particular — waits on this instead of a real
// wait() rendezvous, since it has no thread identity to block the scheduler
// on.
func (p *Process) Done() <-chan struct{} { return p.done }

// SPT returns the process's supplemental page table (used by the syscall
// dispatcher's fault/pointer-check path).
func (p *Process) SPT() *vm.SPT { return p.spt }

// FDs returns the process's file-descriptor table.
func (p *Process) FDs() *fd.Table { return p.fds }

// Mgr returns the kernel singletons this process was created under.
func (p *Process) Mgr() *Manager { return p.mgr }

// ID returns the process's thread ID.
func (p *Process) ID() int { return p.Thread.ID }

// Manager owns every live process and the kernel-wide resources they share:
// the scheduler, file system, frame pool, and console (spec.md §9's
// initialization order "thread core -> palloc -> VM -> file system" is the
// order Manager's dependencies must already exist in).
type Manager struct {
	Sched   *sched.Scheduler
	FS      *fs.FileSystem
	Frames  *vm.FrameAllocator
	Console hw.Console

	mu    sync.Mutex
	byTID map[int]*Process
}

// NewManager wires a process manager to the kernel singletons it drives.
func NewManager(s *sched.Scheduler, fsys *fs.FileSystem, frames *vm.FrameAllocator, console hw.Console) *Manager {
	return &Manager{Sched: s, FS: fsys, Frames: frames, Console: console, byTID: make(map[int]*Process)}
}

// Create loads progName (argv[0] is also the file to open) and starts it as
// a new process, returning once the thread is ready (not yet necessarily
// scheduled) — this is Pintos's process_create_initd/process_exec load path
// collapsed into one call, since there is no separate kernel-thread-then-
// exec step worth modeling without a real ring-3 transfer.
func (m *Manager) Create(argv []string, entry EntryFunc, priority int) (*Process, error) {
	if len(argv) == 0 {
		return nil, kerrno.ErrInvalidArg
	}
	name := argv[0]

	m.FS.Lock()
	exe, ok := m.FS.Open(name)
	m.FS.Unlock()
	if !ok {
		return nil, kerrno.ErrNotFound
	}
	exe.DenyWrite()

	pt := hw.NewFakePageTable()
	spt := vm.NewSPT(pt, m.Frames)

	reopen := func() *fs.Handle {
		m.FS.Lock()
		defer m.FS.Unlock()
		return m.FS.Reopen(exe)
	}
	entryVA, err := loadELF(exe, spt, reopen)
	if err != nil {
		exe.AllowWrite()
		return nil, err
	}

	p := &Process{mgr: m, pt: pt, spt: spt, fds: fd.New(), exeHandle: exe, done: make(chan struct{})}

	if err := p.setupStack(); err != nil {
		exe.AllowWrite()
		return nil, err
	}
	if err := p.pushArgs(argv); err != nil {
		exe.AllowWrite()
		return nil, err
	}

	t := m.Sched.CreateThread(name, priority, func(th *sched.Thread) {
		p.Thread = th
		entry(p, len(argv), argv)
		p.Exit(0)
	})
	// The closure above also sets p.Thread, since CreateThread may run the
	// body synchronously (via its own internal Yield) before returning
	// here; this assignment covers the case where the new thread is still
	// only queued and entry hasn't run yet.
	p.Thread = t

	m.mu.Lock()
	m.byTID[t.ID] = p
	m.mu.Unlock()

	_ = entryVA // the "instruction pointer" a real iretq would target; unused without a CPU
	return p, nil
}

// Process returns the live process owning tid, if any.
func (m *Manager) Process(tid int) (*Process, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byTID[tid]
	return p, ok
}

func (m *Manager) forget(tid int) {
	m.mu.Lock()
	delete(m.byTID, tid)
	m.mu.Unlock()
}

// setupStack installs the single stack page Pintos's setup_stack allocates
// and claims it immediately so argument marshaling can write into it without
// going through the page-fault path (original_source's setup_stack).
func (p *Process) setupStack() error {
	stackPageVA := uintptr(vm.UserStack - vm.PageSize)
	if err := p.spt.AllocWithInitializer(stackPageVA, true, zeroStackInitializer, nil); err != nil {
		return err
	}
	pg, _ := p.spt.Lookup(stackPageVA)
	pg.Stack = true
	return p.spt.Claim(pg)
}

func zeroStackInitializer(p *vm.Page, buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}
	p.Kind = vm.KindAnon
	p.SwapSlot = -1
	return nil
}

// Exit implements spec.md §4.3's exit: close every FD, close (and
// re-enable writes on) the executable, destroy the address space, signal
// wait-rendezvous, wait for free-rendezvous, then let the thread body
// return (which lets the scheduler reap the TCB). It is idempotent — an
// EntryFunc that calls Exit explicitly (modeling the exit syscall) and then
// returns does not trigger a second exit when Create's wrapper runs its own
// trailing Exit(0).
func (p *Process) Exit(status int) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	p.mu.Unlock()

	t := p.Thread
	t.SetExitStatus(status)

	p.fds.CloseAll()
	p.exeHandle.AllowWrite()
	p.spt.Destroy()

	fmt.Fprintf(consoleWriter{p.mgr.Console}, "%s: exit(%d)\n", t.Name, status)

	// The free-rendezvous only has a second party to signal it if something
	// is actually going to call Wait on us; a process started directly by
	// the kernel command line (spec.md §6's `run` action) has no parent and
	// would otherwise hang here forever.
	if t.Parent() != nil {
		t.WaitSema().Up(p.mgr.Sched)
		t.FreeSema().Down(p.mgr.Sched)
	}

	p.mgr.forget(t.ID)
	close(p.done)
}

type consoleWriter struct{ c hw.Console }

func (w consoleWriter) Write(p []byte) (int, error) { return w.c.Write(p) }
