// Package kernel wires the thread core, frame allocator, virtual memory, and
// file system into the single well-defined singleton spec.md §9 asks for,
// in the initialization order it specifies: thread core -> palloc -> VM ->
// file system. It also runs the kernel command-line action language
// (spec.md §6).
package kernel

import (
	"sort"
	"strings"

	"github.com/go-pintos/kernel/internal/fs"
	"github.com/go-pintos/kernel/internal/hw"
	"github.com/go-pintos/kernel/internal/process"
	"github.com/go-pintos/kernel/internal/sched"
	"github.com/go-pintos/kernel/internal/vm"
)

// Options mirrors the kernel command-line's option flags (spec.md §6).
type Options struct {
	MLFQS          bool
	PowerOffAfter  bool // -q
	Format         bool // -f
	RandomSeed     int64
	UserFrameCount int // -ul=COUNT
	ThreadsTests   bool
}

// Kernel is the top-level singleton composing every subsystem.
type Kernel struct {
	Sched  *sched.Scheduler
	FS     *fs.FileSystem
	Frames *vm.FrameAllocator
	Procs  *process.Manager

	console hw.Console
	disk    hw.Disk
}

// New builds a kernel: thread core (scheduler) first, then the frame
// allocator (palloc), then the file system, matching spec.md §9's required
// order. Virtual memory has no separate initialization step here since
// internal/vm is stateless except for the frame allocator already built.
func New(opts Options, console hw.Console, disk hw.Disk) *Kernel {
	var schedOpts []sched.Option
	if opts.MLFQS {
		schedOpts = append(schedOpts, sched.WithMLFQS())
	}
	s := sched.New(schedOpts...)

	frameCount := opts.UserFrameCount
	if frameCount <= 0 {
		frameCount = 128
	}
	frames := vm.NewFrameAllocator(frameCount, disk)

	fsys := fs.New()
	if opts.Format {
		// a fresh in-memory namespace is already "formatted"; nothing to do.
	}

	procs := process.NewManager(s, fsys, frames, console)

	return &Kernel{Sched: s, FS: fsys, Frames: frames, Procs: procs, console: console, disk: disk}
}

// Tick advances the simulated timer by one tick (spec.md §4.2).
func (k *Kernel) Tick() { k.Sched.Tick() }

// Console returns the kernel's console device, for callers (the
// -threads-tests driver, in particular) that print outside of a loaded
// process.
func (k *Kernel) Console() hw.Console { return k.console }

// Run loads and starts "PROG ARG1 ARG2 ..." (spec.md §6's `run` action),
// using entry as the loaded program's simulated body.
func (k *Kernel) Run(line string, entry process.EntryFunc) (*process.Process, error) {
	argv := strings.Fields(line)
	return k.Procs.Create(argv, entry, sched.PriDefault)
}

// Ls implements the `ls` action: every file name currently in the
// namespace, sorted for a stable transcript.
func (k *Kernel) Ls() []string {
	k.FS.Lock()
	defer k.FS.Unlock()
	names := k.FS.List()
	sort.Strings(names)
	return names
}

// Cat implements the `cat FILE` action.
func (k *Kernel) Cat(name string) (string, bool) {
	k.FS.Lock()
	defer k.FS.Unlock()
	h, ok := k.FS.Open(name)
	if !ok {
		return "", false
	}
	buf := make([]byte, h.Size())
	h.Read(buf)
	return string(buf), true
}

// Rm implements the `rm FILE` action.
func (k *Kernel) Rm(name string) bool {
	k.FS.Lock()
	defer k.FS.Unlock()
	return k.FS.Remove(name)
}

// Put implements the `put FILE` action: copies data from outside the
// simulated disk (a host file, in a real Pintos build) into a new file of
// the same name. There is no host file system in this module, so callers
// supply the bytes directly.
func (k *Kernel) Put(name string, data []byte) bool {
	k.FS.Lock()
	defer k.FS.Unlock()
	if !k.FS.Create(name, len(data)) {
		return false
	}
	h, _ := k.FS.Open(name)
	h.Write(data)
	return true
}

// Get implements the `get FILE` action: the inverse of Put.
func (k *Kernel) Get(name string) ([]byte, bool) {
	k.FS.Lock()
	defer k.FS.Unlock()
	h, ok := k.FS.Open(name)
	if !ok {
		return nil, false
	}
	buf := make([]byte, h.Size())
	h.Read(buf)
	return buf, true
}
