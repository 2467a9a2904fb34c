// Package syscall implements the typed system-call table and user-pointer
// validation spec.md §4.4 describes. There is no real ring-3/ring-0
// boundary to trap through, so Dispatch is called directly by a Process's
// EntryFunc with the syscall number and its (at most six) arguments, the
// same shape original_source/include/lib/syscall-nr.h's table takes.
package syscall

import (
	"github.com/go-pintos/kernel/internal/kerrno"
	"github.com/go-pintos/kernel/internal/process"
	"github.com/go-pintos/kernel/internal/vm"
)

// Num is a system-call number (spec.md §4.4's table).
type Num int

const (
	SysHalt Num = iota
	SysExit
	SysFork
	SysExec
	SysWait
	SysCreate
	SysRemove
	SysOpen
	SysFilesize
	SysRead
	SysWrite
	SysSeek
	SysTell
	SysClose
	SysDup2
	SysMmap
	SysMunmap
)

// Args is the fixed argument vector every handler receives, mirroring the
// rdi/rsi/rdx/r10/r8/r9 register convention a real syscall entry would read
// from (spec.md §4.4: "reads the call number from register rax").
type Args [6]int64

// handler is one syscall table entry.
type handler func(p *process.Process, a Args) int64

var table = map[Num]handler{
	SysHalt:     func(p *process.Process, a Args) int64 { return 0 },
	SysExit:     sysExit,
	SysCreate:   sysCreate,
	SysRemove:   sysRemove,
	SysOpen:     sysOpen,
	SysFilesize: sysFilesize,
	SysRead:     sysRead,
	SysWrite:    sysWrite,
	SysSeek:     sysSeek,
	SysTell:     sysTell,
	SysClose:    sysClose,
	SysDup2:     sysDup2,
	SysMmap:     sysMmap,
	SysMunmap:   sysMunmap,
}

// Dispatch looks up num in the syscall table and invokes it. Fork, Exec, and
// Wait are not in the table above because they need an EntryFunc/ForkEntry
// the generic Args vector cannot carry; callers invoke Process.Fork/Exec/Wait
// directly, exactly as they invoke Dispatch for everything else.
func Dispatch(num Num, p *process.Process, a Args) int64 {
	h, ok := table[num]
	if !ok {
		panic("syscall: unknown call number")
	}
	return h(p, a)
}

// checkAddress validates a single user pointer per spec.md §4.4: non-null,
// below the kernel boundary, and resolvable (faulting it in through the SPT
// if necessary). write additionally requires the page be writable.
func checkAddress(p *process.Process, addr uintptr, write bool) error {
	if addr == 0 || addr >= vm.UserStack {
		return kerrno.ErrBadPointer
	}
	page, ok := p.SPT().Lookup(addr)
	if !ok {
		if err := p.SPT().TryHandleFault(addr, true, write, true); err != nil {
			return kerrno.ErrBadPointer
		}
		page, ok = p.SPT().Lookup(addr)
		if !ok {
			return kerrno.ErrBadPointer
		}
	}
	if write && !page.Writable {
		return kerrno.ErrBadPointer
	}
	return nil
}

// checkBuffer validates every page a [addr, addr+size) buffer spans.
func checkBuffer(p *process.Process, addr uintptr, size int, write bool) error {
	if size <= 0 {
		return nil
	}
	start := addr &^ (vm.PageSize - 1)
	end := addr + uintptr(size)
	for va := start; va < end; va += vm.PageSize {
		if err := checkAddress(p, va, write); err != nil {
			return err
		}
	}
	return nil
}

// fail terminates the calling process for an invalid user pointer, the
// uniform response spec.md §4.4 and §7 require of every validation failure.
func fail(p *process.Process) int64 {
	p.Exit(-1)
	return -1
}
