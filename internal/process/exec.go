package process

import (
	"github.com/go-pintos/kernel/internal/fs"
	"github.com/go-pintos/kernel/internal/hw"
	"github.com/go-pintos/kernel/internal/vm"
)

// Exec replaces the calling process's address space with a freshly loaded
// ELF (spec.md §4.3). The file name is already in kernel memory as a Go
// string by construction, satisfying the original implementation's "must be
// copied into kernel memory before tearing down the user space" requirement
// for free. On success it marshals the new argv and calls entry in place of
// the replaced program; on failure it returns -1 and leaves the caller's
// existing address space untouched.
func (p *Process) Exec(argv []string, entry EntryFunc) int {
	if len(argv) == 0 {
		return -1
	}
	p.mgr.FS.Lock()
	exe, ok := p.mgr.FS.Open(argv[0])
	p.mgr.FS.Unlock()
	if !ok {
		return -1
	}
	exe.DenyWrite()

	newPT := hw.NewFakePageTable()
	newSPT := vm.NewSPT(newPT, p.mgr.Frames)
	reopen := func() *fs.Handle {
		p.mgr.FS.Lock()
		defer p.mgr.FS.Unlock()
		return p.mgr.FS.Reopen(exe)
	}
	if _, err := loadELF(exe, newSPT, reopen); err != nil {
		exe.AllowWrite()
		return -1
	}

	oldSPT, oldPT, oldExe := p.spt, p.pt, p.exeHandle
	p.spt, p.pt, p.exeHandle = newSPT, newPT, exe

	if err := p.setupStack(); err != nil {
		p.spt, p.pt, p.exeHandle = oldSPT, oldPT, oldExe
		exe.AllowWrite()
		return -1
	}
	if err := p.pushArgs(argv); err != nil {
		p.spt, p.pt, p.exeHandle = oldSPT, oldPT, oldExe
		exe.AllowWrite()
		return -1
	}

	oldSPT.Destroy()
	oldExe.AllowWrite()

	entry(p, len(argv), argv)
	return 0
}
