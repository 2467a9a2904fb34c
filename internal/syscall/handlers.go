package syscall

import (
	"github.com/go-pintos/kernel/internal/fs"
	"github.com/go-pintos/kernel/internal/kerrno"
	"github.com/go-pintos/kernel/internal/process"
)

// sysExit terminates the calling process with the given status. Like a real
// exit syscall it never returns control to its caller in any useful sense:
// handlers that call it should return immediately afterward.
func sysExit(p *process.Process, a Args) int64 {
	p.Exit(int(a[0]))
	return 0
}

func sysCreate(p *process.Process, a Args) int64 {
	name, err := readCString(p, uintptr(a[0]))
	if err != nil {
		return fail(p)
	}
	size := int(a[1])
	p.Mgr().FS.Lock()
	defer p.Mgr().FS.Unlock()
	if p.Mgr().FS.Create(name, size) {
		return 1
	}
	return 0
}

func sysRemove(p *process.Process, a Args) int64 {
	name, err := readCString(p, uintptr(a[0]))
	if err != nil {
		return fail(p)
	}
	p.Mgr().FS.Lock()
	defer p.Mgr().FS.Unlock()
	if p.Mgr().FS.Remove(name) {
		return 1
	}
	return 0
}

func sysOpen(p *process.Process, a Args) int64 {
	name, err := readCString(p, uintptr(a[0]))
	if err != nil {
		return fail(p)
	}
	p.Mgr().FS.Lock()
	h, ok := p.Mgr().FS.Open(name)
	p.Mgr().FS.Unlock()
	if !ok {
		return -1
	}
	fdNum, ok := p.FDs().Install(h)
	if !ok {
		return -1
	}
	return int64(fdNum)
}

func sysFilesize(p *process.Process, a Args) int64 {
	h, ok := p.FDs().Handle(int(a[0]))
	if !ok {
		return -1
	}
	p.Mgr().FS.Lock()
	defer p.Mgr().FS.Unlock()
	return int64(h.Size())
}

func sysRead(p *process.Process, a Args) int64 {
	fdNum, bufVA, size := int(a[0]), uintptr(a[1]), int(a[2])
	if err := checkBuffer(p, bufVA, size, true); err != nil {
		return fail(p)
	}
	if p.FDs().IsStdout(fdNum) {
		return -1
	}
	buf := make([]byte, size)
	var n int
	if p.FDs().IsStdin(fdNum) {
		for n < size {
			b, ok := p.Mgr().Console.ReadByte()
			if !ok {
				break
			}
			buf[n] = b
			n++
		}
	} else {
		h, ok := p.FDs().Handle(fdNum)
		if !ok {
			return -1
		}
		p.Mgr().FS.Lock()
		n = h.Read(buf)
		p.Mgr().FS.Unlock()
	}
	if err := p.SPT().WriteAt(bufVA, buf[:n]); err != nil {
		return fail(p)
	}
	return int64(n)
}

func sysWrite(p *process.Process, a Args) int64 {
	fdNum, bufVA, size := int(a[0]), uintptr(a[1]), int(a[2])
	if err := checkBuffer(p, bufVA, size, false); err != nil {
		return fail(p)
	}
	if p.FDs().IsStdin(fdNum) {
		return -1
	}
	buf := make([]byte, size)
	if err := p.SPT().ReadAt(bufVA, buf); err != nil {
		return fail(p)
	}
	if p.FDs().IsStdout(fdNum) {
		n, _ := p.Mgr().Console.Write(buf)
		return int64(n)
	}
	h, ok := p.FDs().Handle(fdNum)
	if !ok {
		return -1
	}
	p.Mgr().FS.Lock()
	n, err := h.Write(buf)
	p.Mgr().FS.Unlock()
	if err != nil {
		return -1
	}
	return int64(n)
}

func sysSeek(p *process.Process, a Args) int64 {
	h, ok := p.FDs().Handle(int(a[0]))
	if !ok {
		return -1
	}
	p.Mgr().FS.Lock()
	h.Seek(a[1])
	p.Mgr().FS.Unlock()
	return 0
}

func sysTell(p *process.Process, a Args) int64 {
	h, ok := p.FDs().Handle(int(a[0]))
	if !ok {
		return -1
	}
	p.Mgr().FS.Lock()
	defer p.Mgr().FS.Unlock()
	return h.Tell()
}

func sysClose(p *process.Process, a Args) int64 {
	p.FDs().Close(int(a[0]))
	return 0
}

func sysDup2(p *process.Process, a Args) int64 {
	return int64(p.FDs().Dup2(int(a[0]), int(a[1])))
}

func sysMmap(p *process.Process, a Args) int64 {
	addr, length, writable, fdNum, offset := uintptr(a[0]), int(a[1]), a[2] != 0, int(a[3]), a[4]
	h, ok := p.FDs().Handle(fdNum)
	if !ok {
		return 0
	}
	reopen := func() *fs.Handle {
		p.Mgr().FS.Lock()
		defer p.Mgr().FS.Unlock()
		return p.Mgr().FS.Reopen(h)
	}
	m, err := p.SPT().Mmap(addr, length, writable, h, offset, reopen)
	if err != nil {
		return 0
	}
	return int64(m.Start)
}

func sysMunmap(p *process.Process, a Args) int64 {
	p.SPT().Munmap(uintptr(a[0]))
	return 0
}

// readCString copies a NUL-terminated string out of user memory one byte at
// a time, validating as it goes (spec.md §4.4's check_address applied to
// every byte touched).
func readCString(p *process.Process, addr uintptr) (string, error) {
	var out []byte
	for i := 0; ; i++ {
		va := addr + uintptr(i)
		if err := checkAddress(p, va, false); err != nil {
			return "", err
		}
		var b [1]byte
		if err := p.SPT().ReadAt(va, b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			break
		}
		out = append(out, b[0])
		if len(out) > 4096 {
			return "", kerrno.ErrInvalidArg
		}
	}
	return string(out), nil
}
