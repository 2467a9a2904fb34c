package process

import (
	"encoding/binary"

	"github.com/go-pintos/kernel/internal/vm"
)

// pushArgs marshals argv onto the process's single stack page exactly as
// spec.md §4.3 describes: each string (including its nul terminator) pushed
// from last to first, the stack pointer aligned down to a multiple of 8
// (zero-padded), a null sentinel word, each string's address (last to
// first), and a fake zero return address. rdi/rsi are set to argc and the
// address of argv[0]'s slot.
func (p *Process) pushArgs(argv []string) error {
	sp := uintptr(vm.UserStack)

	addrs := make([]uintptr, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		s := append([]byte(argv[i]), 0)
		sp -= uintptr(len(s))
		if err := p.spt.WriteAt(sp, s); err != nil {
			return err
		}
		addrs[i] = sp
	}

	if aligned := sp &^ 7; aligned != sp {
		if err := p.spt.WriteAt(aligned, make([]byte, sp-aligned)); err != nil {
			return err
		}
		sp = aligned
	}

	sp -= 8
	if err := p.spt.WriteAt(sp, make([]byte, 8)); err != nil { // argv[argc] = NULL
		return err
	}

	for i := len(addrs) - 1; i >= 0; i-- {
		sp -= 8
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(addrs[i]))
		if err := p.spt.WriteAt(sp, buf); err != nil {
			return err
		}
	}
	argvAddr := sp

	sp -= 8
	if err := p.spt.WriteAt(sp, make([]byte, 8)); err != nil { // fake return address
		return err
	}

	p.rsp = sp
	p.rdi = uintptr(len(argv))
	p.rsi = argvAddr
	p.spt.SetSavedRSP(sp)
	return nil
}
