package vm

import (
	"sync"

	"github.com/go-pintos/kernel/internal/hw"
	"github.com/go-pintos/kernel/internal/kerrno"
)

// SPT is one process's supplemental page table: a map from page-aligned
// virtual address to page descriptor (spec.md §3/§4.6), independent of the
// hardware page table it drives.
type SPT struct {
	mu    sync.Mutex
	pages map[uintptr]*Page
	pt    hw.PageTable
	fa    *FrameAllocator

	savedRSP uintptr // stack pointer at last syscall/fault entry, for stack growth (spec.md §4.6)
}

// NewSPT returns an empty supplemental page table driving pt and drawing
// frames from fa.
func NewSPT(pt hw.PageTable, fa *FrameAllocator) *SPT {
	return &SPT{pages: make(map[uintptr]*Page), pt: pt, fa: fa, savedRSP: UserStack}
}

func pageRound(addr uintptr) uintptr { return addr &^ (PageSize - 1) }

// SetSavedRSP records the user stack pointer observed at the most recent
// syscall or interrupt entry, the reference point stack growth (spec.md
// §4.6) measures against.
func (s *SPT) SetSavedRSP(rsp uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedRSP = rsp
}

// Lookup returns the page descriptor covering addr, rounding down to a page
// boundary (spec.md §4.6).
func (s *SPT) Lookup(addr uintptr) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pageRound(addr)]
	return p, ok
}

// AllocWithInitializer installs a lazily-populated UNINIT page (spec.md
// §4.6's alloc_with_initializer). No frame is allocated until Claim.
func (s *SPT) AllocWithInitializer(va uintptr, writable bool, init Initializer, arg any) error {
	va = pageRound(va)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pages[va]; exists {
		return kerrno.ErrOverlap
	}
	p := newUninit(va, writable, init, arg)
	p.initArg = arg
	s.pages[va] = p
	return nil
}

// insert adds an already-constructed page descriptor (used by fork's SPT
// duplication and by mmap, which build Page values directly).
func (s *SPT) insert(p *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pages[p.VA]; exists {
		return kerrno.ErrOverlap
	}
	s.pages[p.VA] = p
	return nil
}

// Claim makes page resident: obtain a frame, link it, install the hardware
// mapping, then run the page-type-specific population (spec.md §4.6's
// "Claim" step). It is a no-op if the page is already resident.
func (s *SPT) Claim(page *Page) error {
	if page.Frame != nil {
		return nil
	}
	f, err := s.fa.claim(page, s.pt)
	if err != nil {
		return err
	}
	switch page.Kind {
	case KindUninit:
		if err := page.init(page, f.Data); err != nil {
			s.fa.release(f)
			s.pt.Unmap(page.VA)
			page.Frame = nil
			return err
		}
	case KindAnon:
		if page.SwapSlot >= 0 {
			s.fa.swapInAnon(page, f.Data)
		}
	case KindFile:
		s.fa.swapInFile(page, f.Data)
	}
	return nil
}

// TryHandleFault implements spec.md §4.6's page-fault handler: stack growth,
// SPT lookup, and claim, in that order. It returns an error (never nil on
// failure) describing why the fault could not be resolved; the caller exits
// the faulting process with status -1 on any error.
func (s *SPT) TryHandleFault(addr uintptr, user, write, notPresent bool) error {
	if user && addr >= UserStack {
		return kerrno.ErrBadPointer
	}

	s.mu.Lock()
	rsp := s.savedRSP
	s.mu.Unlock()

	if write && notPresent {
		faultPage := pageRound(addr)
		stackLimit := uintptr(UserStack - StackCap)
		_, alreadyMapped := s.Lookup(addr)
		if !alreadyMapped && addr+PageSize >= rsp && faultPage >= stackLimit && faultPage < UserStack {
			if err := s.growStack(rsp, faultPage); err != nil {
				return err
			}
			return nil
		}
	}

	page, ok := s.Lookup(addr)
	if !ok {
		return kerrno.ErrBadPointer
	}
	if !notPresent {
		// write-protect fault on a present page: spec.md §9 treats this as
		// fatal, explicitly declining to infer copy-on-write semantics.
		return kerrno.ErrWriteDenied
	}
	return s.Claim(page)
}

// growStack allocates ANON stack-marker pages downward from the page holding
// rsp through faultPage (inclusive) and claims them immediately (spec.md
// §4.6).
func (s *SPT) growStack(rsp uintptr, faultPage uintptr) error {
	top := pageRound(rsp - 1)
	for va := faultPage; va <= top; va += PageSize {
		if _, ok := s.Lookup(va); ok {
			continue
		}
		p := &Page{VA: va, Writable: true, Kind: KindAnon, Stack: true, SwapSlot: -1}
		if err := s.insert(p); err != nil {
			return err
		}
		if err := s.Claim(p); err != nil {
			return err
		}
	}
	return nil
}

// WriteAt claims (faulting in as needed) and writes data across however many
// pages it spans, the primitive argument passing (spec.md §4.3) and mmap
// stores build on.
func (s *SPT) WriteAt(addr uintptr, data []byte) error {
	for len(data) > 0 {
		va := pageRound(addr)
		page, ok := s.Lookup(va)
		if !ok {
			return kerrno.ErrBadPointer
		}
		if err := s.Claim(page); err != nil {
			return err
		}
		ofs := addr - va
		n := copy(page.Frame.Data[ofs:], data)
		s.pt.SetDirty(va, true)
		data = data[n:]
		addr += uintptr(n)
	}
	return nil
}

// ReadAt is WriteAt's counterpart for reads.
func (s *SPT) ReadAt(addr uintptr, buf []byte) error {
	for len(buf) > 0 {
		va := pageRound(addr)
		page, ok := s.Lookup(va)
		if !ok {
			return kerrno.ErrBadPointer
		}
		if err := s.Claim(page); err != nil {
			return err
		}
		ofs := addr - va
		n := copy(buf, page.Frame.Data[ofs:])
		buf = buf[n:]
		addr += uintptr(n)
	}
	return nil
}

// Destroy tears down every page in s: resident pages release their frame,
// dirty file-backed pages are written back (their file handle is not
// closed), and the hardware mappings are removed
// (spec.md §3's "destroyed with their SPT").
func (s *SPT) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for va, p := range s.pages {
		if p.Kind == KindFile && p.file != nil {
			if p.Frame != nil && s.pt.IsDirty(va) {
				p.file.Handle.Seek(p.file.Offset)
				p.file.Handle.Write(p.Frame.Data[:p.file.Size])
			}
		}
		if p.Frame != nil {
			s.fa.release(p.Frame)
			s.pt.Unmap(va)
		}
		delete(s.pages, va)
	}
	s.pt.Destroy()
}

// Remove drops a single page (used by munmap) after running its
// destructor: write back if dirty, release the frame, unmap.
func (s *SPT) Remove(va uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[va]
	if !ok {
		return
	}
	if p.Kind == KindFile && p.file != nil && p.Frame != nil && s.pt.IsDirty(va) {
		p.file.Handle.Seek(p.file.Offset)
		p.file.Handle.Write(p.Frame.Data[:p.file.Size])
	}
	if p.Frame != nil {
		s.fa.release(p.Frame)
		s.pt.Unmap(va)
	}
	delete(s.pages, va)
}
