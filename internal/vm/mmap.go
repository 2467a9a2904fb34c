package vm

import (
	"github.com/go-pintos/kernel/internal/fs"
	"github.com/go-pintos/kernel/internal/kerrno"
)

// Mapping is one mmap record (spec.md §4.8): the [Start, End) range of user
// addresses it covers, kept so munmap can find and tear down every page it
// created.
type Mapping struct {
	Start uintptr
	End   uintptr
}

// Mmap validates and installs a memory-mapped file region, returning the
// new Mapping (spec.md §4.8). reopen must return a fresh Handle onto the
// same file with its own seek cursor, one per page, matching "re-opens the
// file per page (distinct seek cursors)".
func (s *SPT) Mmap(addr uintptr, length int, writable bool, file *fs.Handle, offset int64, reopen func() *fs.Handle) (*Mapping, error) {
	if addr == 0 || length <= 0 {
		return nil, kerrno.ErrInvalidArg
	}
	if addr%PageSize != 0 || uintptr(offset)%PageSize != 0 {
		return nil, kerrno.ErrInvalidArg
	}
	if addr >= UserStack || addr+uintptr(length) > UserStack {
		return nil, kerrno.ErrInvalidArg
	}

	numPages := (length + PageSize - 1) / PageSize
	for i := 0; i < numPages; i++ {
		if _, ok := s.Lookup(addr + uintptr(i*PageSize)); ok {
			return nil, kerrno.ErrOverlap
		}
	}

	m := &Mapping{Start: addr, End: addr + uintptr(length)}
	remaining := length
	for i := 0; i < numPages; i++ {
		va := addr + uintptr(i*PageSize)
		chunk := PageSize
		if remaining < chunk {
			chunk = remaining
		}
		remaining -= chunk
		fb := &FileBacking{Handle: reopen(), Offset: offset + int64(i*PageSize), Size: chunk}
		p := newUninit(va, writable, fileBackedInitializer, nil)
		p.file = fb
		p.mapping = m
		if err := s.insert(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// fileBackedInitializer populates buf from its page's FileBacking and
// transitions the page to KindFile (spec.md §4.8).
func fileBackedInitializer(p *Page, buf []byte) error {
	fb := p.file
	fb.Handle.Seek(fb.Offset)
	n := fb.Handle.Read(buf[:fb.Size])
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	p.Kind = KindFile
	return nil
}

// Munmap removes every page of the mapping starting at addr, writing back
// dirty pages (spec.md §4.8). The mapping's file handle is not closed.
func (s *SPT) Munmap(addr uintptr) error {
	s.mu.Lock()
	var m *Mapping
	for _, p := range s.pages {
		if p.mapping != nil && p.mapping.Start == addr {
			m = p.mapping
			break
		}
	}
	s.mu.Unlock()
	if m == nil {
		return kerrno.ErrInvalidArg
	}
	for va := m.Start; va < m.End; va += PageSize {
		s.Remove(va)
	}
	return nil
}
