package process

import (
	"debug/elf"
	"io"

	"github.com/go-pintos/kernel/internal/fs"
	"github.com/go-pintos/kernel/internal/kerrno"
	"github.com/go-pintos/kernel/internal/vm"
)

// loadELF parses file (an already-open, write-denied executable handle) and
// installs one lazily-populated UNINIT page into spt for every page that a
// PT_LOAD segment's file bytes span,
// mirroring load()/load_segment() in original_source/userprog/process.c.
// Parsing itself uses the standard library's debug/elf: no library in the
// retrieved example corpus reads ELF headers, and real Pintos-KAIST programs
// are genuine ELF64 executables, so reimplementing a private format would
// contradict spec.md §8's "for every ELF PT_LOAD segment, reading any byte
// returns the bytes the file would have produced."
func loadELF(file *fs.Handle, spt *vm.SPT, reopen func() *fs.Handle) (entry uintptr, err error) {
	raw := make([]byte, file.Size())
	file.Seek(0)
	file.Read(raw)

	f, elfErr := elf.NewFile(byteReaderAt(raw))
	if elfErr != nil {
		return 0, kerrno.ErrLoad
	}
	if f.Class != elf.ELFCLASS64 || f.Type != elf.ET_EXEC {
		return 0, kerrno.ErrLoad
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		va := pageFloor(uintptr(prog.Vaddr))
		pageOfs := uintptr(prog.Vaddr) - va
		readBytes := prog.Filesz
		zeroBytes := (prog.Memsz + uint64(pageOfs)) - readBytes
		writable := prog.Flags&elf.PF_W != 0
		fileOfs := int64(prog.Off)

		numPages := (int(pageOfs+uintptr(readBytes)) + vm.PageSize - 1) / vm.PageSize
		if numPages == 0 {
			numPages = 1
		}
		remainingRead := int(readBytes)
		for i := 0; i < numPages; i++ {
			pageVA := va + uintptr(i*vm.PageSize)
			chunk := vm.PageSize
			if i == 0 {
				chunk -= int(pageOfs)
			}
			if remainingRead < chunk {
				chunk = remainingRead
			}
			if chunk < 0 {
				chunk = 0
			}
			remainingRead -= chunk
			off := int64(0)
			if i == 0 {
				off = fileOfs
			} else {
				off = fileOfs + int64(i*vm.PageSize) - int64(pageOfs)
			}
			fb := &vm.FileBacking{Handle: reopen(), Offset: off, Size: chunk}
			segWritable := writable
			spt.AllocWithInitializer(pageVA, segWritable, segmentInitializer, fb)
		}
		_ = zeroBytes
	}
	return uintptr(f.Entry), nil
}

// segmentInitializer is an ELF PT_LOAD segment's lazy-load initializer
// (original_source's lazy_load_segment): read Size bytes from the backing
// file at Offset, zero-fill the remainder of the page, and transition to an
// ANON page since once populated a loaded segment is private, writable
// memory like any other anonymous page (it is never written back to the
// executable).
func segmentInitializer(p *vm.Page, buf []byte) error {
	fb := p.InitArg().(*vm.FileBacking)
	fb.Handle.Seek(fb.Offset)
	n := fb.Handle.Read(buf[:fb.Size])
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	p.Kind = vm.KindAnon
	p.SwapSlot = -1
	return nil
}

func pageFloor(a uintptr) uintptr { return a &^ (vm.PageSize - 1) }

// byteReaderAt adapts a byte slice to io.ReaderAt for debug/elf.NewFile.
type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, errEOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, errEOF
	}
	return n, nil
}

var errEOF = io.ErrUnexpectedEOF
