package syscall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-pintos/kernel/internal/fs"
	"github.com/go-pintos/kernel/internal/hw"
	"github.com/go-pintos/kernel/internal/process"
	"github.com/go-pintos/kernel/internal/sched"
	"github.com/go-pintos/kernel/internal/vm"
)

// buildMinimalELF assembles a minimal ELF64 ET_EXEC file with one PT_LOAD
// segment, just enough for process.Manager.Create to load successfully.
func buildMinimalELF(data []byte, vaddr, entry uint64) []byte {
	const ehdrSize = 64
	const phdrSize = 56
	offset := uint64(ehdrSize + phdrSize)

	buf := make([]byte, offset+uint64(len(data)))
	put16 := func(o int, v uint16) { buf[o], buf[o+1] = byte(v), byte(v>>8) }
	put32 := func(o int, v uint32) {
		for i := 0; i < 4; i++ {
			buf[o+i] = byte(v >> (8 * i))
		}
	}
	put64 := func(o int, v uint64) {
		for i := 0; i < 8; i++ {
			buf[o+i] = byte(v >> (8 * i))
		}
	}

	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4], buf[5], buf[6] = 2, 1, 1 // ELFCLASS64, ELFDATA2LSB, EV_CURRENT

	put16(16, 2)          // e_type = ET_EXEC
	put16(18, 62)         // e_machine = EM_X86_64
	put32(20, 1)          // e_version
	put64(24, entry)      // e_entry
	put64(32, ehdrSize)   // e_phoff
	put64(40, 0)          // e_shoff
	put32(48, 0)          // e_flags
	put16(52, ehdrSize)   // e_ehsize
	put16(54, phdrSize)   // e_phentsize
	put16(56, 1)          // e_phnum
	put16(58, 0)
	put16(60, 0)
	put16(62, 0)

	ph := ehdrSize
	put32(ph+0, 1) // p_type = PT_LOAD
	put32(ph+4, 7) // p_flags = R|W|X
	put64(ph+8, offset)
	put64(ph+16, vaddr)
	put64(ph+24, vaddr)
	put64(ph+32, uint64(len(data)))
	put64(ph+40, uint64(len(data)))
	put64(ph+48, 0x1000)

	copy(buf[offset:], data)
	return buf
}

// withProcess boots a single process running "prog" and runs body from
// within that process's own thread, returning the process once body has
// returned and the process has fully exited.
func withProcess(t *testing.T, body func(p *process.Process)) *process.Process {
	t.Helper()
	s := sched.New()
	fsys := fs.New()
	frames := vm.NewFrameAllocator(16, hw.NewFakeDisk(256))
	console := hw.NewFakeConsole("")
	m := process.NewManager(s, fsys, frames, console)

	require.True(t, fsys.Create("prog", 0))
	h, ok := fsys.Open("prog")
	require.True(t, ok)
	_, err := h.Write(buildMinimalELF([]byte("payload"), 0x400000, 0x400000))
	require.NoError(t, err)

	done := make(chan struct{})
	p, err := m.Create([]string{"prog"}, func(pr *process.Process, argc int, argv []string) {
		body(pr)
		close(done)
	}, sched.PriDefault)
	require.NoError(t, err)

	<-done
	<-p.Done()
	return p
}

func writeCString(t *testing.T, p *process.Process, va uintptr, s string) {
	t.Helper()
	require.NoError(t, p.SPT().WriteAt(va, append([]byte(s), 0)))
}

func writeBytes(t *testing.T, p *process.Process, va uintptr, b []byte) {
	t.Helper()
	require.NoError(t, p.SPT().WriteAt(va, b))
}

// scratch VAs within the process's single (already-claimed) stack page,
// chosen low enough to never collide with pushArgs's own data at the top.
const (
	scratchName = uintptr(vm.UserStack - vm.PageSize + 64)
	scratchBuf  = uintptr(vm.UserStack - vm.PageSize + 128)
	scratchOut  = uintptr(vm.UserStack - vm.PageSize + 256)
)

func TestSysHalt(t *testing.T) {
	var rc int64
	withProcess(t, func(p *process.Process) {
		rc = Dispatch(SysHalt, p, Args{})
	})
	assert.Equal(t, int64(0), rc)
}

func TestDispatchUnknownNumberPanics(t *testing.T) {
	withProcess(t, func(p *process.Process) {
		assert.Panics(t, func() { Dispatch(Num(9999), p, Args{}) })
	})
}

func TestSysCreateOpenWriteReadSeekTellCloseRemove(t *testing.T) {
	withProcess(t, func(p *process.Process) {
		writeCString(t, p, scratchName, "data.txt")

		assert.Equal(t, int64(1), Dispatch(SysCreate, p, Args{int64(scratchName), 0}))
		assert.Equal(t, int64(0), Dispatch(SysCreate, p, Args{int64(scratchName), 0}), "create fails on an existing name")

		fdRC := Dispatch(SysOpen, p, Args{int64(scratchName)})
		require.GreaterOrEqual(t, fdRC, int64(2))

		writeBytes(t, p, scratchBuf, []byte("hello"))
		n := Dispatch(SysWrite, p, Args{fdRC, int64(scratchBuf), 5})
		assert.Equal(t, int64(5), n)

		assert.Equal(t, int64(5), Dispatch(SysFilesize, p, Args{fdRC}))

		Dispatch(SysSeek, p, Args{fdRC, 0})
		assert.Equal(t, int64(0), Dispatch(SysTell, p, Args{fdRC}))

		n = Dispatch(SysRead, p, Args{fdRC, int64(scratchOut), 5})
		assert.Equal(t, int64(5), n)
		got := make([]byte, 5)
		require.NoError(t, p.SPT().ReadAt(scratchOut, got))
		assert.Equal(t, "hello", string(got))

		Dispatch(SysClose, p, Args{fdRC})
		assert.Equal(t, int64(1), Dispatch(SysRemove, p, Args{int64(scratchName)}))
	})
}

func TestSysReadWriteRejectStdioMismatch(t *testing.T) {
	withProcess(t, func(p *process.Process) {
		assert.Equal(t, int64(-1), Dispatch(SysRead, p, Args{1, int64(scratchBuf), 4}), "reading from the stdout fd is rejected")
		assert.Equal(t, int64(-1), Dispatch(SysWrite, p, Args{0, int64(scratchBuf), 4}), "writing to the stdin fd is rejected")
	})
}

func TestSysDup2(t *testing.T) {
	withProcess(t, func(p *process.Process) {
		writeCString(t, p, scratchName, "a.txt")
		Dispatch(SysCreate, p, Args{int64(scratchName), 0})
		fdRC := Dispatch(SysOpen, p, Args{int64(scratchName)})
		newFD := fdRC + 100

		assert.Equal(t, newFD, Dispatch(SysDup2, p, Args{fdRC, newFD}))
	})
}

func TestSysMmapMunmap(t *testing.T) {
	withProcess(t, func(p *process.Process) {
		writeCString(t, p, scratchName, "m.txt")
		Dispatch(SysCreate, p, Args{int64(scratchName), int64(vm.PageSize)})
		fdRC := Dispatch(SysOpen, p, Args{int64(scratchName)})

		writeBytes(t, p, scratchBuf, []byte("mapdata"))
		Dispatch(SysWrite, p, Args{fdRC, int64(scratchBuf), 7})
		Dispatch(SysSeek, p, Args{fdRC, 0})

		mapVA := Dispatch(SysMmap, p, Args{0x10000000, int64(vm.PageSize), 1, fdRC, 0})
		require.NotEqual(t, int64(0), mapVA)

		out := make([]byte, 7)
		require.NoError(t, p.SPT().ReadAt(uintptr(mapVA), out))
		assert.Equal(t, "mapdata", string(out))

		assert.Equal(t, int64(0), Dispatch(SysMunmap, p, Args{mapVA}))
	})
}

func TestSysCreateFailsOnBadPointerAndExitsProcess(t *testing.T) {
	var rc int64
	p := withProcess(t, func(pr *process.Process) {
		rc = Dispatch(SysCreate, pr, Args{0, 0})
	})
	assert.Equal(t, int64(-1), rc)
	assert.Equal(t, -1, p.Thread.ExitStatus(), "an invalid user pointer kills the process with status -1")
}

func TestSysReadWriteRejectUnopenedFD(t *testing.T) {
	withProcess(t, func(p *process.Process) {
		assert.Equal(t, int64(-1), Dispatch(SysWrite, p, Args{7, int64(scratchBuf), 1}))
		assert.Equal(t, int64(-1), Dispatch(SysFilesize, p, Args{7}))
	})
}
