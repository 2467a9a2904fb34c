package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-pintos/kernel/internal/hw"
	"github.com/go-pintos/kernel/internal/process"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	return New(Options{}, hw.NewFakeConsole(""), hw.NewFakeDisk(256))
}

func TestNewWiresEveryDependency(t *testing.T) {
	k := newTestKernel(t)
	assert.NotNil(t, k.Sched)
	assert.NotNil(t, k.FS)
	assert.NotNil(t, k.Frames)
	assert.NotNil(t, k.Procs)
}

func TestNewDefaultsUserFrameCount(t *testing.T) {
	k := New(Options{UserFrameCount: 0}, hw.NewFakeConsole(""), hw.NewFakeDisk(256))
	assert.NotNil(t, k.Frames)
}

func TestPutGetRoundTrip(t *testing.T) {
	k := newTestKernel(t)
	require.True(t, k.Put("a.txt", []byte("contents")))
	got, ok := k.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, "contents", string(got))
}

func TestGetUnknownFails(t *testing.T) {
	k := newTestKernel(t)
	_, ok := k.Get("missing")
	assert.False(t, ok)
}

func TestPutFailsIfNameExists(t *testing.T) {
	k := newTestKernel(t)
	require.True(t, k.Put("a.txt", []byte("one")))
	assert.False(t, k.Put("a.txt", []byte("two")))
}

func TestCatReturnsFileContents(t *testing.T) {
	k := newTestKernel(t)
	k.Put("a.txt", []byte("hello"))
	got, ok := k.Cat("a.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestCatUnknownFails(t *testing.T) {
	k := newTestKernel(t)
	_, ok := k.Cat("missing")
	assert.False(t, ok)
}

func TestRm(t *testing.T) {
	k := newTestKernel(t)
	k.Put("a.txt", []byte("x"))
	assert.True(t, k.Rm("a.txt"))
	assert.False(t, k.Rm("a.txt"), "removing twice fails")
}

func TestLsListsEveryFileSorted(t *testing.T) {
	k := newTestKernel(t)
	k.Put("banana.txt", []byte("b"))
	k.Put("apple.txt", []byte("a"))
	assert.Equal(t, []string{"apple.txt", "banana.txt"}, k.Ls())
}

func TestLsEmptyNamespace(t *testing.T) {
	k := newTestKernel(t)
	assert.Empty(t, k.Ls())
}

func TestTickAdvancesSchedulerClock(t *testing.T) {
	k := newTestKernel(t)
	before := k.Sched.TickCount()
	k.Tick()
	assert.Equal(t, before+1, k.Sched.TickCount())
}

func TestConsoleReturnsWiredDevice(t *testing.T) {
	console := hw.NewFakeConsole("")
	k := New(Options{}, console, hw.NewFakeDisk(256))
	assert.Same(t, console, k.Console())
}

func TestRunLoadsAndStartsAProgram(t *testing.T) {
	k := newTestKernel(t)
	elfBytes := buildMinimalELF([]byte("payload"), 0x400000, 0x400000)
	require.True(t, k.Put("prog", elfBytes))
	// Put denies nothing, but Run's loader opens "prog" fresh via Create,
	// which is what actually matters here.

	ran := make(chan struct{})
	var gotArgv []string
	p, err := k.Run("prog a b", func(pr *process.Process, argc int, argv []string) {
		gotArgv = append([]string(nil), argv...)
		close(ran)
	})
	require.NoError(t, err)

	<-ran
	<-p.Done()
	assert.Equal(t, []string{"prog", "a", "b"}, gotArgv)
}

func TestRunUnknownProgramFails(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.Run("missing", func(*process.Process, int, []string) {})
	assert.Error(t, err)
}

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
