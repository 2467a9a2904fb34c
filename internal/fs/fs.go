// Package fs is the minimal in-memory file system spec.md §1 puts out of
// scope ("the on-disk file system") but whose syscall-visible behavior
// (create/remove/open/read/write/seek/tell/close, write-deny on executables)
// spec.md §4.3/§4.4/§4.5 depends on directly. There is one flat namespace, no
// directories, matching the toy file system the spec's syscall table assumes.
package fs

import (
	"sync"

	"github.com/go-pintos/kernel/internal/kerrno"
)

// inode is a named byte blob. denyWrites counts outstanding deny-write
// holders (an executable held open for the life of its process, spec.md
// §4.3); Write fails while it is nonzero.
type inode struct {
	name       string
	data       []byte
	denyWrites int
}

// Handle is one open reference to a file, with its own seek cursor — two
// Opens of the same name get independent Handles over the same inode, the
// same sharing model Pintos's open() gives each fd.
type Handle struct {
	ino *inode
	pos int64
}

// FileSystem is the flat namespace of every file create/open/remove touches.
// Its mutex doubles as the single global file-system lock spec.md §4.4 and §5
// require: callers that need syscall-level atomicity (e.g. the syscall
// dispatcher wrapping open+read) take it with Lock/Unlock around the whole
// operation; FileSystem's own methods assume it is already held, mirroring
// Pintos's filesys_lock being acquired once per syscall handler rather than
// once per filesys_* call.
type FileSystem struct {
	mu    sync.Mutex
	files map[string]*inode
}

// New returns an empty file system.
func New() *FileSystem {
	return &FileSystem{files: make(map[string]*inode)}
}

// Lock acquires the global file-system lock (spec.md §4.4: "all file-system
// calls are serialized by a single global file-system lock").
func (fsys *FileSystem) Lock() { fsys.mu.Lock() }

// Unlock releases the global file-system lock.
func (fsys *FileSystem) Unlock() { fsys.mu.Unlock() }

// Create adds an empty file of the given initial size (zero-filled), failing
// if one already exists by that name.
func (fsys *FileSystem) Create(name string, size int) bool {
	if _, exists := fsys.files[name]; exists {
		return false
	}
	fsys.files[name] = &inode{name: name, data: make([]byte, size)}
	return true
}

// Remove deletes the named file's directory entry and fails on an unknown
// name. Handles already open on the file keep referring to its data and keep
// working; only new Opens of the name fail.
func (fsys *FileSystem) Remove(name string) bool {
	if _, exists := fsys.files[name]; !exists {
		return false
	}
	delete(fsys.files, name)
	return true
}

// Open returns a fresh Handle onto the named file, or ok=false if it doesn't
// exist.
func (fsys *FileSystem) Open(name string) (*Handle, bool) {
	ino, ok := fsys.files[name]
	if !ok {
		return nil, false
	}
	return &Handle{ino: ino}, true
}

// List returns every file name currently in the namespace (backs the "ls"
// kernel command-line action, spec.md §6).
func (fsys *FileSystem) List() []string {
	names := make([]string, 0, len(fsys.files))
	for name := range fsys.files {
		names = append(names, name)
	}
	return names
}

// Reopen returns a fresh Handle onto the same underlying file as h, at
// offset 0, with an independent seek cursor — what fork's fd-table
// duplication needs for a shared file handle (spec.md §4.3: "the child
// observes... a freshly-opened copy").
func (fsys *FileSystem) Reopen(h *Handle) *Handle {
	return &Handle{ino: h.ino}
}

// Name returns the handle's file name.
func (h *Handle) Name() string { return h.ino.name }

// Size returns the file's current length in bytes.
func (h *Handle) Size() int { return len(h.ino.data) }

// Read copies up to len(buf) bytes starting at the handle's cursor and
// advances it, returning the number of bytes actually copied.
func (h *Handle) Read(buf []byte) int {
	n := copy(buf, h.ino.data[min(int(h.pos), len(h.ino.data)):])
	h.pos += int64(n)
	return n
}

// Write stores buf at the handle's cursor, growing the file if needed, and
// advances the cursor. It fails (0, error) while the file is write-denied
// (spec.md §4.3's exec-time "write-denied").
func (h *Handle) Write(buf []byte) (int, error) {
	if h.ino.denyWrites > 0 {
		return 0, kerrno.ErrWriteDenied
	}
	end := int(h.pos) + len(buf)
	if end > len(h.ino.data) {
		grown := make([]byte, end)
		copy(grown, h.ino.data)
		h.ino.data = grown
	}
	n := copy(h.ino.data[h.pos:], buf)
	h.pos += int64(n)
	return n, nil
}

// Seek moves the handle's cursor to an absolute byte offset.
func (h *Handle) Seek(pos int64) { h.pos = pos }

// Tell returns the handle's current cursor offset.
func (h *Handle) Tell() int64 { return h.pos }

// DenyWrite marks the underlying file write-denied (spec.md §4.3: held for
// the life of the owning process's loaded executable).
func (h *Handle) DenyWrite() { h.ino.denyWrites++ }

// AllowWrite releases one write-deny hold.
func (h *Handle) AllowWrite() {
	if h.ino.denyWrites > 0 {
		h.ino.denyWrites--
	}
}
