// Package fd implements the per-process file-descriptor table spec.md §4.5
// describes: 512 fixed slots, sentinel stdin/stdout handles, dup2 sharing via
// reference-counted handles.
package fd

import "github.com/go-pintos/kernel/internal/fs"

// TableSize is the fixed slot count (spec.md §4.5: "spanning multiple pages
// to accommodate stress tests").
const TableSize = 512

// kind tags what a slot currently holds.
type kind int

const (
	kindEmpty kind = iota
	kindStdin
	kindStdout
	kindFile
)

// shared is a file handle possibly installed into more than one slot (via
// dup2 or fork); refs counts how many slots currently point at it.
type shared struct {
	h    *fs.Handle
	refs int
}

type slot struct {
	kind kind
	sh   *shared
}

// Table is one process's file-descriptor table.
type Table struct {
	slots       [TableSize]slot
	stdinCount  int
	stdoutCount int
}

// New returns a table with slots 0 and 1 pre-installed as the stdin/stdout
// sentinels (spec.md §4.5).
func New() *Table {
	t := &Table{}
	t.slots[0] = slot{kind: kindStdin}
	t.slots[1] = slot{kind: kindStdout}
	t.stdinCount = 1
	t.stdoutCount = 1
	return t
}

// IsStdin and IsStdout classify a descriptor without needing its handle.
func (t *Table) IsStdin(fdNum int) bool {
	return fdNum >= 0 && fdNum < TableSize && t.slots[fdNum].kind == kindStdin
}
func (t *Table) IsStdout(fdNum int) bool {
	return fdNum >= 0 && fdNum < TableSize && t.slots[fdNum].kind == kindStdout
}

// Handle returns the open file handle installed at fdNum, or ok=false if the
// slot is empty, stdin, or stdout.
func (t *Table) Handle(fdNum int) (h *fs.Handle, ok bool) {
	if fdNum < 0 || fdNum >= TableSize || t.slots[fdNum].kind != kindFile {
		return nil, false
	}
	return t.slots[fdNum].sh.h, true
}

// Install places h into the lowest free slot at or above 2 and returns it,
// or ok=false if the table is full.
func (t *Table) Install(h *fs.Handle) (fdNum int, ok bool) {
	for i := 2; i < TableSize; i++ {
		if t.slots[i].kind == kindEmpty {
			t.slots[i] = slot{kind: kindFile, sh: &shared{h: h, refs: 1}}
			return i, true
		}
	}
	return -1, false
}

// Close releases fdNum. For a shared file handle it drops one reference;
// other slots aliasing the handle keep using it. Nothing further happens when
// the count reaches zero: the underlying Handle has no close operation.
func (t *Table) Close(fdNum int) {
	if fdNum < 0 || fdNum >= TableSize {
		return
	}
	switch t.slots[fdNum].kind {
	case kindStdin:
		t.stdinCount--
	case kindStdout:
		t.stdoutCount--
	case kindFile:
		sh := t.slots[fdNum].sh
		sh.refs--
	default:
		return
	}
	t.slots[fdNum] = slot{}
}

// Dup2 installs whatever old refers to into new, per spec.md §4.5:
//   - old unused: return -1
//   - old == new: return new unchanged
//   - new already open: it is closed first (respecting refcounts)
//   - the handle is installed in new and its sharing count bumped
func (t *Table) Dup2(old, new int) int {
	if old < 0 || old >= TableSize || t.slots[old].kind == kindEmpty {
		return -1
	}
	if old == new {
		return new
	}
	if new < 0 || new >= TableSize {
		return -1
	}
	if t.slots[new].kind != kindEmpty {
		t.Close(new)
	}
	switch t.slots[old].kind {
	case kindStdin:
		t.slots[new] = slot{kind: kindStdin}
		t.stdinCount++
	case kindStdout:
		t.slots[new] = slot{kind: kindStdout}
		t.stdoutCount++
	case kindFile:
		sh := t.slots[old].sh
		sh.refs++
		t.slots[new] = slot{kind: kindFile, sh: sh}
	}
	return new
}

// Fork duplicates t for a child process. Stdin/stdout sentinel slots are
// copied as sentinels; file slots that alias the same shared handle in the
// parent are reopened exactly once (via reopen) and alias one new shared
// handle in the child, preserving dup2 sharing across the fork boundary
// without letting the child's closes affect the parent (spec.md §4.3).
func (t *Table) Fork(reopen func(*fs.Handle) *fs.Handle) *Table {
	child := &Table{}
	seen := make(map[*shared]*shared)
	for i := range t.slots {
		switch t.slots[i].kind {
		case kindStdin:
			child.slots[i] = slot{kind: kindStdin}
			child.stdinCount++
		case kindStdout:
			child.slots[i] = slot{kind: kindStdout}
			child.stdoutCount++
		case kindFile:
			parentSh := t.slots[i].sh
			childSh, ok := seen[parentSh]
			if !ok {
				childSh = &shared{h: reopen(parentSh.h)}
				seen[parentSh] = childSh
			}
			childSh.refs++
			child.slots[i] = slot{kind: kindFile, sh: childSh}
		}
	}
	return child
}

// CloseAll closes every open slot, as exit() does before tearing down a
// process (spec.md §4.3).
func (t *Table) CloseAll() {
	for i := range t.slots {
		if t.slots[i].kind != kindEmpty {
			t.Close(i)
		}
	}
}
