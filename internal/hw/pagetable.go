// Package hw models the hardware primitives spec.md §1 puts explicitly out of
// scope: the PML4 page-table abstraction, the swap/block disk, and the
// console. The kernel only ever sees the interfaces below; FakePageTable,
// FakeDisk, and FakeConsole are in-memory test doubles, never a production
// driver.
package hw

// PageTable is the opaque pml4_* abstraction from spec.md §1 and §6: it maps
// one virtual page to one physical frame address and exposes the
// accessed/dirty bits the clock algorithm (spec.md §4.7) needs.
type PageTable interface {
	// Map installs va -> pa with the given writability. It replaces any
	// existing mapping at va.
	Map(va uintptr, pa uintptr, writable bool)

	// Unmap removes any mapping at va. It is a no-op if va is unmapped.
	Unmap(va uintptr)

	// Translate returns the physical address mapped at va and whether a
	// mapping exists.
	Translate(va uintptr) (pa uintptr, ok bool)

	// IsAccessed and IsDirty report the hardware A/D bits for the page
	// currently mapped at va. Both are false if va is unmapped.
	IsAccessed(va uintptr) bool
	IsDirty(va uintptr) bool

	// SetAccessed and SetDirty let the clock algorithm clear the A bit on a
	// sweep (spec.md §4.7 step 3) without evicting the page.
	SetAccessed(va uintptr, v bool)
	SetDirty(va uintptr, v bool)

	// Destroy tears down every mapping owned by this page table.
	Destroy()
}

// pte is one page-table entry in the fake implementation.
type pte struct {
	pa       uintptr
	writable bool
	accessed bool
	dirty    bool
}

// FakePageTable is an in-memory stand-in for the hardware PML4 structure,
// exercised by every test in this repository in place of real x86-64 paging.
type FakePageTable struct {
	entries map[uintptr]*pte
}

// NewFakePageTable returns an empty page table.
func NewFakePageTable() *FakePageTable {
	return &FakePageTable{entries: make(map[uintptr]*pte)}
}

func (f *FakePageTable) Map(va, pa uintptr, writable bool) {
	f.entries[va] = &pte{pa: pa, writable: writable}
}

func (f *FakePageTable) Unmap(va uintptr) {
	delete(f.entries, va)
}

func (f *FakePageTable) Translate(va uintptr) (uintptr, bool) {
	e, ok := f.entries[va]
	if !ok {
		return 0, false
	}
	return e.pa, true
}

func (f *FakePageTable) IsAccessed(va uintptr) bool {
	e, ok := f.entries[va]
	return ok && e.accessed
}

func (f *FakePageTable) IsDirty(va uintptr) bool {
	e, ok := f.entries[va]
	return ok && e.dirty
}

func (f *FakePageTable) SetAccessed(va uintptr, v bool) {
	if e, ok := f.entries[va]; ok {
		e.accessed = v
	}
}

func (f *FakePageTable) SetDirty(va uintptr, v bool) {
	if e, ok := f.entries[va]; ok {
		e.dirty = v
	}
}

func (f *FakePageTable) Destroy() {
	f.entries = make(map[uintptr]*pte)
}

// Touch marks va as accessed (and dirty, if write is true). Tests use this to
// simulate the CPU setting A/D bits on a memory reference; production x86-64
// sets them automatically on every TLB fill.
func (f *FakePageTable) Touch(va uintptr, write bool) {
	e, ok := f.entries[va]
	if !ok {
		return
	}
	e.accessed = true
	if write {
		e.dirty = true
	}
}
