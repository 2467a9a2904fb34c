// Package kerrno holds the sentinel errors returned across the syscall
// boundary. Structural kernel violations still panic (see spec.md §7); these
// are reserved for the failures a user-mode syscall is allowed to observe
// as -1 or a null return instead of crashing the kernel.
package kerrno

import "errors"

var (
	// ErrBadPointer is returned when a user pointer fails check_address:
	// null, above PHYS_BASE, or unmapped.
	ErrBadPointer = errors.New("kerrno: invalid user pointer")

	// ErrBadFD names a closed or out-of-range file descriptor. No caller
	// returns it: the syscall handlers report that case as -1.
	ErrBadFD = errors.New("kerrno: bad file descriptor")

	// ErrNoMem is returned when frame, page, or kernel-object allocation
	// fails.
	ErrNoMem = errors.New("kerrno: out of memory")

	// ErrNoChild names a wait on a tid that is no child of the caller, or a
	// child already reaped. No caller returns it: wait reports that case as -1.
	ErrNoChild = errors.New("kerrno: no such child")

	// ErrNotFound is returned by filesystem calls naming a file that does
	// not exist.
	ErrNotFound = errors.New("kerrno: no such file")

	// ErrExists names a create of a name that is already taken. No caller
	// returns it: create reports that case as false.
	ErrExists = errors.New("kerrno: file exists")

	// ErrInvalidArg covers unaligned mmap addresses, zero-length mappings,
	// and other malformed syscall arguments.
	ErrInvalidArg = errors.New("kerrno: invalid argument")

	// ErrOverlap is returned by mmap when the requested region overlaps an
	// existing supplemental page table entry.
	ErrOverlap = errors.New("kerrno: mapping overlaps existing region")

	// ErrWriteDenied is returned when a write is attempted against a file
	// held open for execution (deny_write) or a fault targets a
	// non-writable page.
	ErrWriteDenied = errors.New("kerrno: write denied")

	// ErrLoad is returned when ELF loading fails (bad magic, unreadable
	// segment, no stack room).
	ErrLoad = errors.New("kerrno: executable load failed")
)
