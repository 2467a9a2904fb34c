package hw

import "github.com/go-pintos/kernel/internal/kerrno"

// SectorSize matches Pintos's DISK_SECTOR_SIZE.
const SectorSize = 512

// Disk is the swap/block-device abstraction spec.md §1 and §6 put out of
// scope. Swap slot i occupies sectors i*SectorsPerSlot..i*SectorsPerSlot+SectorsPerSlot-1
// (spec.md §6); there is no on-disk header, so the in-memory bitmap in
// internal/vm is authoritative about which slots are live.
type Disk interface {
	ReadSector(sector int, buf []byte) error
	WriteSector(sector int, buf []byte) error
	NumSectors() int
}

// FakeDisk is an in-memory stand-in for a block device, used by every test
// in this repository in place of a real swap partition.
type FakeDisk struct {
	sectors [][SectorSize]byte
}

// NewFakeDisk returns a disk of the given sector count, zero-filled.
func NewFakeDisk(numSectors int) *FakeDisk {
	return &FakeDisk{sectors: make([][SectorSize]byte, numSectors)}
}

func (d *FakeDisk) NumSectors() int { return len(d.sectors) }

func (d *FakeDisk) ReadSector(sector int, buf []byte) error {
	if sector < 0 || sector >= len(d.sectors) || len(buf) != SectorSize {
		return kerrno.ErrInvalidArg
	}
	copy(buf, d.sectors[sector][:])
	return nil
}

func (d *FakeDisk) WriteSector(sector int, buf []byte) error {
	if sector < 0 || sector >= len(d.sectors) || len(buf) != SectorSize {
		return kerrno.ErrInvalidArg
	}
	copy(d.sectors[sector][:], buf)
	return nil
}
