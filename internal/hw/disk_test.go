package hw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeDiskReadWriteRoundTrip(t *testing.T) {
	d := NewFakeDisk(4)
	require.Equal(t, 4, d.NumSectors())

	out := make([]byte, SectorSize)
	out[0] = 0xff
	out[SectorSize-1] = 0x42
	require.NoError(t, d.WriteSector(1, out))

	in := make([]byte, SectorSize)
	require.NoError(t, d.ReadSector(1, in))
	assert.Equal(t, out, in)
}

func TestFakeDiskZeroFilledInitially(t *testing.T) {
	d := NewFakeDisk(1)
	buf := make([]byte, SectorSize)
	require.NoError(t, d.ReadSector(0, buf))
	for _, b := range buf {
		require.Zero(t, b)
	}
}

func TestFakeDiskRejectsOutOfRangeSector(t *testing.T) {
	d := NewFakeDisk(2)
	buf := make([]byte, SectorSize)
	assert.Error(t, d.ReadSector(-1, buf))
	assert.Error(t, d.ReadSector(2, buf))
	assert.Error(t, d.WriteSector(2, buf))
}

func TestFakeDiskRejectsWrongSizedBuffer(t *testing.T) {
	d := NewFakeDisk(1)
	assert.Error(t, d.ReadSector(0, make([]byte, SectorSize-1)))
	assert.Error(t, d.WriteSector(0, make([]byte, SectorSize+1)))
}
