package process

import "encoding/binary"

// buildELF assembles a minimal ELF64 ET_EXEC file with a single PT_LOAD
// segment covering data, for tests that need a "real" executable without
// shipping a binary fixture.
func buildELF(data []byte, vaddr, entry uint64) []byte {
	const ehdrSize = 64
	const phdrSize = 56
	offset := uint64(ehdrSize + phdrSize)

	buf := make([]byte, offset+uint64(len(data)))
	le := binary.LittleEndian

	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EV_CURRENT

	le.PutUint16(buf[16:18], 2)         // e_type = ET_EXEC
	le.PutUint16(buf[18:20], 62)        // e_machine = EM_X86_64
	le.PutUint32(buf[20:24], 1)         // e_version
	le.PutUint64(buf[24:32], entry)     // e_entry
	le.PutUint64(buf[32:40], ehdrSize)  // e_phoff
	le.PutUint64(buf[40:48], 0)         // e_shoff
	le.PutUint32(buf[48:52], 0)         // e_flags
	le.PutUint16(buf[52:54], ehdrSize)  // e_ehsize
	le.PutUint16(buf[54:56], phdrSize)  // e_phentsize
	le.PutUint16(buf[56:58], 1)         // e_phnum
	le.PutUint16(buf[58:60], 0)         // e_shentsize
	le.PutUint16(buf[60:62], 0)         // e_shnum
	le.PutUint16(buf[62:64], 0)         // e_shstrndx

	ph := buf[ehdrSize : ehdrSize+phdrSize]
	le.PutUint32(ph[0:4], 1) // p_type = PT_LOAD
	le.PutUint32(ph[4:8], 7) // p_flags = R|W|X
	le.PutUint64(ph[8:16], offset)
	le.PutUint64(ph[16:24], vaddr)
	le.PutUint64(ph[24:32], vaddr)
	le.PutUint64(ph[32:40], uint64(len(data)))
	le.PutUint64(ph[40:48], uint64(len(data)))
	le.PutUint64(ph[48:56], 0x1000)

	copy(buf[offset:], data)
	return buf
}
