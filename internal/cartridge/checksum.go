package cartridge

import "encoding/binary"

// The header checksum covers 0x0134-0x014C and is stored at 0x014D.
// The global checksum is the 16-bit sum of every byte except its own two
// bytes, stored big-endian at 0x014E-0x014F.
const (
	checksumRangeStart = 0x0134
	checksumRangeEnd   = 0x014D // exclusive
	globalChecksumHigh = 0x014E
	globalChecksumLow  = 0x014F
)

// HeaderChecksum computes the header checksum over the fixed range using
// the platform scheme: x = (x - byte - 1) mod 256.
func (img *Image) HeaderChecksum() byte {
	var x byte
	for _, b := range img.data[checksumRangeStart:checksumRangeEnd] {
		x = x - b - 1
	}
	return x
}

// GlobalChecksum computes the 16-bit byte sum excluding the checksum bytes.
func (img *Image) GlobalChecksum() uint16 {
	var sum uint16
	for i, b := range img.data {
		if i == globalChecksumHigh || i == globalChecksumLow {
			continue
		}
		sum += uint16(b)
	}
	return sum
}

// RepairChecksums recomputes and stores both header and global checksums.
// It runs as the unconditional last step of every patch build and is
// idempotent: the checksum bytes are excluded from their own computation.
func (img *Image) RepairChecksums() {
	img.data[ChecksumOffset] = img.HeaderChecksum()
	binary.BigEndian.PutUint16(img.data[globalChecksumHigh:globalChecksumLow+1], img.GlobalChecksum())
}
