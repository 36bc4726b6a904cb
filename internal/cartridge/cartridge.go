// Package cartridge provides a byte-addressable, bank-aware view of a
// Game Boy cartridge image.
package cartridge

import (
	"fmt"
	"hash/crc32"
	"os"
)

// BankSize is the size of a single ROM bank.
const BankSize = 0x4000

// SwitchableWindowBase is the CPU address where the switchable bank window starts.
const SwitchableWindowBase = 0x4000

// BankSelectAddress is the MBC1 register that selects the switchable bank.
// Writes to it are emitted as ordinary instruction bytes in injected code.
const BankSelectAddress = 0x2000

// Header byte offsets that patch code is allowed to touch.
const (
	headerStart    = 0x0104 // logo start, first reserved byte
	headerEnd      = 0x014F // global checksum low byte
	CGBFlagOffset  = 0x0143
	ChecksumOffset = 0x014D
)

// Address identifies a byte in the cartridge as a (bank, CPU address) pair.
// Bank 0 addresses lie in the fixed low window 0x0000-0x3FFF, all other
// banks in the switchable window 0x4000-0x7FFF.
type Address struct {
	Bank int
	Addr uint16
}

func (a Address) String() string {
	return fmt.Sprintf("bank %d @ 0x%04X", a.Bank, a.Addr)
}

// OutOfBoundsError indicates a read or write outside the loaded image or
// into a reserved header byte.
type OutOfBoundsError struct {
	Offset int
	Length int
	Reason string
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("access of %d bytes at offset 0x%06X out of bounds: %s",
		e.Length, e.Offset, e.Reason)
}

// InvalidBankError indicates a (bank, address) pair that does not map into
// the cartridge.
type InvalidBankError struct {
	Address Address
	Reason  string
}

func (e *InvalidBankError) Error() string {
	return fmt.Sprintf("invalid address %s: %s", e.Address, e.Reason)
}

// Image is the full cartridge byte buffer. Its size is a multiple of the
// bank size and never changes after load.
type Image struct {
	data []byte
}

// Load reads a cartridge image from disk.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ROM file: %w", err)
	}
	return New(data)
}

// New creates an image from a raw buffer. The buffer is copied.
func New(data []byte) (*Image, error) {
	if len(data) < headerEnd+1 {
		return nil, fmt.Errorf("ROM of %d bytes is too small to contain a header", len(data))
	}
	if len(data)%BankSize != 0 {
		return nil, fmt.Errorf("ROM size 0x%X is not a multiple of the bank size 0x%X",
			len(data), BankSize)
	}
	img := &Image{data: make([]byte, len(data))}
	copy(img.data, data)
	return img, nil
}

// Save writes the image to disk.
func (img *Image) Save(path string) error {
	if err := os.WriteFile(path, img.data, 0o644); err != nil {
		return fmt.Errorf("writing ROM file: %w", err)
	}
	return nil
}

// Size returns the image size in bytes.
func (img *Image) Size() int {
	return len(img.data)
}

// Banks returns the number of banks in the image.
func (img *Image) Banks() int {
	return len(img.data) / BankSize
}

// CRC32 returns a fingerprint of the image for reporting.
func (img *Image) CRC32() uint32 {
	return crc32.ChecksumIEEE(img.data)
}

// Bytes returns a copy of the full image buffer.
func (img *Image) Bytes() []byte {
	out := make([]byte, len(img.data))
	copy(out, img.data)
	return out
}

// Translate maps a (bank, CPU address) pair to a flat file offset.
// Bank 0 maps the address directly, banks >= 1 map the switchable window:
// offset = bank*BankSize + (addr - SwitchableWindowBase).
func (img *Image) Translate(addr Address) (int, error) {
	if addr.Bank < 0 || addr.Bank >= img.Banks() {
		return 0, &InvalidBankError{Address: addr,
			Reason: fmt.Sprintf("image has %d banks", img.Banks())}
	}
	if addr.Bank == 0 {
		if addr.Addr >= SwitchableWindowBase {
			return 0, &InvalidBankError{Address: addr,
				Reason: "bank 0 addresses must lie in the fixed low window"}
		}
		return int(addr.Addr), nil
	}
	if addr.Addr < SwitchableWindowBase || addr.Addr >= 2*SwitchableWindowBase {
		return 0, &InvalidBankError{Address: addr,
			Reason: "banked addresses must lie in the switchable window"}
	}
	return addr.Bank*BankSize + int(addr.Addr) - SwitchableWindowBase, nil
}

// AddressOf is the inverse of Translate, mapping a file offset back to a
// (bank, CPU address) pair.
func (img *Image) AddressOf(offset int) (Address, error) {
	if offset < 0 || offset >= len(img.data) {
		return Address{}, &OutOfBoundsError{Offset: offset, Length: 1,
			Reason: fmt.Sprintf("image is 0x%06X bytes", len(img.data))}
	}
	bank := offset / BankSize
	if bank == 0 {
		return Address{Bank: 0, Addr: uint16(offset)}, nil
	}
	return Address{Bank: bank, Addr: uint16(SwitchableWindowBase + offset%BankSize)}, nil
}

// ReadAt returns a copy of length bytes starting at addr.
func (img *Image) ReadAt(addr Address, length int) ([]byte, error) {
	offset, err := img.Translate(addr)
	if err != nil {
		return nil, err
	}
	if length < 0 || offset+length > len(img.data) {
		return nil, &OutOfBoundsError{Offset: offset, Length: length,
			Reason: "read crosses the end of the image"}
	}
	out := make([]byte, length)
	copy(out, img.data[offset:offset+length])
	return out, nil
}

// WriteAt writes data starting at addr. Writes into the reserved header
// range are rejected; use WriteHeaderByte for the explicitly permitted
// header bytes.
func (img *Image) WriteAt(addr Address, data []byte) error {
	offset, err := img.Translate(addr)
	if err != nil {
		return err
	}
	return img.writeOffset(offset, data)
}

// WriteOffset writes data at a flat file offset, with the same header
// protection as WriteAt.
func (img *Image) WriteOffset(offset int, data []byte) error {
	if offset < 0 {
		return &OutOfBoundsError{Offset: offset, Length: len(data),
			Reason: "negative offset"}
	}
	return img.writeOffset(offset, data)
}

func (img *Image) writeOffset(offset int, data []byte) error {
	end := offset + len(data)
	if end > len(img.data) {
		return &OutOfBoundsError{Offset: offset, Length: len(data),
			Reason: "write crosses the end of the image"}
	}
	if offset <= headerEnd && end > headerStart {
		return &OutOfBoundsError{Offset: offset, Length: len(data),
			Reason: "write touches the reserved header range"}
	}
	copy(img.data[offset:end], data)
	return nil
}

// WriteHeaderByte writes a single byte inside the header range. The only
// legitimate header mutations are the CGB flag and the checksum bytes,
// everything else stays under the reserved-range protection of WriteAt.
func (img *Image) WriteHeaderByte(offset int, value byte) error {
	if offset < headerStart || offset > headerEnd {
		return &OutOfBoundsError{Offset: offset, Length: 1,
			Reason: "offset is not inside the header range"}
	}
	img.data[offset] = value
	return nil
}

// ByteAt returns the byte at a flat file offset.
func (img *Image) ByteAt(offset int) (byte, error) {
	if offset < 0 || offset >= len(img.data) {
		return 0, &OutOfBoundsError{Offset: offset, Length: 1,
			Reason: fmt.Sprintf("image is 0x%06X bytes", len(img.data))}
	}
	return img.data[offset], nil
}

// FreeRegion describes a run of pad bytes usable for injected code.
type FreeRegion struct {
	Offset int
	Length int
	Pad    byte
}

// FindFreeSpace scans the image for runs of pad bytes (0xFF or 0x00) of at
// least minLen bytes, longest first. The result is advisory: layout regions
// are configured explicitly, this only helps picking them.
func (img *Image) FindFreeSpace(minLen int) []FreeRegion {
	var regions []FreeRegion
	for i := headerEnd + 1; i < len(img.data); {
		pad := img.data[i]
		if pad != 0xFF && pad != 0x00 {
			i++
			continue
		}
		start := i
		for i < len(img.data) && img.data[i] == pad {
			i++
		}
		if i-start >= minLen {
			regions = append(regions, FreeRegion{Offset: start, Length: i - start, Pad: pad})
		}
	}
	for i := 0; i < len(regions); i++ {
		for j := i + 1; j < len(regions); j++ {
			if regions[j].Length > regions[i].Length {
				regions[i], regions[j] = regions[j], regions[i]
			}
		}
	}
	return regions
}
