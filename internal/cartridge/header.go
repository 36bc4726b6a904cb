package cartridge

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Header contains the parsed cartridge header fields.
type Header struct {
	Title       string
	CGBFlag     byte
	SGBFlag     byte
	Type        byte
	ROMSizeCode byte
	RAMSizeCode byte
	Destination byte
	OldLicensee byte
	Version     byte

	HeaderChecksum byte
	GlobalChecksum uint16
}

var cartridgeTypes = map[byte]string{
	0x00: "ROM ONLY",
	0x01: "MBC1",
	0x02: "MBC1+RAM",
	0x03: "MBC1+RAM+BATTERY",
	0x05: "MBC2",
	0x06: "MBC2+BATTERY",
	0x08: "ROM+RAM",
	0x09: "ROM+RAM+BATTERY",
	0x0F: "MBC3+TIMER+BATTERY",
	0x10: "MBC3+TIMER+RAM+BATTERY",
	0x11: "MBC3",
	0x12: "MBC3+RAM",
	0x13: "MBC3+RAM+BATTERY",
	0x19: "MBC5",
	0x1A: "MBC5+RAM",
	0x1B: "MBC5+RAM+BATTERY",
	0x1C: "MBC5+RUMBLE",
	0x1D: "MBC5+RUMBLE+RAM",
	0x1E: "MBC5+RUMBLE+RAM+BATTERY",
}

var romSizes = map[byte]int{
	0x00: 32 * 1024,
	0x01: 64 * 1024,
	0x02: 128 * 1024,
	0x03: 256 * 1024,
	0x04: 512 * 1024,
	0x05: 1024 * 1024,
	0x06: 2 * 1024 * 1024,
	0x07: 4 * 1024 * 1024,
	0x08: 8 * 1024 * 1024,
}

var ramSizes = map[byte]int{
	0x00: 0,
	0x01: 2 * 1024,
	0x02: 8 * 1024,
	0x03: 32 * 1024,
	0x04: 128 * 1024,
	0x05: 64 * 1024,
}

// Header parses the cartridge header.
func (img *Image) Header() Header {
	data := img.data
	title := strings.TrimRight(string(data[0x0134:0x0144]), "\x00")
	var printable strings.Builder
	for _, r := range title {
		if r >= 32 && r <= 126 {
			printable.WriteRune(r)
		}
	}

	return Header{
		Title:          strings.TrimSpace(printable.String()),
		CGBFlag:        data[CGBFlagOffset],
		SGBFlag:        data[0x0146],
		Type:           data[0x0147],
		ROMSizeCode:    data[0x0148],
		RAMSizeCode:    data[0x0149],
		Destination:    data[0x014A],
		OldLicensee:    data[0x014B],
		Version:        data[0x014C],
		HeaderChecksum: data[ChecksumOffset],
		GlobalChecksum: binary.BigEndian.Uint16(data[0x014E:0x0150]),
	}
}

// TypeName returns a human-readable name for the cartridge type byte.
func (h Header) TypeName() string {
	if name, ok := cartridgeTypes[h.Type]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", h.Type)
}

// DeclaredROMSize returns the ROM size the header declares, 0 if unknown.
func (h Header) DeclaredROMSize() int {
	return romSizes[h.ROMSizeCode]
}

// DeclaredRAMSize returns the RAM size the header declares, 0 if unknown.
func (h Header) DeclaredRAMSize() int {
	return ramSizes[h.RAMSizeCode]
}

// CGBSupport describes the CGB flag value.
func (h Header) CGBSupport() string {
	switch {
	case h.CGBFlag&0xC0 == 0xC0:
		return "CGB-only"
	case h.CGBFlag&0x80 != 0:
		return "CGB-supported"
	default:
		return "DMG-only"
	}
}

// SetCGBFlag marks the cartridge as CGB-capable while keeping DMG
// compatibility (0x80, not 0xC0).
func (img *Image) SetCGBFlag() error {
	return img.WriteHeaderByte(CGBFlagOffset, 0x80)
}
