package patch

import (
	"bytes"
	"fmt"

	"github.com/retroenv/gbcolordx/internal/cartridge"
)

// The firmware's VBlank wait turns the LCD off once the beam reaches the
// vertical blank. On CGB hardware that sequence corrupts the attribute
// state and freezes the machine on a white screen, so the patch NOPs the
// LCD-off write out:
//
//	F0 40    LDH A,[FF40]   ; read LCDC
//	E6 7F    AND 0x7F       ; clear the enable bit
//	E0 40    LDH [FF40],A   ; write LCDC
var lcdOffSequence = []byte{0xF0, 0x40, 0xE6, 0x7F, 0xE0, 0x40}

// applyDisplayPatches removes the CGB-hostile LCD-off sequence. The bytes
// at the configured offset are verified first: patching an unexpected
// instruction stream would corrupt an unknown firmware revision.
func applyDisplayPatches(img *cartridge.Image, v Variant) error {
	if v.VBlankWaitOffset == 0 {
		return nil
	}

	addr, err := img.AddressOf(v.VBlankWaitOffset)
	if err != nil {
		return fmt.Errorf("locating VBlank wait: %w", err)
	}
	current, err := img.ReadAt(addr, len(lcdOffSequence))
	if err != nil {
		return fmt.Errorf("reading VBlank wait: %w", err)
	}
	if !bytes.Equal(current, lcdOffSequence) {
		return fmt.Errorf("unexpected code at offset 0x%04X: % X, wanted the LCD-off sequence % X",
			v.VBlankWaitOffset, current, lcdOffSequence)
	}

	nops := make([]byte, len(lcdOffSequence))
	if err := img.WriteOffset(v.VBlankWaitOffset, nops); err != nil {
		return fmt.Errorf("patching VBlank wait: %w", err)
	}
	return nil
}
