// Package patch builds a colorized cartridge image: it generates the
// injected code blocks, plans their layout, installs the entry hook
// trampoline and repairs the header checksums.
package patch

import (
	"fmt"

	"github.com/retroenv/gbcolordx/internal/layout"
)

// Hook describes the fixed entry vector a variant redirects. Which hook
// point is authoritative is empirical knowledge about the target firmware
// and therefore configuration, not a property of the injection engine.
type Hook struct {
	Kind   string `yaml:"kind"`   // input-handler, periodic-refresh, init
	Vector uint16 `yaml:"vector"` // CPU address of the entry vector in bank 0
	Window int    `yaml:"window"` // byte budget available at the vector
}

// Variant is one patch strategy to build and test.
type Variant struct {
	Name string `yaml:"name"`
	Hook Hook   `yaml:"hook"`

	// Bank and region receiving the injected blocks.
	PatchBank   int    `yaml:"patch_bank"`
	RegionStart uint16 `yaml:"region_start"`
	RegionEnd   uint16 `yaml:"region_end"`

	// Fixed lookup table base, 0 for bump allocation. A fixed page-aligned
	// base keeps the indexed add inside a single page.
	LookupTableAddr uint16 `yaml:"lookup_table_addr"`

	// RestoreBank is the bank the game expects mapped after the hook runs.
	RestoreBank byte `yaml:"restore_bank"`

	// InitFlagPort is the HRAM port (0xFF00 page) of the one-shot init
	// flag: read-and-branch-if-set, write-once-if-unset.
	InitFlagPort byte `yaml:"init_flag_port"`

	// TogglePort is the HRAM port of the byte selecting which shadow OAM
	// buffer the next DMA presents.
	TogglePort byte `yaml:"toggle_port"`

	// Shadow OAM double buffers in work RAM.
	ShadowBufferLow  uint16 `yaml:"shadow_buffer_low"`
	ShadowBufferHigh uint16 `yaml:"shadow_buffer_high"`

	// VBlankWaitOffset is the file offset of the LCD-off sequence that
	// freezes the machine in CGB mode, 0 to skip the display patch.
	VBlankWaitOffset int `yaml:"vblank_wait_offset"`
}

// Region returns the layout region of the variant.
func (v Variant) Region() layout.Region {
	return layout.Region{Bank: v.PatchBank, Start: v.RegionStart, End: v.RegionEnd}
}

// Validate checks the variant configuration before any byte is written.
func (v Variant) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("variant has no name")
	}
	if v.Hook.Window <= 0 {
		return fmt.Errorf("variant %q: hook window must be positive", v.Name)
	}
	if v.PatchBank < 1 {
		return fmt.Errorf("variant %q: patch bank %d is not a switchable bank", v.Name, v.PatchBank)
	}
	if v.RegionStart >= v.RegionEnd {
		return fmt.Errorf("variant %q: empty layout region", v.Name)
	}
	return nil
}

// DefaultVariants returns the built-in strategy list for the default
// target, ordered by how promising earlier test runs were: the
// input-handler hook proved stable, the periodic-refresh hook is the
// fallback.
func DefaultVariants() []Variant {
	base := Variant{
		Hook:             Hook{Kind: "input-handler", Vector: 0x0824, Window: 46},
		PatchBank:        13,
		RegionStart:      0x6C00,
		RegionEnd:        0x7000,
		LookupTableAddr:  0x6E00,
		RestoreBank:      1,
		InitFlagPort:     0xD7,
		TogglePort:       0xCB,
		ShadowBufferLow:  0xC000,
		ShadowBufferHigh: 0xC100,
		VBlankWaitOffset: 0x0073,
	}

	inputHandler := base
	inputHandler.Name = "input-handler-hook"

	refresh := base
	refresh.Name = "periodic-refresh-hook"
	refresh.Hook = Hook{Kind: "periodic-refresh", Vector: 0x09A8, Window: 38}

	return []Variant{inputHandler, refresh}
}
