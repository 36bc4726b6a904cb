package patch

import (
	"github.com/retroenv/gbcolordx/internal/gbz80"
	"github.com/retroenv/gbcolordx/internal/palette"
)

// Block names shared between generation, layout and the trampoline.
const (
	blockPaletteData = "palette_data"
	blockLookupTable = "lookup_table"
	blockColorizer   = "colorizer"
	blockLoader      = "palette_loader"
	blockRecolor     = "oam_recolor"
	blockMain        = "injected_main"
)

// Palette register ports on the 0xFF00 page.
const (
	portKEY1 = 0x4D
	portBCPS = 0x68
	portBCPD = 0x69
	portOCPS = 0x6A
	portOCPD = 0x6B
)

const oamBase = 0xFE00

// paletteDataBlock packs the configured palettes into the 128-byte data
// table the loader copies into palette RAM: 64 BG bytes then 64 OBJ bytes.
func paletteDataBlock(set *palette.Set) *gbz80.CodeBlock {
	data := append(set.EncodeBG(), set.EncodeOBJ()...)
	return gbz80.DataBlock(blockPaletteData, data)
}

// lookupTableBlock wraps the 256-byte tile to palette table.
func lookupTableBlock(tiles *palette.TileMap) *gbz80.CodeBlock {
	return gbz80.DataBlock(blockLookupTable, tiles.Table())
}

// paletteLoaderBlock generates the one-time palette RAM initialization:
// bail out on DMG, then stream both 64-byte tables through the
// auto-incrementing BCPD/OCPD ports.
func paletteLoaderBlock() (*gbz80.CodeBlock, error) {
	a := gbz80.New()

	// KEY1 reads with bit 7 clear only on DMG hardware.
	a.LdhRead(portKEY1)
	a.Bit7A()
	a.RetZ()

	a.LdHLLabel(blockPaletteData)
	a.LdImm(gbz80.A, 0x80) // auto-increment, index 0
	a.LdhWrite(portBCPS)
	a.LdImm(gbz80.C, 64)
	a.Label("bg_loop")
	a.LdAHLI()
	a.LdhWrite(portBCPD)
	a.Dec(gbz80.C)
	a.JrIf(gbz80.NZ, "bg_loop")

	a.LdImm(gbz80.A, 0x80)
	a.LdhWrite(portOCPS)
	a.LdImm(gbz80.C, 64)
	a.Label("obj_loop")
	a.LdAHLI()
	a.LdhWrite(portOCPD)
	a.Dec(gbz80.C)
	a.JrIf(gbz80.NZ, "obj_loop")

	a.Ret()
	return a.Block(blockLoader)
}

// colorizerBlock generates the sprite recoloring loop. On entry HL holds
// the OAM buffer base. For every visible sprite the tile id indexes the
// lookup table; the 0xFF sentinel leaves the sprite untouched, anything
// else replaces the palette bits of the flags byte.
func colorizerBlock() (*gbz80.CodeBlock, error) {
	a := gbz80.New()

	a.LdImm(gbz80.B, 40) // OAM sprite count

	a.Label("sprite")
	a.LdAHL() // Y position
	a.LdFromA(gbz80.C)
	a.IncHL() // X
	a.IncHL() // tile id
	a.LdAHL()
	a.LdFromA(gbz80.E)
	a.IncHL() // flags

	// Y of 0 means the slot is unused, >= 160 is off screen.
	a.LdToA(gbz80.C)
	a.AndA()
	a.JrIf(gbz80.Z, "next")
	a.CpImm(160)
	a.JrIf(gbz80.NoCarry, "next")

	a.Push(gbz80.HL)
	a.LdImm(gbz80.D, 0)
	a.LdHLLabel(blockLookupTable)
	a.AddHLDE()
	a.LdAHL() // assigned palette
	a.Pop(gbz80.HL)

	a.CpImm(palette.Unassigned)
	a.JrIf(gbz80.Z, "next")

	a.LdFromA(gbz80.D)
	a.LdAHL() // flags byte
	a.AndImm(0xF8)
	a.Or(gbz80.D)
	a.LdHLA()

	a.Label("next")
	a.IncHL() // advance to the next sprite's Y byte
	a.Dec(gbz80.B)
	a.JrIf(gbz80.NZ, "sprite")
	a.Ret()

	return a.Block(blockColorizer)
}

// recolorBlock selects the shadow OAM buffer the next DMA will present
// (double-buffered output: writing the wrong buffer shows one stale
// frame and flickers) and recolors it plus the live hardware OAM.
func recolorBlock(v Variant) (*gbz80.CodeBlock, error) {
	a := gbz80.New()

	a.LdhRead(v.TogglePort)
	a.AndA()
	a.JrIf(gbz80.Z, "low_buffer")
	a.LdHLImm(v.ShadowBufferHigh)
	a.Jr("recolor")
	a.Label("low_buffer")
	a.LdHLImm(v.ShadowBufferLow)
	a.Label("recolor")
	a.Call(blockColorizer)

	a.LdHLImm(oamBase)
	a.Call(blockColorizer)
	a.Ret()

	return a.Block(blockRecolor)
}

// mainBlock is the injected entry point the trampoline calls. It saves
// the registers the relocated handler and the game depend on, runs the
// one-shot palette initialization guarded by the HRAM flag byte, then the
// per-frame recoloring, and finally falls through into the preserved
// original handler bytes.
func mainBlock(v Variant, originalHandler []byte) (*gbz80.CodeBlock, error) {
	a := gbz80.New()

	a.Push(gbz80.AF)
	a.Push(gbz80.BC)
	a.Push(gbz80.DE)
	a.Push(gbz80.HL)

	// One-shot init protocol: read-and-branch-if-set, write-once-if-unset.
	a.LdhRead(v.InitFlagPort)
	a.AndA()
	a.JrIf(gbz80.NZ, "initialized")
	a.LdImm(gbz80.A, 1)
	a.LdhWrite(v.InitFlagPort)
	a.Call(blockLoader)
	a.Label("initialized")

	a.Call(blockRecolor)

	a.Pop(gbz80.HL)
	a.Pop(gbz80.DE)
	a.Pop(gbz80.BC)
	a.Pop(gbz80.AF)

	// The original handler's visible side effects are preserved by
	// relocating its displaced bytes verbatim behind the injected work.
	a.Raw(originalHandler...)
	a.Ret()

	return a.Block(blockMain)
}
