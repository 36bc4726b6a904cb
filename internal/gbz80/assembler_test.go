package gbz80

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestEmitPaletteWriteLoop(t *testing.T) {
	// The canonical BCPD copy loop: LD A,0x80 / LDH [0x68],A /
	// LD C,64 / loop: LD A,[HL+] / LDH [0x69],A / DEC C / JR NZ,loop.
	a := New()
	a.LdImm(A, 0x80)
	a.LdhWrite(0x68)
	a.LdImm(C, 64)
	a.Label("loop")
	a.LdAHLI()
	a.LdhWrite(0x69)
	a.Dec(C)
	a.JrIf(NZ, "loop")

	block, err := a.Block("bg_loop")
	assert.NoError(t, err)

	resolved, err := block.Resolve(0x6D00, nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte{
		0x3E, 0x80,
		0xE0, 0x68,
		0x0E, 0x40,
		0x2A,
		0xE0, 0x69,
		0x0D,
		0x20, 0xFA, // JR NZ, -6
	}, resolved)
}

func TestResolveLeavesLengthUnchanged(t *testing.T) {
	a := New()
	a.Label("start")
	a.Nop()
	a.Jr("start")
	block, err := a.Block("b")
	assert.NoError(t, err)

	unresolved := block.Bytes()
	resolved, err := block.Resolve(0x4000, nil)
	assert.NoError(t, err)
	assert.Equal(t, len(unresolved), len(resolved))
}

func TestResolveAbsoluteSymbol(t *testing.T) {
	a := New()
	a.LdHLLabel("lookup_table")
	a.Call("colorizer")
	block, err := a.Block("main")
	assert.NoError(t, err)

	resolved, err := block.Resolve(0x6D00, map[string]uint16{
		"lookup_table": 0x6E00,
		"colorizer":    0x6980,
	})
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x21, 0x00, 0x6E, 0xCD, 0x80, 0x69}, resolved)
}

func TestResolveBranchRange(t *testing.T) {
	a := New()
	a.JrIf(NZ, "far")
	block, err := a.Block("b")
	assert.NoError(t, err)

	before := block.Bytes()

	// Target 0x200 bytes away cannot fit a signed displacement byte.
	resolved, err := block.Resolve(0x4000, map[string]uint16{"far": 0x4200})
	assert.Error(t, err)
	assert.Nil(t, resolved)

	var rangeErr *BranchRangeError
	assert.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, "far", rangeErr.Label)

	// Failed resolution leaves the block bytes unmodified.
	assert.Equal(t, before, block.Bytes())
}

func TestResolveUndefinedLabel(t *testing.T) {
	a := New()
	a.Call("missing")
	block, err := a.Block("b")
	assert.NoError(t, err)

	_, err = block.Resolve(0x4000, nil)
	var unresolved *UnresolvedLabelError
	assert.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "missing", unresolved.Label)
}

func TestDuplicateLabelFailsBlock(t *testing.T) {
	a := New()
	a.Label("twice")
	a.Nop()
	a.Label("twice")

	_, err := a.Block("b")
	assert.Error(t, err)
}

func TestBackwardAndForwardBranches(t *testing.T) {
	a := New()
	a.Label("top")
	a.LdhRead(0x4D)
	a.Bit7A()
	a.JrIf(Z, "done")
	a.Dec(B)
	a.JrIf(NZ, "top")
	a.Label("done")
	a.Ret()

	block, err := a.Block("b")
	assert.NoError(t, err)

	resolved, err := block.Resolve(0x0824, nil)
	assert.NoError(t, err)

	// JR Z,"done" sits at offset 4 with displacement byte at 5; done is at 9.
	assert.Equal(t, byte(0x03), resolved[5])
	// JR NZ,"top" displacement byte at 8; top is at 0.
	assert.Equal(t, byte(0xF7), resolved[8])
}

func TestDataBlock(t *testing.T) {
	table := make([]byte, 256)
	block := DataBlock("lookup", table)
	assert.Equal(t, 256, block.Len())
	assert.Equal(t, "lookup", block.Name())

	resolved, err := block.Resolve(0x6E00, nil)
	assert.NoError(t, err)
	assert.Equal(t, table, resolved)
}
