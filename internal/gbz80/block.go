// Package gbz80 emits SM83 (Game Boy) machine code for the fixed set of
// operations the patcher injects, with symbolic labels and automatic
// branch fix-up replacing hand-computed offsets.
package gbz80

import "fmt"

// FixupKind describes how an unresolved reference is rewritten once the
// final layout is known.
type FixupKind int

const (
	// FixupRelative is a signed 8-bit displacement from the end of the
	// branch instruction (JR family).
	FixupRelative FixupKind = iota
	// FixupAbsolute is a little-endian 16-bit CPU address (LD HL/JP/CALL).
	FixupAbsolute
)

func (k FixupKind) String() string {
	if k == FixupRelative {
		return "relative"
	}
	return "absolute"
}

// Reference is an unresolved label use inside a block. Position is the
// byte offset of the placeholder within the block.
type Reference struct {
	Label    string
	Position int
	Kind     FixupKind
}

// BranchRangeError indicates a relative branch whose target does not fit
// the signed 8-bit displacement the ISA allows.
type BranchRangeError struct {
	Label        string
	Displacement int
}

func (e *BranchRangeError) Error() string {
	return fmt.Sprintf("branch to %q out of range: displacement %d does not fit a signed byte",
		e.Label, e.Displacement)
}

// UnresolvedLabelError indicates a reference to a label that neither the
// block nor the symbol table defines.
type UnresolvedLabelError struct {
	Label string
}

func (e *UnresolvedLabelError) Error() string {
	return fmt.Sprintf("reference to undefined label %q", e.Label)
}

// CodeBlock is an immutable, named instruction sequence with its local
// labels and unresolved references.
type CodeBlock struct {
	name   string
	code   []byte
	labels map[string]int
	refs   []Reference
}

// DataBlock wraps a raw data table (palette bytes, lookup tables) as a
// block so the layout planner can place it and code can reference it by
// name.
func DataBlock(name string, data []byte) *CodeBlock {
	b := &CodeBlock{name: name, code: make([]byte, len(data)), labels: map[string]int{}}
	copy(b.code, data)
	return b
}

// Name returns the block name. Other blocks reference it as a symbol.
func (b *CodeBlock) Name() string { return b.name }

// Len returns the block size in bytes.
func (b *CodeBlock) Len() int { return len(b.code) }

// Bytes returns a copy of the unresolved block bytes.
func (b *CodeBlock) Bytes() []byte {
	out := make([]byte, len(b.code))
	copy(out, b.code)
	return out
}

// HasLabel reports whether the block defines a local label.
func (b *CodeBlock) HasLabel(name string) bool {
	_, ok := b.labels[name]
	return ok
}

// References returns the unresolved references of the block.
func (b *CodeBlock) References() []Reference {
	out := make([]Reference, len(b.refs))
	copy(out, b.refs)
	return out
}

// Resolve rewrites every placeholder for a block placed at base. Local
// labels take precedence, all other labels are looked up in symbols.
// On any error the returned bytes are nil and the block is unmodified.
func (b *CodeBlock) Resolve(base uint16, symbols map[string]uint16) ([]byte, error) {
	out := make([]byte, len(b.code))
	copy(out, b.code)

	for _, ref := range b.refs {
		target, err := b.target(ref.Label, base, symbols)
		if err != nil {
			return nil, err
		}

		switch ref.Kind {
		case FixupRelative:
			// Displacement is measured from the end of the 2-byte branch
			// instruction, whose displacement byte is at ref.Position.
			disp := int(target) - (int(base) + ref.Position + 1)
			if disp < -128 || disp > 127 {
				return nil, &BranchRangeError{Label: ref.Label, Displacement: disp}
			}
			out[ref.Position] = byte(int8(disp))

		case FixupAbsolute:
			out[ref.Position] = byte(target)
			out[ref.Position+1] = byte(target >> 8)
		}
	}
	return out, nil
}

func (b *CodeBlock) target(label string, base uint16, symbols map[string]uint16) (uint16, error) {
	if pos, ok := b.labels[label]; ok {
		return base + uint16(pos), nil
	}
	if addr, ok := symbols[label]; ok {
		return addr, nil
	}
	return 0, &UnresolvedLabelError{Label: label}
}
