package gbz80

import "fmt"

// Register names the 8-bit registers usable with the immediate load and
// decrement helpers.
type Register int

// 8-bit registers.
const (
	A Register = iota
	B
	C
	D
	E
	H
	L
)

// Condition selects a conditional branch form.
type Condition int

// Branch conditions.
const (
	Z Condition = iota
	NZ
	Carry
	NoCarry
)

// RegisterPair names the 16-bit push/pop pairs.
type RegisterPair int

// 16-bit register pairs.
const (
	AF RegisterPair = iota
	BC
	DE
	HL
)

// Assembler builds a CodeBlock instruction by instruction. Branches are
// emitted with placeholder bytes and recorded as references; the first
// error sticks and is reported by Block.
type Assembler struct {
	code   []byte
	labels map[string]int
	refs   []Reference
	err    error
}

// New returns an empty assembler.
func New() *Assembler {
	return &Assembler{labels: map[string]int{}}
}

// Block seals the emitted code into an immutable CodeBlock.
func (a *Assembler) Block(name string) (*CodeBlock, error) {
	if a.err != nil {
		return nil, fmt.Errorf("assembling block %q: %w", name, a.err)
	}
	b := &CodeBlock{
		name:   name,
		code:   make([]byte, len(a.code)),
		labels: make(map[string]int, len(a.labels)),
		refs:   make([]Reference, len(a.refs)),
	}
	copy(b.code, a.code)
	copy(b.refs, a.refs)
	for k, v := range a.labels {
		b.labels[k] = v
	}
	return b, nil
}

// Len returns the number of bytes emitted so far.
func (a *Assembler) Len() int { return len(a.code) }

// Label defines a label at the current position.
func (a *Assembler) Label(name string) {
	if _, ok := a.labels[name]; ok {
		a.fail(fmt.Errorf("label %q defined twice", name))
		return
	}
	a.labels[name] = len(a.code)
}

func (a *Assembler) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

func (a *Assembler) emit(bytes ...byte) {
	a.code = append(a.code, bytes...)
}

var ldImmOpcodes = map[Register]byte{
	A: 0x3E, B: 0x06, C: 0x0E, D: 0x16, E: 0x1E, H: 0x26, L: 0x2E,
}

// LdImm emits LD r, n.
func (a *Assembler) LdImm(r Register, value byte) {
	op, ok := ldImmOpcodes[r]
	if !ok {
		a.fail(fmt.Errorf("no immediate load for register %d", r))
		return
	}
	a.emit(op, value)
}

var ldFromAOpcodes = map[Register]byte{
	B: 0x47, C: 0x4F, D: 0x57, E: 0x5F, H: 0x67, L: 0x6F,
}

// LdFromA emits LD r, A.
func (a *Assembler) LdFromA(r Register) {
	op, ok := ldFromAOpcodes[r]
	if !ok {
		a.fail(fmt.Errorf("no LD r,A form for register %d", r))
		return
	}
	a.emit(op)
}

var ldToAOpcodes = map[Register]byte{
	B: 0x78, C: 0x79, D: 0x7A, E: 0x7B, H: 0x7C, L: 0x7D,
}

// LdToA emits LD A, r.
func (a *Assembler) LdToA(r Register) {
	op, ok := ldToAOpcodes[r]
	if !ok {
		a.fail(fmt.Errorf("no LD A,r form for register %d", r))
		return
	}
	a.emit(op)
}

// LdHLImm emits LD HL, nn with a literal address.
func (a *Assembler) LdHLImm(addr uint16) {
	a.emit(0x21, byte(addr), byte(addr>>8))
}

// LdHLLabel emits LD HL, nn with the address of a label, resolved later.
func (a *Assembler) LdHLLabel(label string) {
	a.emit(0x21)
	a.refs = append(a.refs, Reference{Label: label, Position: len(a.code), Kind: FixupAbsolute})
	a.emit(0x00, 0x00)
}

// LdDELabel emits LD DE, nn with the address of a label, resolved later.
func (a *Assembler) LdDELabel(label string) {
	a.emit(0x11)
	a.refs = append(a.refs, Reference{Label: label, Position: len(a.code), Kind: FixupAbsolute})
	a.emit(0x00, 0x00)
}

// LdAHLI emits LD A, [HL+].
func (a *Assembler) LdAHLI() { a.emit(0x2A) }

// LdAHL emits LD A, [HL].
func (a *Assembler) LdAHL() { a.emit(0x7E) }

// LdHLA emits LD [HL], A.
func (a *Assembler) LdHLA() { a.emit(0x77) }

// IncHL emits INC HL.
func (a *Assembler) IncHL() { a.emit(0x23) }

// AddHLDE emits ADD HL, DE.
func (a *Assembler) AddHLDE() { a.emit(0x19) }

// AddAA emits ADD A, A.
func (a *Assembler) AddAA() { a.emit(0x87) }

var subOpcodes = map[Register]byte{
	A: 0x97, B: 0x90, C: 0x91, D: 0x92, E: 0x93, H: 0x94, L: 0x95,
}

// Sub emits SUB r.
func (a *Assembler) Sub(r Register) {
	a.emit(subOpcodes[r])
}

var incOpcodes = map[Register]byte{
	A: 0x3C, B: 0x04, C: 0x0C, D: 0x14, E: 0x1C, H: 0x24, L: 0x2C,
}

// Inc emits INC r.
func (a *Assembler) Inc(r Register) {
	a.emit(incOpcodes[r])
}

var decOpcodes = map[Register]byte{
	A: 0x3D, B: 0x05, C: 0x0D, D: 0x15, E: 0x1D, H: 0x25, L: 0x2D,
}

// Dec emits DEC r.
func (a *Assembler) Dec(r Register) {
	a.emit(decOpcodes[r])
}

// LdhWrite emits LDH [port], A for a 0xFF00-page port.
func (a *Assembler) LdhWrite(port byte) { a.emit(0xE0, port) }

// LdhRead emits LDH A, [port] for a 0xFF00-page port.
func (a *Assembler) LdhRead(port byte) { a.emit(0xF0, port) }

// LdAbsA emits LD [nn], A.
func (a *Assembler) LdAbsA(addr uint16) { a.emit(0xEA, byte(addr), byte(addr>>8)) }

// LdAAbs emits LD A, [nn].
func (a *Assembler) LdAAbs(addr uint16) { a.emit(0xFA, byte(addr), byte(addr>>8)) }

// AndImm emits AND n.
func (a *Assembler) AndImm(value byte) { a.emit(0xE6, value) }

// AndA emits AND A, setting flags from A.
func (a *Assembler) AndA() { a.emit(0xA7) }

var orOpcodes = map[Register]byte{
	A: 0xB7, B: 0xB0, C: 0xB1, D: 0xB2, E: 0xB3, H: 0xB4, L: 0xB5,
}

// Or emits OR r.
func (a *Assembler) Or(r Register) {
	a.emit(orOpcodes[r])
}

// CpImm emits CP n.
func (a *Assembler) CpImm(value byte) { a.emit(0xFE, value) }

// Bit7A emits BIT 7, A.
func (a *Assembler) Bit7A() { a.emit(0xCB, 0x7F) }

var jrOpcodes = map[Condition]byte{
	Z: 0x28, NZ: 0x20, Carry: 0x38, NoCarry: 0x30,
}

// Jr emits an unconditional relative jump to a label.
func (a *Assembler) Jr(label string) {
	a.emit(0x18)
	a.refs = append(a.refs, Reference{Label: label, Position: len(a.code), Kind: FixupRelative})
	a.emit(0x00)
}

// JrIf emits a conditional relative jump to a label.
func (a *Assembler) JrIf(cond Condition, label string) {
	a.emit(jrOpcodes[cond])
	a.refs = append(a.refs, Reference{Label: label, Position: len(a.code), Kind: FixupRelative})
	a.emit(0x00)
}

var jpOpcodes = map[Condition]byte{
	Z: 0xCA, NZ: 0xC2, Carry: 0xDA, NoCarry: 0xD2,
}

// JpIf emits a conditional absolute jump to a label.
func (a *Assembler) JpIf(cond Condition, label string) {
	a.emit(jpOpcodes[cond])
	a.refs = append(a.refs, Reference{Label: label, Position: len(a.code), Kind: FixupAbsolute})
	a.emit(0x00, 0x00)
}

// Call emits CALL nn to a label.
func (a *Assembler) Call(label string) {
	a.emit(0xCD)
	a.refs = append(a.refs, Reference{Label: label, Position: len(a.code), Kind: FixupAbsolute})
	a.emit(0x00, 0x00)
}

// CallAddr emits CALL nn to a fixed address.
func (a *Assembler) CallAddr(addr uint16) { a.emit(0xCD, byte(addr), byte(addr>>8)) }

// Ret emits RET.
func (a *Assembler) Ret() { a.emit(0xC9) }

// RetZ emits RET Z.
func (a *Assembler) RetZ() { a.emit(0xC8) }

// RetNZ emits RET NZ.
func (a *Assembler) RetNZ() { a.emit(0xC0) }

var pushOpcodes = map[RegisterPair]byte{
	AF: 0xF5, BC: 0xC5, DE: 0xD5, HL: 0xE5,
}

var popOpcodes = map[RegisterPair]byte{
	AF: 0xF1, BC: 0xC1, DE: 0xD1, HL: 0xE1,
}

// Push emits PUSH rr.
func (a *Assembler) Push(rr RegisterPair) {
	a.emit(pushOpcodes[rr])
}

// Pop emits POP rr.
func (a *Assembler) Pop(rr RegisterPair) {
	a.emit(popOpcodes[rr])
}

// Nop emits NOP.
func (a *Assembler) Nop() { a.emit(0x00) }

// Raw appends pre-encoded bytes, used for relocated original handler code
// and data tables.
func (a *Assembler) Raw(bytes ...byte) {
	a.emit(bytes...)
}
