package patch

import (
	"fmt"

	"github.com/retroenv/gbcolordx/internal/cartridge"
	"github.com/retroenv/gbcolordx/internal/gbz80"
)

// TrampolineTooLargeError indicates the hook window is too small for the
// trampoline. Installation never drops part of the original handler to
// make room.
type TrampolineTooLargeError struct {
	Vector uint16
	Size   int
	Window int
}

func (e *TrampolineTooLargeError) Error() string {
	return fmt.Sprintf("trampoline of %d bytes does not fit the %d byte window at vector 0x%04X",
		e.Size, e.Window, e.Vector)
}

// trampolineBlock generates the bank-switching redirect written over the
// entry vector: save AF across the bank switch, map the patch bank, call
// the injected entry point, restore the game's resident bank and return
// exactly as the original handler would have.
func trampolineBlock(v Variant) (*gbz80.CodeBlock, error) {
	a := gbz80.New()

	a.Push(gbz80.AF)
	a.LdImm(gbz80.A, byte(v.PatchBank))
	a.LdAbsA(cartridge.BankSelectAddress)
	a.Pop(gbz80.AF)

	a.Call(blockMain)

	a.Push(gbz80.AF)
	a.LdImm(gbz80.A, v.RestoreBank)
	a.LdAbsA(cartridge.BankSelectAddress)
	a.Pop(gbz80.AF)
	a.Ret()

	return a.Block("trampoline")
}

// installTrampoline overwrites the hook window with the resolved
// trampoline, NOP-padding the displaced remainder of the window.
func installTrampoline(img *cartridge.Image, v Variant, symbols map[string]uint16) error {
	block, err := trampolineBlock(v)
	if err != nil {
		return fmt.Errorf("generating trampoline: %w", err)
	}
	if block.Len() > v.Hook.Window {
		return &TrampolineTooLargeError{
			Vector: v.Hook.Vector,
			Size:   block.Len(),
			Window: v.Hook.Window,
		}
	}

	resolved, err := block.Resolve(v.Hook.Vector, symbols)
	if err != nil {
		return fmt.Errorf("resolving trampoline: %w", err)
	}

	window := make([]byte, v.Hook.Window)
	copy(window, resolved)
	// The rest of the window held handler bytes that now live in the
	// injected block; pad with NOPs so stray jumps into it stay harmless.
	if err := img.WriteAt(cartridge.Address{Bank: 0, Addr: v.Hook.Vector}, window); err != nil {
		return fmt.Errorf("writing trampoline: %w", err)
	}
	return nil
}
