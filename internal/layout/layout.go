// Package layout assigns generated code blocks concrete addresses inside
// a cartridge bank. Placement is a deterministic bump allocator over a
// configured region; blocks whose address is hard-wired into the patch
// can request a fixed placement instead.
package layout

import (
	"fmt"
	"sort"

	"github.com/retroenv/gbcolordx/internal/cartridge"
	"github.com/retroenv/gbcolordx/internal/gbz80"
)

// Region is the bank-relative address range available for injected blocks.
type Region struct {
	Bank  int
	Start uint16 // CPU address, inclusive
	End   uint16 // CPU address, exclusive
}

// Size returns the region budget in bytes.
func (r Region) Size() int {
	return int(r.End) - int(r.Start)
}

// LayoutOverflowError indicates a block that does not fit the remaining
// region budget.
type LayoutOverflowError struct {
	Block     string
	Size      int
	Remaining int
}

func (e *LayoutOverflowError) Error() string {
	return fmt.Sprintf("block %q of %d bytes exceeds the region budget, %d bytes remaining",
		e.Block, e.Size, e.Remaining)
}

// PlacementConflictError indicates overlapping block placements.
type PlacementConflictError struct {
	Block string
	Other string
}

func (e *PlacementConflictError) Error() string {
	return fmt.Sprintf("placement of block %q overlaps block %q", e.Block, e.Other)
}

// Placement is a block with its assigned address.
type Placement struct {
	Block   *gbz80.CodeBlock
	Address cartridge.Address
}

// Planner places blocks into a region. Blocks are added in dependency
// order: data tables before the code that references them.
type Planner struct {
	region Region
	next   uint16
	placed []Placement
	fixed  map[string]bool
}

// NewPlanner returns a planner for the given region.
func NewPlanner(region Region) *Planner {
	return &Planner{
		region: region,
		next:   region.Start,
		fixed:  map[string]bool{},
	}
}

// Add bump-allocates the next free address for a block.
func (p *Planner) Add(block *gbz80.CodeBlock) (cartridge.Address, error) {
	addr := p.next
	end := int(addr) + block.Len()
	if end > int(p.region.End) {
		return cartridge.Address{}, &LayoutOverflowError{
			Block:     block.Name(),
			Size:      block.Len(),
			Remaining: int(p.region.End) - int(addr),
		}
	}
	// A fixed placement may sit inside the remaining bump space.
	for _, existing := range p.placed {
		if overlaps(addr, uint16(end), existing) {
			return cartridge.Address{}, &PlacementConflictError{
				Block: block.Name(), Other: existing.Block.Name(),
			}
		}
	}
	placement := Placement{
		Block:   block,
		Address: cartridge.Address{Bank: p.region.Bank, Addr: addr},
	}
	p.placed = append(p.placed, placement)
	p.next = uint16(end)
	return placement.Address, nil
}

// AddFixed places a block at a required CPU address inside the region.
func (p *Planner) AddFixed(block *gbz80.CodeBlock, addr uint16) (cartridge.Address, error) {
	end := int(addr) + block.Len()
	if addr < p.region.Start || end > int(p.region.End) {
		return cartridge.Address{}, &LayoutOverflowError{
			Block:     block.Name(),
			Size:      block.Len(),
			Remaining: p.region.Size(),
		}
	}
	for _, existing := range p.placed {
		if overlaps(addr, uint16(end), existing) {
			return cartridge.Address{}, &PlacementConflictError{
				Block: block.Name(), Other: existing.Block.Name(),
			}
		}
	}
	placement := Placement{
		Block:   block,
		Address: cartridge.Address{Bank: p.region.Bank, Addr: addr},
	}
	p.placed = append(p.placed, placement)
	p.fixed[block.Name()] = true
	if uint16(end) > p.next {
		p.next = uint16(end)
	}
	return placement.Address, nil
}

func overlaps(start, end uint16, existing Placement) bool {
	exStart := existing.Address.Addr
	exEnd := exStart + uint16(existing.Block.Len())
	return start < exEnd && exStart < end
}

// Plan is the validated mapping from block name to assigned address.
type Plan struct {
	placements []Placement
	symbols    map[string]uint16
}

// Finalize validates the layout and resolves every reference: no two
// blocks overlap and every referenced label is either block-local or the
// name of a placed block.
func (p *Planner) Finalize() (*Plan, error) {
	placements := make([]Placement, len(p.placed))
	copy(placements, p.placed)
	sort.Slice(placements, func(i, j int) bool {
		return placements[i].Address.Addr < placements[j].Address.Addr
	})

	symbols := make(map[string]uint16, len(placements))
	for i, placement := range placements {
		name := placement.Block.Name()
		if _, ok := symbols[name]; ok {
			return nil, fmt.Errorf("duplicate block name %q in plan", name)
		}
		symbols[name] = placement.Address.Addr

		if i > 0 {
			prev := placements[i-1]
			prevEnd := prev.Address.Addr + uint16(prev.Block.Len())
			if placement.Address.Addr < prevEnd {
				return nil, &PlacementConflictError{
					Block: name, Other: prev.Block.Name(),
				}
			}
		}
	}

	plan := &Plan{placements: placements, symbols: symbols}
	for _, placement := range placements {
		for _, ref := range placement.Block.References() {
			if !plan.defines(placement.Block, ref.Label) {
				return nil, fmt.Errorf("block %q: %w",
					placement.Block.Name(), &gbz80.UnresolvedLabelError{Label: ref.Label})
			}
		}
	}
	return plan, nil
}

func (p *Plan) defines(block *gbz80.CodeBlock, label string) bool {
	if block.HasLabel(label) {
		return true
	}
	_, ok := p.symbols[label]
	return ok
}

// AddressOf returns the assigned address of a named block.
func (p *Plan) AddressOf(name string) (cartridge.Address, bool) {
	for _, placement := range p.placements {
		if placement.Block.Name() == name {
			return placement.Address, true
		}
	}
	return cartridge.Address{}, false
}

// Placements returns the placements in address order.
func (p *Plan) Placements() []Placement {
	out := make([]Placement, len(p.placements))
	copy(out, p.placements)
	return out
}

// Apply resolves every block against the final symbol table and writes
// the resolved bytes into the image.
func (p *Plan) Apply(img *cartridge.Image) error {
	for _, placement := range p.placements {
		resolved, err := placement.Block.Resolve(placement.Address.Addr, p.symbols)
		if err != nil {
			return fmt.Errorf("resolving block %q: %w", placement.Block.Name(), err)
		}
		if err := img.WriteAt(placement.Address, resolved); err != nil {
			return fmt.Errorf("writing block %q: %w", placement.Block.Name(), err)
		}
	}
	return nil
}
