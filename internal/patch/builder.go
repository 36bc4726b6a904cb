package patch

import (
	"fmt"

	"github.com/retroenv/gbcolordx/internal/cartridge"
	"github.com/retroenv/gbcolordx/internal/gbz80"
	"github.com/retroenv/gbcolordx/internal/layout"
	"github.com/retroenv/gbcolordx/internal/palette"
	"github.com/retroenv/retrogolib/log"
)

// Builder turns a variant plus the palette configuration into a patched
// cartridge image.
type Builder struct {
	logger *log.Logger
	config *palette.Config
}

// NewBuilder creates a builder for a loaded configuration.
func NewBuilder(logger *log.Logger, config *palette.Config) *Builder {
	return &Builder{logger: logger, config: config}
}

// Info summarises a successful build for reporting.
type Info struct {
	Variant        string
	Blocks         []layout.Placement
	TrampolineSize int
	BytesInjected  int
}

// Build patches a copy of the source image for the given variant. The
// source image is never mutated; on error no image is returned, a
// partially patched result never leaves this function.
func (b *Builder) Build(source *cartridge.Image, v Variant) (*cartridge.Image, *Info, error) {
	if err := v.Validate(); err != nil {
		return nil, nil, err
	}

	img, err := cartridge.New(source.Bytes())
	if err != nil {
		return nil, nil, fmt.Errorf("copying image: %w", err)
	}
	if v.PatchBank >= img.Banks() {
		return nil, nil, fmt.Errorf("variant %q: patch bank %d outside the %d bank image",
			v.Name, v.PatchBank, img.Banks())
	}

	if err := applyDisplayPatches(img, v); err != nil {
		return nil, nil, fmt.Errorf("display patches: %w", err)
	}
	if err := img.SetCGBFlag(); err != nil {
		return nil, nil, fmt.Errorf("setting CGB flag: %w", err)
	}

	// Capture the handler bytes the trampoline displaces before anything
	// overwrites them; they are relocated into the injected entry block.
	original, err := img.ReadAt(cartridge.Address{Bank: 0, Addr: v.Hook.Vector}, v.Hook.Window)
	if err != nil {
		return nil, nil, fmt.Errorf("reading original handler: %w", err)
	}

	plan, err := b.planBlocks(v, original)
	if err != nil {
		return nil, nil, err
	}
	if err := plan.Apply(img); err != nil {
		return nil, nil, fmt.Errorf("applying layout: %w", err)
	}

	symbols := planSymbols(plan)
	if err := installTrampoline(img, v, symbols); err != nil {
		return nil, nil, err
	}

	// Checksum repair is the unconditional last step of every build.
	img.RepairChecksums()

	info := &Info{Variant: v.Name, Blocks: plan.Placements()}
	for _, p := range info.Blocks {
		info.BytesInjected += p.Block.Len()
		b.logger.Debug("placed block",
			log.String("block", p.Block.Name()),
			log.Int("bank", p.Address.Bank),
			log.Hex("address", p.Address.Addr),
			log.Int("size", p.Block.Len()))
	}
	tramp, err := trampolineBlock(v)
	if err == nil {
		info.TrampolineSize = tramp.Len()
	}

	b.logger.Info("built patch variant",
		log.String("variant", v.Name),
		log.String("hook", v.Hook.Kind),
		log.Hex("vector", v.Hook.Vector),
		log.Int("bytes_injected", info.BytesInjected))
	return img, info, nil
}

// planBlocks generates all blocks and lays them out: data tables first,
// then the code that references them.
func (b *Builder) planBlocks(v Variant, originalHandler []byte) (*layout.Plan, error) {
	planner := layout.NewPlanner(v.Region())

	if _, err := planner.Add(paletteDataBlock(&b.config.Palettes)); err != nil {
		return nil, fmt.Errorf("placing palette data: %w", err)
	}

	table := lookupTableBlock(b.config.Tiles)
	if v.LookupTableAddr != 0 {
		if _, err := planner.AddFixed(table, v.LookupTableAddr); err != nil {
			return nil, fmt.Errorf("placing lookup table: %w", err)
		}
	} else if _, err := planner.Add(table); err != nil {
		return nil, fmt.Errorf("placing lookup table: %w", err)
	}

	codeBlocks := []func() (*gbz80.CodeBlock, error){
		colorizerBlock,
		paletteLoaderBlock,
		func() (*gbz80.CodeBlock, error) { return recolorBlock(v) },
		func() (*gbz80.CodeBlock, error) { return mainBlock(v, originalHandler) },
	}
	for _, generate := range codeBlocks {
		block, err := generate()
		if err != nil {
			return nil, fmt.Errorf("generating code: %w", err)
		}
		if _, err := planner.Add(block); err != nil {
			return nil, fmt.Errorf("placing block %q: %w", block.Name(), err)
		}
	}

	plan, err := planner.Finalize()
	if err != nil {
		return nil, fmt.Errorf("finalizing layout: %w", err)
	}
	return plan, nil
}

// planSymbols exposes every placed block as a symbol for resolving code
// outside the planned region, i.e. the trampoline at the entry vector.
func planSymbols(plan *layout.Plan) map[string]uint16 {
	symbols := map[string]uint16{}
	for _, p := range plan.Placements() {
		symbols[p.Block.Name()] = p.Address.Addr
	}
	return symbols
}
