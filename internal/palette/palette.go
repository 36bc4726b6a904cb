// Package palette loads the colorization configuration: palette sets in
// packed BGR555 and the tile to palette assignment map.
package palette

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PaletteCount is the number of hardware palettes per layer.
const PaletteCount = 8

// ColorsPerPalette is the number of colors a hardware palette holds.
const ColorsPerPalette = 4

// Color is a packed BGR555 color value.
type Color uint16

// ParseColor parses a 4-digit hex BGR555 color string.
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid BGR555 color %q: %w", s, err)
	}
	return Color(v & 0x7FFF), nil
}

// RGB expands the packed value to 8-bit channels.
func (c Color) RGB() (r, g, b uint8) {
	r = uint8(c&0x1F) << 3
	g = uint8((c>>5)&0x1F) << 3
	b = uint8((c>>10)&0x1F) << 3
	return r, g, b
}

// Palette is a named set of four colors.
type Palette struct {
	Name   string
	Colors [ColorsPerPalette]Color
}

// Encode packs the palette into the 8-byte little-endian wire format the
// BCPD/OCPD registers consume.
func (p Palette) Encode() []byte {
	out := make([]byte, 0, ColorsPerPalette*2)
	for _, c := range p.Colors {
		out = append(out, byte(c), byte(c>>8))
	}
	return out
}

// Set holds the full palette configuration for a patch run.
type Set struct {
	BG  []Palette
	OBJ []Palette
}

var defaultBG = Palette{
	Name:   "default",
	Colors: [4]Color{0x7FFF, 0x5294, 0x2108, 0x0000},
}

var defaultOBJ = Palette{
	Name:   "default",
	Colors: [4]Color{0x0000, 0x7FFF, 0x5294, 0x2108},
}

// EncodeBG returns the 64-byte BG palette block, missing entries padded
// with the default grayscale ramp.
func (s *Set) EncodeBG() []byte {
	return encodeLayer(s.BG, defaultBG)
}

// EncodeOBJ returns the 64-byte OBJ palette block.
func (s *Set) EncodeOBJ() []byte {
	return encodeLayer(s.OBJ, defaultOBJ)
}

func encodeLayer(palettes []Palette, fill Palette) []byte {
	out := make([]byte, 0, PaletteCount*ColorsPerPalette*2)
	for i := range PaletteCount {
		p := fill
		if i < len(palettes) {
			p = palettes[i]
		}
		out = append(out, p.Encode()...)
	}
	return out
}

type paletteEntry struct {
	Name   string   `yaml:"name"`
	Colors []string `yaml:"colors"`
}

type configFile struct {
	BGPalettes  []paletteEntry `yaml:"bg_palettes"`
	OBJPalettes []paletteEntry `yaml:"obj_palettes"`
	TileGroups  []tileGroup    `yaml:"tile_groups"`
}

// Config is the fully parsed configuration file.
type Config struct {
	Palettes Set
	Tiles    *TileMap
}

// LoadConfig reads and validates the YAML configuration. Malformed
// entries fail fast with the offending key in the error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses the YAML configuration from a buffer.
func ParseConfig(data []byte) (*Config, error) {
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	cfg := &Config{}
	var err error
	if cfg.Palettes.BG, err = parseLayer("bg_palettes", file.BGPalettes); err != nil {
		return nil, err
	}
	if cfg.Palettes.OBJ, err = parseLayer("obj_palettes", file.OBJPalettes); err != nil {
		return nil, err
	}
	if cfg.Tiles, err = parseTileGroups(file.TileGroups); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseLayer(section string, entries []paletteEntry) ([]Palette, error) {
	if len(entries) > PaletteCount {
		return nil, fmt.Errorf("%s: %d palettes defined, hardware has %d",
			section, len(entries), PaletteCount)
	}
	palettes := make([]Palette, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "" {
			return nil, fmt.Errorf("%s: palette %d has no name", section, len(palettes))
		}
		if len(entry.Colors) != ColorsPerPalette {
			return nil, fmt.Errorf("%s.%s: palette needs exactly %d colors, got %d",
				section, entry.Name, ColorsPerPalette, len(entry.Colors))
		}
		p := Palette{Name: entry.Name}
		for i, s := range entry.Colors {
			c, err := ParseColor(s)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", section, entry.Name, err)
			}
			p.Colors[i] = c
		}
		palettes = append(palettes, p)
	}
	return palettes, nil
}
