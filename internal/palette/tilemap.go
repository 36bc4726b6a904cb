package palette

import (
	"fmt"
	"strconv"
	"strings"
)

// Unassigned is the sentinel for tiles the colorizer leaves untouched.
const Unassigned = 0xFF

// TileCount is the number of tile identifiers.
const TileCount = 256

// TileMap maps tile identifiers to palette identifiers. It is immutable
// during a patch run.
type TileMap struct {
	table [TileCount]byte
}

// NewTileMap returns a map with every tile unassigned.
func NewTileMap() *TileMap {
	m := &TileMap{}
	for i := range m.table {
		m.table[i] = Unassigned
	}
	return m
}

// Assign sets the palette for a tile.
func (m *TileMap) Assign(tile, palette byte) {
	m.table[tile] = palette
}

// Expected returns the palette assigned to a tile.
func (m *TileMap) Expected(tile byte) (palette byte, ok bool) {
	p := m.table[tile]
	return p, p != Unassigned
}

// Assigned returns the number of tiles with an assigned palette.
func (m *TileMap) Assigned() int {
	var n int
	for _, p := range m.table {
		if p != Unassigned {
			n++
		}
	}
	return n
}

// Table returns the 256-byte lookup table the injected code indexes,
// unassigned tiles as the 0xFF sentinel.
func (m *TileMap) Table() []byte {
	out := make([]byte, TileCount)
	copy(out, m.table[:])
	return out
}

type tileGroup struct {
	Name    string   `yaml:"name"`
	Palette int      `yaml:"palette"`
	Tiles   []string `yaml:"tiles"`
}

func parseTileGroups(groups []tileGroup) (*TileMap, error) {
	m := NewTileMap()
	for _, group := range groups {
		if group.Name == "" {
			return nil, fmt.Errorf("tile_groups: group has no name")
		}
		if group.Palette < 0 || group.Palette >= PaletteCount {
			return nil, fmt.Errorf("tile_groups.%s: palette %d out of range 0-%d",
				group.Name, group.Palette, PaletteCount-1)
		}
		if len(group.Tiles) == 0 {
			return nil, fmt.Errorf("tile_groups.%s: no tiles listed", group.Name)
		}
		for _, spec := range group.Tiles {
			low, high, err := parseTileRange(spec)
			if err != nil {
				return nil, fmt.Errorf("tile_groups.%s: %w", group.Name, err)
			}
			for tile := low; tile <= high; tile++ {
				m.table[tile] = byte(group.Palette)
			}
		}
	}
	return m, nil
}

// parseTileRange parses a tile id ("0x20", "47") or inclusive range
// ("0x20-0x2F").
func parseTileRange(spec string) (low, high int, err error) {
	parts := strings.SplitN(strings.TrimSpace(spec), "-", 2)
	low, err = parseTileID(parts[0])
	if err != nil {
		return 0, 0, err
	}
	high = low
	if len(parts) == 2 {
		high, err = parseTileID(parts[1])
		if err != nil {
			return 0, 0, err
		}
	}
	if high < low {
		return 0, 0, fmt.Errorf("invalid tile range %q", spec)
	}
	return low, high, nil
}

func parseTileID(s string) (int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseInt(s, base, 32)
	if err != nil || v < 0 || v >= TileCount {
		return 0, fmt.Errorf("invalid tile id %q", s)
	}
	return int(v), nil
}
