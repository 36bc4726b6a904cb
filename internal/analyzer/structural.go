package analyzer

import (
	"sort"

	"github.com/retroenv/gbcolordx/internal/palette"
)

// dominanceThreshold is the share of a tile's observations its most
// frequent palette must reach before the tile counts as stably colored.
const dominanceThreshold = 0.8

// TileMismatch describes a tile whose observed coloring deviates from
// the expectation model.
type TileMismatch struct {
	Tile     byte
	Expected byte
	// Dominant is the most frequently observed palette for the tile.
	Dominant byte
	// Coverage is the share of observations carrying the dominant palette.
	Coverage float64
}

// StructuralResult scores the OAM write log against the tile map.
type StructuralResult struct {
	// Accuracy is matched tiles over scored tiles.
	Accuracy float64
	// Scored is the number of expected tiles observed at least once.
	Scored  int
	Matched int

	Mismatches []TileMismatch
}

// StructuralAccuracy compares observed sprite palettes to the expected
// tile assignments. Only tiles present in the expectation map and seen
// in the log are scored; the second return value is false when no such
// tile exists and the log supports no conclusion.
func StructuralAccuracy(events []SpriteEvent, tiles *palette.TileMap) (StructuralResult, bool) {
	counts := map[byte]map[byte]int{}
	for _, event := range events {
		if event.Tile < 0 || event.Tile >= palette.TileCount {
			continue
		}
		tile := byte(event.Tile)
		if _, ok := tiles.Expected(tile); !ok {
			continue
		}
		if counts[tile] == nil {
			counts[tile] = map[byte]int{}
		}
		counts[tile][byte(event.Palette)]++
	}

	if len(counts) == 0 {
		return StructuralResult{}, false
	}

	result := StructuralResult{
		Scored: len(counts),
	}
	for tile, palettes := range counts {
		dominant, coverage := dominantPalette(palettes)
		expected, _ := tiles.Expected(tile)

		if dominant == expected && coverage >= dominanceThreshold {
			result.Matched++
			continue
		}
		result.Mismatches = append(result.Mismatches, TileMismatch{
			Tile:     tile,
			Expected: expected,
			Dominant: dominant,
			Coverage: coverage,
		})
	}

	sort.Slice(result.Mismatches, func(i, j int) bool {
		return result.Mismatches[i].Tile < result.Mismatches[j].Tile
	})
	result.Accuracy = float64(result.Matched) / float64(result.Scored)
	return result, true
}

func dominantPalette(palettes map[byte]int) (byte, float64) {
	var (
		dominant byte
		best     int
		total    int
	)
	for pal, count := range palettes {
		total += count
		if count > best || (count == best && pal < dominant) {
			dominant = pal
			best = count
		}
	}
	return dominant, float64(best) / float64(total)
}
