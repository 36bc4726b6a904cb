package analyzer

import (
	"strings"
	"testing"

	"github.com/retroenv/gbcolordx/internal/palette"
	"github.com/retroenv/retrogolib/assert"
)

func TestParseEventsSkipsCorruptLines(t *testing.T) {
	input := `{"frame":2,"sprite":0,"tile":16,"palette":1,"x":40,"y":80}

{"frame":2,"sprite":1,"ti
{"frame":3,"sprite":0,"tile":16,"palette":1,"x":40,"y":80}
`
	events, skipped, err := ParseEvents(strings.NewReader(input))
	assert.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, SpriteEvent{Frame: 2, Tile: 16, Palette: 1, X: 40, Y: 80}, events[0])
}

func repeatEvents(tile, pal, count int) []SpriteEvent {
	events := make([]SpriteEvent, 0, count)
	for range count {
		events = append(events, SpriteEvent{Tile: tile, Palette: pal})
	}
	return events
}

func TestStructuralAccuracyFullMatch(t *testing.T) {
	tiles := palette.NewTileMap()
	tiles.Assign(10, 2)
	tiles.Assign(20, 5)

	// tile 10 carries palette 2 in 9 of 10 writes, tile 20 in all of them
	events := repeatEvents(10, 2, 9)
	events = append(events, SpriteEvent{Tile: 10, Palette: 0})
	events = append(events, repeatEvents(20, 5, 10)...)

	result, ok := StructuralAccuracy(events, tiles)
	assert.True(t, ok)
	assert.Equal(t, 1.0, result.Accuracy)
	assert.Equal(t, 2, result.Scored)
	assert.Equal(t, 2, result.Matched)
	assert.Len(t, result.Mismatches, 0)
}

func TestStructuralAccuracyNoDominance(t *testing.T) {
	tiles := palette.NewTileMap()
	tiles.Assign(10, 2)

	// a 60/40 split stays below the dominance threshold even though the
	// expected palette wins
	events := append(repeatEvents(10, 2, 6), repeatEvents(10, 3, 4)...)

	result, ok := StructuralAccuracy(events, tiles)
	assert.True(t, ok)
	assert.Equal(t, 0.0, result.Accuracy)
	assert.Len(t, result.Mismatches, 1)
	assert.Equal(t, byte(10), result.Mismatches[0].Tile)
	assert.Equal(t, byte(2), result.Mismatches[0].Dominant)
	assert.Equal(t, 0.6, result.Mismatches[0].Coverage)
}

func TestStructuralAccuracyWrongPalette(t *testing.T) {
	tiles := palette.NewTileMap()
	tiles.Assign(10, 2)
	tiles.Assign(20, 5)

	events := append(repeatEvents(10, 2, 10), repeatEvents(20, 0, 10)...)

	result, ok := StructuralAccuracy(events, tiles)
	assert.True(t, ok)
	assert.Equal(t, 0.5, result.Accuracy)
	assert.Len(t, result.Mismatches, 1)
	assert.Equal(t, byte(20), result.Mismatches[0].Tile)
	assert.Equal(t, byte(5), result.Mismatches[0].Expected)
	assert.Equal(t, byte(0), result.Mismatches[0].Dominant)
}

func TestStructuralAccuracyIgnoresUnexpectedTiles(t *testing.T) {
	tiles := palette.NewTileMap()
	tiles.Assign(10, 2)

	// tile 99 has no expectation and must not be scored
	events := append(repeatEvents(10, 2, 5), repeatEvents(99, 7, 5)...)

	result, ok := StructuralAccuracy(events, tiles)
	assert.True(t, ok)
	assert.Equal(t, 1, result.Scored)
	assert.Equal(t, 1.0, result.Accuracy)
}

func TestStructuralAccuracyNoObservations(t *testing.T) {
	tiles := palette.NewTileMap()
	tiles.Assign(10, 2)

	_, ok := StructuralAccuracy(repeatEvents(99, 0, 5), tiles)
	assert.False(t, ok)

	_, ok = StructuralAccuracy(nil, tiles)
	assert.False(t, ok)
}
