package analyzer

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retroenv/gbcolordx/internal/harness"
	"github.com/retroenv/gbcolordx/internal/palette"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func writeTestArtifacts(t *testing.T, events []string, screenshots int) harness.RunArtifacts {
	t.Helper()
	dir := t.TempDir()

	artifacts := harness.RunArtifacts{Dir: dir}
	if events != nil {
		name := filepath.Join(dir, "events.jsonl")
		data := strings.Join(events, "\n") + "\n"
		assert.NoError(t, os.WriteFile(name, []byte(data), 0666))
		artifacts.EventLog = name
	}

	for i := range screenshots {
		name := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", i+1))
		file, err := os.Create(name)
		assert.NoError(t, err)
		assert.NoError(t, png.Encode(file, threeSpritesFrame()))
		assert.NoError(t, file.Close())
		artifacts.Screenshots = append(artifacts.Screenshots, name)
	}
	return artifacts
}

func testAnalyzer(t *testing.T, tiles *palette.TileMap) *Analyzer {
	t.Helper()
	return New(log.NewTestLogger(t), Config{Tiles: tiles})
}

func TestAnalyzeSuccessByStructuralScore(t *testing.T) {
	tiles := palette.NewTileMap()
	tiles.Assign(0x10, 2)

	events := make([]string, 0, 10)
	for range 10 {
		events = append(events, `{"frame":2,"sprite":0,"tile":16,"palette":2,"x":40,"y":80}`)
	}
	artifacts := writeTestArtifacts(t, events, 0)

	report, err := testAnalyzer(t, tiles).Analyze(artifacts)
	assert.NoError(t, err)
	assert.Equal(t, Success, report.Classification)
	assert.True(t, report.StructuralScored)
	assert.Equal(t, 1.0, report.Structural.Accuracy)
}

func TestAnalyzeSuccessByVisualScore(t *testing.T) {
	tiles := palette.NewTileMap()
	tiles.Assign(0x10, 2)

	// the write log contradicts the model but the frames look colored
	events := []string{`{"frame":2,"sprite":0,"tile":16,"palette":0,"x":40,"y":80}`}
	artifacts := writeTestArtifacts(t, events, 2)

	report, err := testAnalyzer(t, tiles).Analyze(artifacts)
	assert.NoError(t, err)
	assert.Equal(t, Success, report.Classification)
	assert.Equal(t, 1.0, report.VisualScore)
	assert.Len(t, report.Frames, 2)
}

func TestAnalyzeFailure(t *testing.T) {
	tiles := palette.NewTileMap()
	tiles.Assign(0x10, 2)

	events := []string{`{"frame":2,"sprite":0,"tile":16,"palette":0,"x":40,"y":80}`}
	artifacts := writeTestArtifacts(t, events, 0)

	report, err := testAnalyzer(t, tiles).Analyze(artifacts)
	assert.NoError(t, err)
	assert.Equal(t, Failure, report.Classification)
	assert.Equal(t, 0.0, report.Structural.Accuracy)
}

func TestAnalyzeNoCapturesIsInconclusive(t *testing.T) {
	report, err := testAnalyzer(t, palette.NewTileMap()).Analyze(harness.RunArtifacts{Dir: "empty"})
	assert.NoError(t, err)
	assert.Equal(t, Inconclusive, report.Classification)
}

func TestAnalyzeUnusableCapturesFail(t *testing.T) {
	artifacts := harness.RunArtifacts{
		Dir:         "gone",
		Screenshots: []string{filepath.Join("gone", "frame_00001.png")},
	}
	_, err := testAnalyzer(t, palette.NewTileMap()).Analyze(artifacts)
	assert.Error(t, err)
}

func TestAnalyzeSkipsUnreadableScreenshot(t *testing.T) {
	tiles := palette.NewTileMap()
	tiles.Assign(0x10, 2)

	artifacts := writeTestArtifacts(t, nil, 1)
	broken := filepath.Join(artifacts.Dir, "frame_00009.png")
	assert.NoError(t, os.WriteFile(broken, []byte("not a png"), 0666))
	artifacts.Screenshots = append(artifacts.Screenshots, broken)

	report, err := testAnalyzer(t, tiles).Analyze(artifacts)
	assert.NoError(t, err)
	assert.Len(t, report.Frames, 1)
	assert.Equal(t, Success, report.Classification)
}
