package fileprocessor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/gbcolordx/internal/cartridge"
	"github.com/retroenv/gbcolordx/internal/options"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

const testPaletteConfig = `
bg_palettes:
  - name: Dungeon
    colors: ["7FFF", "03E0", "0280", "0000"]
obj_palettes:
  - name: SaraDragon
    colors: ["0000", "001F", "0010", "0008"]
tile_groups:
  - name: sara_d
    palette: 0
    tiles: ["0x00-0x07"]
`

func writeTestROM(t *testing.T, name string) string {
	t.Helper()

	data := make([]byte, 16*cartridge.BankSize)
	copy(data[0x0134:], "PENTA DRAGON")
	data[0x0147] = 0x01 // MBC1
	data[0x0148] = 0x03
	copy(data[0x0073:], []byte{0xF0, 0x40, 0xE6, 0x7F, 0xE0, 0x40})
	copy(data[0x0824:], []byte{0xF0, 0x00, 0xE6, 0x0F, 0xE0, 0x90, 0xC9})

	img, err := cartridge.New(data)
	assert.NoError(t, err)
	img.RepairChecksums()

	assert.NoError(t, img.Save(name))
	return name
}

func testOptions(t *testing.T) options.Program {
	t.Helper()
	dir := t.TempDir()

	configFile := filepath.Join(dir, "palettes.yaml")
	assert.NoError(t, os.WriteFile(configFile, []byte(testPaletteConfig), 0666))

	return options.Program{
		Parameters: options.Parameters{
			Input:  writeTestROM(t, filepath.Join(dir, "penta.gb")),
			Config: configFile,
			Output: filepath.Join(dir, "out"),
		},
	}
}

func TestProcessFileBuildOnly(t *testing.T) {
	opts := testOptions(t)
	opts.IPS = true

	logger := log.NewTestLogger(t)
	assert.NoError(t, ProcessFile(context.Background(), logger, opts))

	patched := filepath.Join(opts.Output, "penta-input-handler-hook.gbc")
	img, err := cartridge.Load(patched)
	assert.NoError(t, err)
	assert.Equal(t, "CGB-supported", img.Header().CGBSupport())

	_, err = os.Stat(filepath.Join(opts.Output, "penta-input-handler-hook.ips"))
	assert.NoError(t, err)
}

func TestProcessFileVerifyWithoutEmulator(t *testing.T) {
	opts := testOptions(t)
	opts.Verify = true
	opts.Harness = options.Harness{
		Emulator: "no-such-emulator-binary",
	}

	logger := log.NewTestLogger(t)
	err := ProcessFile(context.Background(), logger, opts)
	assert.True(t, errors.Is(err, ErrNoVerifiedVariant))
}

func TestProcessFileInspect(t *testing.T) {
	opts := testOptions(t)
	opts.Inspect = true

	logger := log.NewTestLogger(t)
	assert.NoError(t, ProcessFile(context.Background(), logger, opts))
}

func TestProcessFileMissingConfig(t *testing.T) {
	opts := testOptions(t)
	opts.Config = filepath.Join(t.TempDir(), "missing.yaml")

	logger := log.NewTestLogger(t)
	assert.Error(t, ProcessFile(context.Background(), logger, opts))
}

func TestGetFilesToProcess(t *testing.T) {
	dir := t.TempDir()
	writeTestROM(t, filepath.Join(dir, "a.gb"))
	writeTestROM(t, filepath.Join(dir, "b.gb"))

	opts := &options.Program{}
	opts.Batch = filepath.Join(dir, "*.gb")
	files, err := GetFilesToProcess(opts)
	assert.NoError(t, err)
	assert.Len(t, files, 2)

	opts = &options.Program{}
	opts.Input = "single.gb"
	files, err = GetFilesToProcess(opts)
	assert.NoError(t, err)
	assert.Equal(t, []string{"single.gb"}, files)

	opts = &options.Program{}
	opts.Batch = filepath.Join(dir, "*.nes")
	_, err = GetFilesToProcess(opts)
	assert.Error(t, err)
}
