package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	lua "github.com/yuin/gopher-lua"
)

// luaHost runs a generated script against stubbed emulator bindings and
// records what the script asked the emulator to do.
type luaHost struct {
	state *lua.LState

	oam         [160]byte
	frameFn     *lua.LFunction
	screenshots []string
	messages    []string
	stopped     bool
}

func newLuaHost(t *testing.T) *luaHost {
	t.Helper()

	host := &luaHost{
		state: lua.NewState(),
	}
	t.Cleanup(host.state.Close)

	emu := host.state.NewTable()
	emu.RawSetString("read8", host.state.NewFunction(func(l *lua.LState) int {
		addr := l.CheckInt(2)
		l.Push(lua.LNumber(host.oam[addr-0xfe00]))
		return 1
	}))
	emu.RawSetString("screenshot", host.state.NewFunction(func(l *lua.LState) int {
		host.screenshots = append(host.screenshots, l.CheckString(2))
		return 0
	}))
	emu.RawSetString("stop", host.state.NewFunction(func(l *lua.LState) int {
		host.stopped = true
		return 0
	}))
	host.state.SetGlobal("emu", emu)

	callbacks := host.state.NewTable()
	callbacks.RawSetString("add", host.state.NewFunction(func(l *lua.LState) int {
		assert.Equal(t, "frame", l.CheckString(2))
		host.frameFn = l.CheckFunction(3)
		return 0
	}))
	host.state.SetGlobal("callbacks", callbacks)

	console := host.state.NewTable()
	console.RawSetString("log", host.state.NewFunction(func(l *lua.LState) int {
		host.messages = append(host.messages, l.CheckString(2))
		return 0
	}))
	host.state.SetGlobal("console", console)

	return host
}

func (h *luaHost) load(t *testing.T, script string) {
	t.Helper()
	assert.NoError(t, h.state.DoString(script))
	assert.NotNil(t, h.frameFn, "script did not register a frame callback")
}

func (h *luaHost) runFrames(t *testing.T, count int) {
	t.Helper()
	for range count {
		if h.stopped {
			return
		}
		err := h.state.CallByParam(lua.P{
			Fn:      h.frameFn,
			NRet:    0,
			Protect: true,
		})
		assert.NoError(t, err)
	}
}

func (h *luaHost) setSprite(index int, y, x, tile, attr byte) {
	copy(h.oam[index*4:], []byte{y, x, tile, attr})
}

func TestGeneratedScriptCapturesFrames(t *testing.T) {
	dir := t.TempDir()
	script, err := GenerateScript(dir, CaptureSpec{
		StartFrame:         2,
		ScreenshotInterval: 2,
		MaxFrames:          6,
	})
	assert.NoError(t, err)

	host := newLuaHost(t)
	host.setSprite(0, 80, 40, 0x25, 0x02)
	host.setSprite(1, 0, 0, 0x00, 0x00) // hidden, must not be logged
	host.load(t, script)

	host.runFrames(t, 10)

	assert.True(t, host.stopped, "script did not stop the emulator")
	// frames 2, 4 and 6 are capture frames
	assert.Len(t, host.screenshots, 3)
	assert.Equal(t, filepath.Join(dir, "frame_00001.png"), host.screenshots[0])
	assert.Len(t, host.messages, 1)
	assert.True(t, strings.Contains(host.messages[0], "3 screenshots"))

	data, err := os.ReadFile(filepath.Join(dir, eventLogName))
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, `{"frame":2,"sprite":0,"tile":37,"palette":2,"x":40,"y":80}`, lines[0])
	assert.Equal(t, `{"frame":4,"sprite":0,"tile":37,"palette":2,"x":40,"y":80}`, lines[1])
}

func TestGeneratedScriptExtractsPaletteBits(t *testing.T) {
	dir := t.TempDir()
	script, err := GenerateScript(dir, CaptureSpec{
		StartFrame:         1,
		ScreenshotInterval: 1,
		MaxFrames:          1,
	})
	assert.NoError(t, err)

	host := newLuaHost(t)
	// attribute byte carries flip and priority bits above the palette
	host.setSprite(0, 16, 8, 0x01, 0xe5)
	host.load(t, script)
	host.runFrames(t, 1)

	data, err := os.ReadFile(filepath.Join(dir, eventLogName))
	assert.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"palette":5`))
}

func TestGenerateScriptRejectsInvalidSpec(t *testing.T) {
	_, err := GenerateScript(t.TempDir(), CaptureSpec{})
	assert.Error(t, err)
}

func TestNewRunnerMissingEmulator(t *testing.T) {
	logger := log.NewTestLogger(t)
	_, err := NewRunner(logger, Config{
		Emulator: "no-such-emulator-binary",
	})

	var unavailable HarnessUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "no-such-emulator-binary", unavailable.Binary)
}

func TestRunnerRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell stub emulator")
	}

	dir := t.TempDir()
	stub := filepath.Join(dir, "emulator.sh")
	assert.NoError(t, os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0755))

	logger := log.NewTestLogger(t)
	runner, err := NewRunner(logger, Config{
		Emulator:      stub,
		ArtifactsRoot: filepath.Join(dir, "artifacts"),
		Timeout:       5 * time.Second,
	})
	assert.NoError(t, err)

	artifacts, err := runner.Run(context.Background(), "game.gbc", "base")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(artifacts.Dir), "base-"))
	assert.Len(t, artifacts.Screenshots, 0)
	assert.Equal(t, "", artifacts.EventLog)

	// the automation script is written into the run directory
	_, err = os.Stat(filepath.Join(artifacts.Dir, "automation.lua"))
	assert.NoError(t, err)
}

func TestRunnerRunTimeoutIsNormalTermination(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell stub emulator")
	}

	dir := t.TempDir()
	stub := filepath.Join(dir, "emulator.sh")
	assert.NoError(t, os.WriteFile(stub, []byte("#!/bin/sh\nsleep 10\n"), 0755))

	logger := log.NewTestLogger(t)
	runner, err := NewRunner(logger, Config{
		Emulator:      stub,
		ArtifactsRoot: filepath.Join(dir, "artifacts"),
		Timeout:       100 * time.Millisecond,
	})
	assert.NoError(t, err)

	start := time.Now()
	_, err = runner.Run(context.Background(), "game.gbc", "timeout")
	assert.NoError(t, err)
	assert.True(t, time.Since(start) < 5*time.Second)
}
