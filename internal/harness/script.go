package harness

import (
	"fmt"
	"strings"
	"text/template"

	lua "github.com/yuin/gopher-lua"
)

// CaptureSpec controls what the automation script records.
type CaptureSpec struct {
	// StartFrame is the first frame eligible for capture, skipping the
	// boot logo and fade-in.
	StartFrame int
	// ScreenshotInterval is the number of frames between captures.
	ScreenshotInterval int
	// MaxFrames stops the emulator from inside the script; the process
	// timeout is only a safety net behind it.
	MaxFrames int
}

// DefaultCaptureSpec captures every half second for twenty seconds.
func DefaultCaptureSpec() CaptureSpec {
	return CaptureSpec{
		StartFrame:         60,
		ScreenshotInterval: 30,
		MaxFrames:          1200,
	}
}

// The script drives the emulator's embedded Lua: a frame callback
// screenshots every N frames and appends one JSON line per visible OAM
// sprite to the event log. The palette is extracted with a modulo, bit
// operators only exist in newer Lua dialects than some hosts ship.
var scriptTemplate = template.Must(template.New("automation").Parse(`-- generated automation script
local artifactDir = {{printf "%q" .Dir}}
local startFrame = {{.Spec.StartFrame}}
local screenshotInterval = {{.Spec.ScreenshotInterval}}
local maxFrames = {{.Spec.MaxFrames}}

local frameCount = 0
local screenshotCount = 0
local eventLog = io.open(artifactDir .. "/{{.EventLogName}}", "a")

local function logSprites()
    if not eventLog then
        return
    end
    for i = 0, 39 do
        local base = 0xFE00 + i * 4
        local y = emu:read8(base)
        local x = emu:read8(base + 1)
        local tile = emu:read8(base + 2)
        local attr = emu:read8(base + 3)
        if y > 0 and y < 160 and x > 0 and x < 168 then
            eventLog:write(string.format(
                '{"frame":%d,"sprite":%d,"tile":%d,"palette":%d,"x":%d,"y":%d}\n',
                frameCount, i, tile, attr % 8, x, y))
        end
    end
    eventLog:flush()
end

local function takeScreenshot()
    screenshotCount = screenshotCount + 1
    local path = string.format("%s/frame_%05d.png", artifactDir, screenshotCount)
    emu:screenshot(path)
end

callbacks:add("frame", function()
    frameCount = frameCount + 1
    if frameCount >= startFrame and (frameCount - startFrame) % screenshotInterval == 0 then
        takeScreenshot()
        logSprites()
    end
    if frameCount >= maxFrames then
        console:log(string.format("capture complete: %d screenshots", screenshotCount))
        if eventLog then
            eventLog:close()
        end
        emu:stop()
    end
end)
`))

type scriptData struct {
	Dir          string
	Spec         CaptureSpec
	EventLogName string
}

// eventLogName is the log file the script appends OAM records to.
const eventLogName = "events.jsonl"

// GenerateScript renders the automation script for an artifact directory.
func GenerateScript(artifactDir string, spec CaptureSpec) (string, error) {
	if spec.ScreenshotInterval <= 0 || spec.MaxFrames <= 0 {
		return "", fmt.Errorf("capture spec needs positive interval and frame budget")
	}

	var buf strings.Builder
	if err := scriptTemplate.Execute(&buf, scriptData{
		Dir:          artifactDir,
		Spec:         spec,
		EventLogName: eventLogName,
	}); err != nil {
		return "", fmt.Errorf("rendering automation script: %w", err)
	}
	script := buf.String()

	if err := validateScript(script); err != nil {
		return "", err
	}
	return script, nil
}

// validateScript compiles the generated script before it is handed to
// the emulator, so interpolation mistakes surface as build errors rather
// than a silently idle emulator run.
func validateScript(script string) error {
	state := lua.NewState()
	defer state.Close()

	if _, err := state.LoadString(script); err != nil {
		return fmt.Errorf("generated script does not compile: %w", err)
	}
	return nil
}
