// Package analyzer scores harness captures against the expected tile to
// palette model and classifies the outcome of a verification run.
package analyzer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// SpriteEvent is one OAM observation recorded by the automation script.
type SpriteEvent struct {
	Frame   int `json:"frame"`
	Sprite  int `json:"sprite"`
	Tile    int `json:"tile"`
	Palette int `json:"palette"`
	X       int `json:"x"`
	Y       int `json:"y"`
}

// ParseEvents reads sprite events from a JSON lines stream. Lines that
// do not parse are skipped, the emulator can be killed mid-write and a
// truncated last line must not void the rest of the capture.
func ParseEvents(r io.Reader) ([]SpriteEvent, int, error) {
	var (
		events  []SpriteEvent
		skipped int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event SpriteEvent
		if err := json.Unmarshal(line, &event); err != nil {
			skipped++
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading event stream: %w", err)
	}
	return events, skipped, nil
}

// ReadEventLog parses the sprite event log written by a harness run.
func ReadEventLog(name string) ([]SpriteEvent, int, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, 0, fmt.Errorf("opening event log: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	return ParseEvents(file)
}
