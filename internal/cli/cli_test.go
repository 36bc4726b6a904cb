package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/retroenv/retrogolib/assert"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string

		wantInput  string
		wantVerify bool
		wantFrames int
	}{
		{
			name:       "positional rom file",
			args:       []string{"-c", "palettes.yaml", "game.gb"},
			wantInput:  "game.gb",
			wantFrames: 1200,
		},
		{
			name:       "input flag",
			args:       []string{"-c", "palettes.yaml", "-i", "game.gb"},
			wantInput:  "game.gb",
			wantFrames: 1200,
		},
		{
			name:       "verify with custom frame budget",
			args:       []string{"-c", "palettes.yaml", "-verify", "-frames", "600", "game.gb"},
			wantInput:  "game.gb",
			wantVerify: true,
			wantFrames: 600,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags("gbcolordx", tt.args)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantInput, opts.Input)
			assert.Equal(t, tt.wantVerify, opts.Verify)
			assert.Equal(t, tt.wantFrames, opts.Frames)
			assert.Equal(t, 60*time.Second, opts.Timeout)
		})
	}
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "no arguments",
			args: nil,
		},
		{
			name: "missing palette configuration",
			args: []string{"game.gb"},
		},
		{
			name: "flag after rom file",
			args: []string{"-c", "palettes.yaml", "game.gb", "-verify"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags("gbcolordx", tt.args)

			var usageErr *UsageError
			assert.True(t, errors.As(err, &usageErr))
		})
	}
}

func TestParseFlagsInspectNeedsNoConfig(t *testing.T) {
	opts, err := parseFlags("gbcolordx", []string{"-inspect", "game.gb"})
	assert.NoError(t, err)
	assert.True(t, opts.Inspect)
	assert.Equal(t, "game.gb", opts.Input)
}
