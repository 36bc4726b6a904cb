// Package config handles application configuration and setup
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/retroenv/gbcolordx/internal/analyzer"
	"github.com/retroenv/gbcolordx/internal/harness"
	"github.com/retroenv/gbcolordx/internal/options"
	"github.com/retroenv/gbcolordx/internal/pipeline"
	"github.com/retroenv/retrogolib/log"
)

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// CreatePipelineConfig maps the program options onto the pipeline setup.
func CreatePipelineConfig(opts options.Program) (pipeline.Config, error) {
	capture := harness.DefaultCaptureSpec()
	if opts.Frames > 0 {
		capture.MaxFrames = opts.Frames
	}

	cfg := pipeline.Config{
		OutputDir: opts.Output,
		BaseName:  BaseName(opts.Input),
		Verify:    opts.Verify,
		WriteIPS:  opts.IPS,
		Harness: harness.Config{
			Emulator:      opts.Emulator,
			ArtifactsRoot: opts.Artifacts,
			Timeout:       opts.Timeout,
			Capture:       capture,
		},
	}

	if opts.Reference != "" {
		img, err := analyzer.LoadImage(opts.Reference)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("loading reference image: %w", err)
		}
		cfg.Analysis.Reference = img
	}
	return cfg, nil
}

// BaseName returns the file name without directory and extension, used
// to name the generated output files.
func BaseName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
