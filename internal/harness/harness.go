// Package harness drives an external emulator to exercise a patched
// cartridge and collect verification artifacts.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/retroenv/retrogolib/log"
)

// HarnessUnavailableError indicates that the emulator binary could not
// be found on the system.
type HarnessUnavailableError struct {
	Binary string
}

func (e HarnessUnavailableError) Error() string {
	return fmt.Sprintf("%s is not installed", e.Binary)
}

// Config sets up the emulator harness.
type Config struct {
	// Emulator is the binary name or path, looked up in PATH if relative.
	Emulator string
	// ArtifactsRoot is the directory run directories are created under.
	ArtifactsRoot string
	// Timeout bounds the emulator process as a safety net behind the
	// script's own frame budget.
	Timeout time.Duration
	// ExtraArgs are passed to the emulator before the ROM path.
	ExtraArgs []string

	Capture CaptureSpec
}

// RunArtifacts lists the files a harness run produced.
type RunArtifacts struct {
	// Dir is the run directory all artifacts live under.
	Dir string
	// EventLog is the JSON lines file of OAM sprite records. It may not
	// exist if the emulator exited before the first capture frame.
	EventLog string
	// Screenshots are the captured frames in chronological order.
	Screenshots []string
}

// Runner launches emulator runs and namespaces their artifacts.
type Runner struct {
	logger *log.Logger
	config Config

	emulatorPath string
}

// NewRunner verifies the emulator is available and returns a runner.
func NewRunner(logger *log.Logger, config Config) (*Runner, error) {
	if config.Emulator == "" {
		config.Emulator = "mgba-qt"
	}
	if config.ArtifactsRoot == "" {
		config.ArtifactsRoot = "artifacts"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Capture == (CaptureSpec{}) {
		config.Capture = DefaultCaptureSpec()
	}

	path, err := exec.LookPath(config.Emulator)
	if err != nil {
		return nil, HarnessUnavailableError{Binary: config.Emulator}
	}

	return &Runner{
		logger:       logger,
		config:       config,
		emulatorPath: path,
	}, nil
}

// Run executes the emulator on a ROM with a generated automation script
// and returns the artifacts the run produced. The run name namespaces
// the artifact directory so repeated runs do not clobber each other.
func (r *Runner) Run(ctx context.Context, romFile, runName string) (RunArtifacts, error) {
	dir, err := r.createRunDir(runName)
	if err != nil {
		return RunArtifacts{}, err
	}

	script, err := GenerateScript(dir, r.config.Capture)
	if err != nil {
		return RunArtifacts{}, err
	}
	scriptFile := filepath.Join(dir, "automation.lua")
	if err := os.WriteFile(scriptFile, []byte(script), 0666); err != nil {
		return RunArtifacts{}, fmt.Errorf("writing automation script: %w", err)
	}

	if err := r.runEmulator(ctx, romFile, scriptFile); err != nil {
		return RunArtifacts{}, err
	}
	return collectArtifacts(dir)
}

func (r *Runner) createRunDir(runName string) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	dir := filepath.Join(r.config.ArtifactsRoot, fmt.Sprintf("%s-%s", runName, stamp))
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	return dir, nil
}

func (r *Runner) runEmulator(ctx context.Context, romFile, scriptFile string) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	args := append([]string{}, r.config.ExtraArgs...)
	args = append(args, "--script", scriptFile, romFile)
	cmd := exec.CommandContext(ctx, r.emulatorPath, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	r.logger.Debug("Starting emulator",
		log.String("binary", r.emulatorPath),
		log.String("rom", romFile),
		log.String("script", scriptFile),
	)

	err := cmd.Run()
	switch {
	case err == nil:
		return nil

	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		// The script stops the emulator itself; hitting the process
		// timeout means the GUI did not exit cleanly, the captured
		// artifacts are still usable.
		r.logger.Debug("Emulator terminated by timeout")
		return nil

	default:
		return fmt.Errorf("running emulator: %w", err)
	}
}

func collectArtifacts(dir string) (RunArtifacts, error) {
	screenshots, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return RunArtifacts{}, fmt.Errorf("listing screenshots: %w", err)
	}
	sort.Strings(screenshots)

	artifacts := RunArtifacts{
		Dir:         dir,
		Screenshots: screenshots,
	}
	eventLog := filepath.Join(dir, eventLogName)
	if _, err := os.Stat(eventLog); err == nil {
		artifacts.EventLog = eventLog
	}
	return artifacts, nil
}
