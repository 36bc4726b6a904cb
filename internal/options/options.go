// Package options contains the program options.
package options

import "time"

// Parameters contains file path options.
type Parameters struct {
	Input     string // input ROM file
	Config    string // palette configuration file
	Output    string // output directory for patched images
	Reference string // reference screenshot for visual comparison
	Batch     string // pattern for batch processing
}

// Flags contains behavior options.
type Flags struct {
	Inspect bool // print ROM header details and free space, no patching
	Verify  bool // run patched images in the emulator harness
	IPS     bool // write IPS patches next to the patched images

	Debug bool
	Quiet bool
}

// Harness contains emulator harness options.
type Harness struct {
	Emulator  string        // emulator binary name or path
	Artifacts string        // directory for run artifacts
	Frames    int           // frame budget per emulator run
	Timeout   time.Duration // process timeout safety net
}

// Program options of the patcher.
type Program struct {
	Parameters
	Flags
	Harness
}
