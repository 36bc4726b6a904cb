// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/retroenv/gbcolordx/internal/options"
)

// ParseFlags parses command line flags and returns the program options.
func ParseFlags() (options.Program, error) {
	return parseFlags(os.Args[0], os.Args[1:])
}

func parseFlags(name string, args []string) (options.Program, error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(args)
	positional := flags.Args()
	if err != nil || (len(positional) == 0 && opts.Input == "" && opts.Batch == "") {
		return opts, &UsageError{flags: flags}
	}

	if err := validateArgs(positional); err != nil {
		return opts, err
	}
	if len(positional) > 0 {
		opts.Input = positional[0]
	}

	if !opts.Inspect && opts.Config == "" {
		return opts, &UsageError{
			flags: flags,
			msg:   "a palette configuration file is required for patching, pass it with -c",
		}
	}
	return opts, nil
}

// UsageError represents an error that should show usage information.
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: gbcolordx [options] <ROM file>\n\n")
	e.flags.PrintDefaults()
	fmt.Println()
}

// validateArgs checks if arguments are in correct order.
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after the ROM file, please pass the ROM file as last argument", arg),
			}
		}
	}
	return nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the input ROM file")
	flags.StringVar(&opts.Config, "c", "", "palette configuration file (YAML)")
	flags.StringVar(&opts.Output, "o", "out", "output directory for the patched images")
	flags.StringVar(&opts.Reference, "ref", "", "reference screenshot for visual comparison")
	flags.StringVar(&opts.Batch, "batch", "", "process a batch of ROM files matching the given pattern, for example *.gb")
	flags.BoolVar(&opts.Inspect, "inspect", false, "print ROM header details and free space regions without patching")
	flags.BoolVar(&opts.Verify, "verify", false, "verify each patched image by running it in the emulator")
	flags.BoolVar(&opts.IPS, "ips", false, "write an IPS patch next to each patched image")
	flags.StringVar(&opts.Emulator, "emulator", "mgba-qt", "emulator binary used for verification")
	flags.StringVar(&opts.Artifacts, "artifacts", "artifacts", "directory for verification run artifacts")
	flags.IntVar(&opts.Frames, "frames", 1200, "frame budget per emulator run")
	flags.DurationVar(&opts.Timeout, "timeout", 60*time.Second, "emulator process timeout")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}
