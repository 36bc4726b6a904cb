// Package fileprocessor handles file loading and processing operations
package fileprocessor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/retroenv/gbcolordx/internal/cartridge"
	"github.com/retroenv/gbcolordx/internal/config"
	"github.com/retroenv/gbcolordx/internal/options"
	"github.com/retroenv/gbcolordx/internal/palette"
	"github.com/retroenv/gbcolordx/internal/patch"
	"github.com/retroenv/gbcolordx/internal/pipeline"
	"github.com/retroenv/retrogolib/log"
)

// ErrNoVerifiedVariant is returned when every patch variant was tried
// without a successful outcome.
var ErrNoVerifiedVariant = errors.New("no patch variant succeeded")

// ProcessFile handles the complete workflow for one ROM file.
func ProcessFile(ctx context.Context, logger *log.Logger, opts options.Program) error {
	img, err := cartridge.Load(opts.Input)
	if err != nil {
		return fmt.Errorf("loading ROM: %w", err)
	}

	if opts.Inspect {
		inspect(logger, opts.Input, img)
		return nil
	}

	paletteConfig, err := palette.LoadConfig(opts.Config)
	if err != nil {
		return fmt.Errorf("loading palette configuration: %w", err)
	}

	pipelineConfig, err := config.CreatePipelineConfig(opts)
	if err != nil {
		return err
	}

	printInfo(logger, opts, img, paletteConfig)

	p := pipeline.New(logger, paletteConfig, pipelineConfig)
	summary, err := p.Execute(ctx, img, patch.DefaultVariants())
	if err != nil {
		return err
	}
	if summary.Winner == nil {
		return ErrNoVerifiedVariant
	}

	logger.Info("Patched image written",
		log.String("file", summary.Winner.OutputFile),
		log.String("variant", summary.Winner.Variant.Name),
	)
	return nil
}

// GetFilesToProcess returns list of files to process based on options
func GetFilesToProcess(opts *options.Program) ([]string, error) {
	if opts.Batch != "" {
		matches, err := filepath.Glob(opts.Batch)
		if err != nil {
			return nil, fmt.Errorf("globbing batch pattern: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match pattern %s", opts.Batch)
		}
		return matches, nil
	}
	return []string{opts.Input}, nil
}

// inspect prints the ROM header details and the largest free regions,
// useful for choosing a patch bank and region by hand.
func inspect(logger *log.Logger, name string, img *cartridge.Image) {
	header := img.Header()

	logger.Info("ROM",
		log.String("file", name),
		log.Int("size", img.Size()),
		log.Int("banks", img.Banks()),
		log.String("crc32", fmt.Sprintf("%08X", img.CRC32())),
	)
	logger.Info("Header",
		log.String("title", header.Title),
		log.String("type", header.TypeName()),
		log.Int("romSize", header.DeclaredROMSize()),
		log.Int("ramSize", header.DeclaredRAMSize()),
		log.String("cgb", header.CGBSupport()),
	)

	headerOK := header.HeaderChecksum == img.HeaderChecksum()
	globalOK := header.GlobalChecksum == img.GlobalChecksum()
	logger.Info("Checksums",
		log.String("header", checksumStatus(headerOK)),
		log.String("global", checksumStatus(globalOK)),
	)

	for i, region := range img.FindFreeSpace(0x80) {
		if i >= 8 {
			break
		}
		addr, err := img.AddressOf(region.Offset)
		if err != nil {
			continue
		}
		logger.Info("Free space",
			log.String("address", addr.String()),
			log.Int("length", region.Length),
		)
	}
}

func checksumStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "MISMATCH"
}

func printInfo(logger *log.Logger, opts options.Program, img *cartridge.Image, paletteConfig *palette.Config) {
	if opts.Quiet {
		return
	}

	header := img.Header()
	logger.Info("Processing ROM",
		log.String("file", opts.Input),
		log.String("title", header.Title),
		log.String("type", header.TypeName()),
		log.Int("banks", img.Banks()),
	)
	logger.Info("Palette configuration",
		log.Int("bgPalettes", len(paletteConfig.Palettes.BG)),
		log.Int("objPalettes", len(paletteConfig.Palettes.OBJ)),
		log.Int("assignedTiles", paletteConfig.Tiles.Assigned()),
	)
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	versionString := version
	if commit != "" {
		if len(commit) > 7 {
			commit = commit[:7]
		}
		versionString += fmt.Sprintf(" (%s)", commit)
	}

	logger.Info("gbcolordx", log.String("version", versionString))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}
