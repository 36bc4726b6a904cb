// Package pipeline drives patch variants through build, emulator run and
// analysis until one verifies.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/retroenv/gbcolordx/internal/analyzer"
	"github.com/retroenv/gbcolordx/internal/cartridge"
	"github.com/retroenv/gbcolordx/internal/harness"
	"github.com/retroenv/gbcolordx/internal/palette"
	"github.com/retroenv/gbcolordx/internal/patch"
	"github.com/retroenv/retrogolib/log"
)

// State tracks a variant through the verification loop.
type State int

const (
	StatePending State = iota
	StateBuilt
	StateTested
	StateSuccess
	StateFailure
	StateInconclusive
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateTested:
		return "tested"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	case StateInconclusive:
		return "inconclusive"
	default:
		return "pending"
	}
}

// Config sets up the verification pipeline.
type Config struct {
	// OutputDir receives the patched ROM images, one per variant.
	OutputDir string
	// BaseName names the output files, usually the input ROM name
	// without extension.
	BaseName string
	// Verify runs each built image in the emulator harness. Without it
	// the first successful build wins.
	Verify bool
	// WriteIPS emits an IPS patch next to each patched image.
	WriteIPS bool

	Harness  harness.Config
	Analysis analyzer.Config
}

// VariantResult is the outcome of one variant attempt.
type VariantResult struct {
	Variant patch.Variant
	State   State

	Info       *patch.Info
	OutputFile string
	Report     analyzer.Report
	// Err is the first error the variant ran into.
	Err error
}

// score ranks tested variants by their best metric.
func (r VariantResult) score() float64 {
	s := r.Report.Structural.Accuracy
	if r.Report.VisualScore > s {
		s = r.Report.VisualScore
	}
	return s
}

// Summary reports all attempted variants, best first.
type Summary struct {
	Results []VariantResult
	// Winner is set when a variant built successfully and, with
	// verification enabled, classified as a success.
	Winner *VariantResult
}

// Pipeline orchestrates the patch and verify workflow.
type Pipeline struct {
	logger  *log.Logger
	builder *patch.Builder
	config  Config
}

// New creates a pipeline for a palette configuration.
func New(logger *log.Logger, paletteConfig *palette.Config, config Config) *Pipeline {
	if config.BaseName == "" {
		config.BaseName = "patched"
	}
	config.Analysis.Tiles = paletteConfig.Tiles

	return &Pipeline{
		logger:  logger,
		builder: patch.NewBuilder(logger, paletteConfig),
		config:  config,
	}
}

// Execute tries the variants in order and stops at the first success.
// Variant failures are collected, not propagated, so a later variant can
// still win.
func (p *Pipeline) Execute(ctx context.Context, source *cartridge.Image, variants []patch.Variant) (Summary, error) {
	if len(variants) == 0 {
		return Summary{}, errors.New("no patch variants to try")
	}
	if p.config.OutputDir != "" {
		if err := os.MkdirAll(p.config.OutputDir, 0777); err != nil {
			return Summary{}, fmt.Errorf("creating output directory: %w", err)
		}
	}

	var summary Summary
	for _, variant := range variants {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result := p.runVariant(ctx, source, variant)
		summary.Results = append(summary.Results, result)

		if result.State == StateSuccess || (!p.config.Verify && result.State == StateBuilt) {
			break
		}
	}

	rank(summary.Results)
	if best := &summary.Results[0]; best.State == StateSuccess ||
		(!p.config.Verify && best.State == StateBuilt) {
		summary.Winner = best
	}

	p.printSummary(summary)
	return summary, nil
}

func (p *Pipeline) runVariant(ctx context.Context, source *cartridge.Image, variant patch.Variant) VariantResult {
	result := VariantResult{
		Variant: variant,
		State:   StatePending,
	}
	p.logger.Info("Trying patch variant", log.String("variant", variant.Name))

	patched, info, err := p.builder.Build(source, variant)
	if err != nil {
		result.State = StateFailure
		result.Err = err
		return result
	}
	result.Info = info

	result.OutputFile = filepath.Join(p.config.OutputDir,
		fmt.Sprintf("%s-%s.gbc", p.config.BaseName, variant.Name))
	if err := patched.Save(result.OutputFile); err != nil {
		result.State = StateFailure
		result.Err = err
		return result
	}
	result.State = StateBuilt

	if p.config.WriteIPS {
		if err := p.writeIPS(source, patched, result.OutputFile); err != nil {
			result.State = StateFailure
			result.Err = err
			return result
		}
	}

	if !p.config.Verify {
		return result
	}
	return p.verify(ctx, result)
}

// verify runs the built image in the emulator and scores the captures.
// Harness problems degrade the variant to inconclusive so the remaining
// variants still get their turn.
func (p *Pipeline) verify(ctx context.Context, result VariantResult) VariantResult {
	runner, err := harness.NewRunner(p.logger, p.config.Harness)
	if err != nil {
		p.logger.Warn("Emulator harness unavailable", log.Err(err))
		result.State = StateInconclusive
		result.Err = err
		return result
	}

	artifacts, err := runner.Run(ctx, result.OutputFile, result.Variant.Name)
	if err != nil {
		p.logger.Warn("Emulator run failed", log.Err(err))
		result.State = StateInconclusive
		result.Err = err
		return result
	}
	result.State = StateTested

	report, err := analyzer.New(p.logger, p.config.Analysis).Analyze(artifacts)
	if err != nil {
		result.State = StateFailure
		result.Err = err
		return result
	}
	result.Report = report

	switch report.Classification {
	case analyzer.Success:
		result.State = StateSuccess
	case analyzer.Failure:
		result.State = StateFailure
	default:
		result.State = StateInconclusive
	}
	return result
}

func (p *Pipeline) writeIPS(source, patched *cartridge.Image, outputFile string) error {
	data, err := patch.BuildIPS(source, patched)
	if err != nil {
		return fmt.Errorf("building IPS patch: %w", err)
	}

	name := outputFile[:len(outputFile)-len(filepath.Ext(outputFile))] + ".ips"
	if err := os.WriteFile(name, data, 0666); err != nil {
		return fmt.Errorf("writing IPS patch: %w", err)
	}
	return nil
}

// rank orders results best first: successes, then by score, inconclusive
// attempts last.
func rank(results []VariantResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := stateRank(results[i].State), stateRank(results[j].State)
		if a != b {
			return a > b
		}
		return results[i].score() > results[j].score()
	})
}

func stateRank(s State) int {
	switch s {
	case StateSuccess:
		return 3
	case StateBuilt:
		return 2
	case StateFailure, StateTested:
		return 1
	default:
		return 0
	}
}

func (p *Pipeline) printSummary(summary Summary) {
	for _, result := range summary.Results {
		switch {
		case result.Err != nil:
			p.logger.Info("Variant result",
				log.String("variant", result.Variant.Name),
				log.Stringer("state", result.State),
				log.Err(result.Err),
			)

		case result.State == StateSuccess || result.State == StateFailure:
			p.logger.Info("Variant result",
				log.String("variant", result.Variant.Name),
				log.Stringer("state", result.State),
				log.String("structural", fmt.Sprintf("%.2f", result.Report.Structural.Accuracy)),
				log.String("visual", fmt.Sprintf("%.2f", result.Report.VisualScore)),
			)

		default:
			p.logger.Info("Variant result",
				log.String("variant", result.Variant.Name),
				log.Stringer("state", result.State),
			)
		}
	}
}
