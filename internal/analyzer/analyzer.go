package analyzer

import (
	"fmt"
	"image"

	"github.com/retroenv/gbcolordx/internal/harness"
	"github.com/retroenv/gbcolordx/internal/palette"
	"github.com/retroenv/retrogolib/log"
)

// Classification is the verdict for one verification run.
type Classification int

const (
	Inconclusive Classification = iota
	Failure
	Success
)

func (c Classification) String() string {
	switch c {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "inconclusive"
	}
}

// Thresholds are the scores a run must reach to classify as a success.
type Thresholds struct {
	// Structural is the minimum structural accuracy.
	Structural float64
	// Visual is the minimum share of passing frames.
	Visual float64
}

// DefaultThresholds accepts a run when the write log matches the model
// almost completely or most frames look colored.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Structural: 0.9,
		Visual:     0.6,
	}
}

// Config sets up the analyzer.
type Config struct {
	Tiles      *palette.TileMap
	Thresholds Thresholds
	Visual     VisualConfig

	// Reference enables per-pixel comparison of captured frames.
	Reference image.Image
}

// Report aggregates the scores of one verification run.
type Report struct {
	Classification Classification

	// StructuralScored is false when no expected tile was observed.
	StructuralScored bool
	Structural       StructuralResult
	SkippedEvents    int

	Frames []FrameResult
	// VisualScore is the share of readable frames that passed.
	VisualScore float64
}

// Analyzer scores harness artifacts and classifies runs.
type Analyzer struct {
	logger *log.Logger
	config Config
}

// New creates an analyzer for the given expectation model.
func New(logger *log.Logger, config Config) *Analyzer {
	if config.Thresholds == (Thresholds{}) {
		config.Thresholds = DefaultThresholds()
	}
	if config.Visual == (VisualConfig{}) {
		config.Visual = DefaultVisualConfig()
	}

	return &Analyzer{
		logger: logger,
		config: config,
	}
}

// Analyze scores the artifacts of a harness run. A run without any
// capture classifies as inconclusive. Unreadable captures are skipped,
// an error is only returned when captures exist but none are usable.
func (a *Analyzer) Analyze(artifacts harness.RunArtifacts) (Report, error) {
	var report Report

	if artifacts.EventLog == "" && len(artifacts.Screenshots) == 0 {
		a.logger.Debug("No captures produced", log.String("dir", artifacts.Dir))
		return report, nil
	}

	usable := 0
	if artifacts.EventLog != "" {
		events, skipped, err := ReadEventLog(artifacts.EventLog)
		if err != nil {
			a.logger.Debug("Skipping event log", log.Err(err))
		} else {
			usable++
			report.SkippedEvents = skipped
			report.Structural, report.StructuralScored = StructuralAccuracy(events, a.config.Tiles)
		}
	}

	passed := 0
	for _, name := range artifacts.Screenshots {
		img, err := LoadImage(name)
		if err != nil {
			a.logger.Debug("Skipping screenshot", log.String("file", name), log.Err(err))
			continue
		}
		usable++

		frame := AnalyzeFrame(img, a.config.Reference, a.config.Visual)
		frame.Screenshot = name
		report.Frames = append(report.Frames, frame)
		if frame.Success {
			passed++
		}
	}
	if len(report.Frames) > 0 {
		report.VisualScore = float64(passed) / float64(len(report.Frames))
	}

	if usable == 0 {
		return report, fmt.Errorf("no usable capture in %s", artifacts.Dir)
	}

	report.Classification = a.classify(report)
	a.logger.Debug("Run analyzed",
		log.Stringer("classification", report.Classification),
		log.String("structural", fmt.Sprintf("%.2f", report.Structural.Accuracy)),
		log.String("visual", fmt.Sprintf("%.2f", report.VisualScore)),
	)
	return report, nil
}

func (a *Analyzer) classify(report Report) Classification {
	if report.StructuralScored && report.Structural.Accuracy >= a.config.Thresholds.Structural {
		return Success
	}
	if len(report.Frames) > 0 && report.VisualScore >= a.config.Thresholds.Visual {
		return Success
	}
	if !report.StructuralScored && len(report.Frames) == 0 {
		return Inconclusive
	}
	return Failure
}
