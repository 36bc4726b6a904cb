package analyzer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
)

// VisualConfig controls the screenshot based scoring.
type VisualConfig struct {
	// Region bounds the analyzed area, the zero rectangle means the
	// whole frame.
	Region image.Rectangle
	// ColorDistance is the Euclidean RGB distance below which two
	// colors count as the same.
	ColorDistance float64
	// WhiteCutoff and BlackCutoff filter out near-white and near-black
	// pixels before counting colors.
	WhiteCutoff uint8
	BlackCutoff uint8
	// Background filters pixels close to a known backdrop color.
	Background *color.NRGBA
	// MinDistinctColors is the count a frame must reach to pass without
	// a reference image.
	MinDistinctColors int
}

// DefaultVisualConfig mirrors the thresholds the manual sprite
// comparison workflow settled on.
func DefaultVisualConfig() VisualConfig {
	return VisualConfig{
		ColorDistance:     30,
		WhiteCutoff:       230,
		BlackCutoff:       25,
		MinDistinctColors: 3,
	}
}

// FrameResult scores one captured screenshot.
type FrameResult struct {
	Screenshot     string
	DistinctColors int
	// MeanDistance and MatchRatio are only set when a reference image
	// was supplied.
	MeanDistance float64
	MatchRatio   float64

	Success bool
}

// AnalyzeFrame scores a single frame, against a reference image when
// one is given and by distinct color count otherwise.
func AnalyzeFrame(img image.Image, reference image.Image, config VisualConfig) FrameResult {
	region := config.Region
	if region.Empty() {
		region = img.Bounds()
	} else {
		region = region.Intersect(img.Bounds())
	}

	result := FrameResult{
		DistinctColors: DistinctColors(img, region, config),
	}

	if reference == nil {
		result.Success = result.DistinctColors >= config.MinDistinctColors
		return result
	}

	result.MeanDistance, result.MatchRatio = compareToReference(img, region, reference, config)
	result.Success = result.MatchRatio >= 0.5
	return result
}

// DistinctColors counts the colors in a region that are pairwise more
// than the configured distance apart, after filtering near-white,
// near-black and backdrop pixels.
func DistinctColors(img image.Image, region image.Rectangle, config VisualConfig) int {
	var clusters []color.NRGBA

	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			pixel := nrgbaAt(img, x, y)
			if filtered(pixel, config) {
				continue
			}

			matched := false
			for _, cluster := range clusters {
				if colorDistance(pixel, cluster) <= config.ColorDistance {
					matched = true
					break
				}
			}
			if !matched {
				clusters = append(clusters, pixel)
			}
		}
	}
	return len(clusters)
}

// RegionsDistinct reports whether the dominant colors of the given
// regions are pairwise further apart than the configured distance.
func RegionsDistinct(img image.Image, regions []image.Rectangle, config VisualConfig) bool {
	dominants := make([]color.NRGBA, 0, len(regions))
	for _, region := range regions {
		dominant, ok := dominantColor(img, region.Intersect(img.Bounds()), config)
		if !ok {
			return false
		}
		dominants = append(dominants, dominant)
	}

	for i := range dominants {
		for j := i + 1; j < len(dominants); j++ {
			if colorDistance(dominants[i], dominants[j]) <= config.ColorDistance {
				return false
			}
		}
	}
	return len(dominants) > 1
}

// LoadImage decodes a PNG screenshot from disk.
func LoadImage(name string) (image.Image, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening screenshot: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	return img, nil
}

// compareToReference scales the reference to the analyzed region and
// returns the mean per-pixel distance and the share of pixels within
// the configured distance.
func compareToReference(img image.Image, region image.Rectangle,
	reference image.Image, config VisualConfig) (float64, float64) {

	scaled := image.NewNRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), reference, reference.Bounds(), draw.Src, nil)

	var (
		sum     float64
		matched int
		total   int
	)
	for y := 0; y < region.Dy(); y++ {
		for x := 0; x < region.Dx(); x++ {
			pixel := nrgbaAt(img, region.Min.X+x, region.Min.Y+y)
			ref := scaled.NRGBAAt(x, y)

			distance := colorDistance(pixel, ref)
			sum += distance
			if distance <= config.ColorDistance {
				matched++
			}
			total++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return sum / float64(total), float64(matched) / float64(total)
}

// dominantColor returns the most frequent unfiltered color of a region,
// quantized to 5 bits per channel to absorb scaler noise.
func dominantColor(img image.Image, region image.Rectangle, config VisualConfig) (color.NRGBA, bool) {
	counts := map[color.NRGBA]int{}
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			pixel := nrgbaAt(img, x, y)
			if filtered(pixel, config) {
				continue
			}
			counts[quantize(pixel)]++
		}
	}

	var (
		dominant color.NRGBA
		best     int
	)
	for pixel, count := range counts {
		if count > best {
			dominant = pixel
			best = count
		}
	}
	return dominant, best > 0
}

func filtered(pixel color.NRGBA, config VisualConfig) bool {
	if pixel.R >= config.WhiteCutoff && pixel.G >= config.WhiteCutoff && pixel.B >= config.WhiteCutoff {
		return true
	}
	if pixel.R <= config.BlackCutoff && pixel.G <= config.BlackCutoff && pixel.B <= config.BlackCutoff {
		return true
	}
	if config.Background != nil && colorDistance(pixel, *config.Background) <= config.ColorDistance {
		return true
	}
	return false
}

func quantize(pixel color.NRGBA) color.NRGBA {
	return color.NRGBA{
		R: pixel.R &^ 0x07,
		G: pixel.G &^ 0x07,
		B: pixel.B &^ 0x07,
		A: 0xff,
	}
}

func colorDistance(a, b color.NRGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}
