package detection

import (
	"image"
	"math"

	"github.com/ironsheep/roi-analyzer-mcp/internal/config"
	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
	"github.com/ironsheep/roi-analyzer-mcp/internal/imaging"
)

// Extractor turns a micrograph into raw straight-segment candidates.
//
// The pipeline is fixed: CLAHE contrast equalization, Canny edges, an
// optional 3×3 closing to bridge graduation ticks, then the probabilistic
// Hough transform. The only inputs besides the pixels are the parameters in
// config.Detection.
type Extractor struct {
	cfg config.Detection
}

// NewExtractor creates an extractor with the given detection parameters.
func NewExtractor(cfg config.Detection) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract returns the candidate segments found in img, in extraction order.
// An empty result is a normal outcome.
func (e *Extractor) Extract(img image.Image) []geom.Segment {
	gray := imaging.ToGray(img)
	width := gray.Bounds().Dx()

	equalized := imaging.EqualizeCLAHE(gray, e.cfg.ClaheTiles, e.cfg.ClaheClipLimit)
	edges := imaging.CannyEdges(equalized, e.cfg.CannyLow, e.cfg.CannyHigh)
	if e.cfg.CloseGaps {
		edges = imaging.CloseEdges(edges)
	}

	if imaging.CountEdges(edges) == 0 {
		return nil
	}

	return ProbabilisticHough(edges, HoughParams{
		Votes:     e.cfg.HoughVotes,
		MinLength: MinLength(width, e.cfg.MinLengthFraction),
		MaxGap:    e.cfg.MaxLineGap,
	})
}

// MinLength converts a width fraction into a pixel length, at least 1.
func MinLength(width int, fraction float64) int {
	n := int(math.Round(float64(width) * fraction))
	if n < 1 {
		return 1
	}
	return n
}
