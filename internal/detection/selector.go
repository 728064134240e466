package detection

import (
	"github.com/ironsheep/roi-analyzer-mcp/internal/config"
	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
)

const (
	// topBandFraction is the height fraction treated as the extreme top band.
	topBandFraction = 0.10

	// straightDegrees is the deviation under which a segment counts as
	// exactly horizontal for the straightness bonus.
	straightDegrees = 1.0
)

// Selector scores candidate segments and picks the most plausible scale bar.
//
// Filtering rejects segments more than Tolerance degrees from horizontal and
// segments shorter than MinLengthFraction of the image width. Survivors are
// scored as
//
//	length × Weights.Length × position × straightness
//
// where position rewards the lower third (1+LowerThird), gives a smaller
// reward to the top band (1+TopBand), penalizes the middle third
// (MiddlePenalty) and is 1 elsewhere, and straightness is 1+Straightness for
// near-exact horizontals. Every factor is non-decreasing in "longer, lower,
// straighter", so such a segment always outranks a shorter, central,
// slanted one.
type Selector struct {
	Tolerance         float64
	MinLengthFraction float64
	Weights           config.Weights
}

// NewSelector creates a selector from detection parameters.
func NewSelector(cfg config.Detection) *Selector {
	return &Selector{
		Tolerance:         cfg.AngleTolerance,
		MinLengthFraction: cfg.MinLengthFraction,
		Weights:           cfg.Weights,
	}
}

// Accepts reports whether seg passes the angle and length filters for an
// image of the given width.
func (s *Selector) Accepts(seg geom.Segment, width int) bool {
	if seg.HorizontalDeviation() > s.Tolerance {
		return false
	}
	return seg.Length() >= float64(MinLength(width, s.MinLengthFraction))
}

// Score returns the ranking score of seg in an image of the given height.
// Higher is better. Score does not apply the filters.
func (s *Selector) Score(seg geom.Segment, height int) float64 {
	w := s.Weights
	score := seg.Length() * w.Length

	if height > 0 {
		pos := seg.MidY() / float64(height)
		switch {
		case pos >= 2.0/3.0:
			score *= 1 + w.LowerThird
		case pos >= 1.0/3.0:
			score *= w.MiddlePenalty
		case pos < topBandFraction:
			score *= 1 + w.TopBand
		}
	}

	if seg.HorizontalDeviation() < straightDegrees {
		score *= 1 + w.Straightness
	}
	return score
}

// Select returns the best-scoring accepted candidate. Ties go to the
// candidate that appears first. The second result is false when no
// candidate survives filtering.
func (s *Selector) Select(candidates []geom.Segment, width, height int) (geom.Segment, bool) {
	var best geom.Segment
	bestScore := -1.0
	found := false

	for _, seg := range candidates {
		if !s.Accepts(seg, width) {
			continue
		}
		score := s.Score(seg, height)
		if !found || score > bestScore {
			best = seg
			bestScore = score
			found = true
		}
	}
	return best, found
}
