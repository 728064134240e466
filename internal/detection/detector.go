package detection

import (
	"image"
	"log"

	"github.com/ironsheep/roi-analyzer-mcp/internal/config"
	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
)

// Detector locates a scale bar by running the Extractor and the Selector.
// It is a pure function of the pixels and the configuration.
type Detector struct {
	extractor *Extractor
	selector  *Selector
	debug     bool
}

// NewDetector creates a detector from detection parameters.
func NewDetector(cfg config.Detection, debug bool) *Detector {
	return &Detector{
		extractor: NewExtractor(cfg),
		selector:  NewSelector(cfg),
		debug:     debug,
	}
}

// Detect returns the most plausible scale bar in img. The second result is
// false when nothing qualifies; that is a normal outcome, not a failure.
func (d *Detector) Detect(img image.Image) (geom.Segment, bool) {
	b := img.Bounds()
	return d.choose(d.extractor.Extract(img), b.Dx(), b.Dy())
}

func (d *Detector) choose(candidates []geom.Segment, width, height int) (geom.Segment, bool) {
	seg, ok := d.selector.Select(candidates, width, height)
	if d.debug {
		if ok {
			log.Printf("scale bar: %d candidates, chose %+v (score %.1f)", len(candidates), seg, d.selector.Score(seg, height))
		} else {
			log.Printf("scale bar: %d candidates, none qualified", len(candidates))
		}
	}
	return seg, ok
}
