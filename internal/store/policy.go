package store

import (
	"log"
	"math"

	"github.com/ironsheep/roi-analyzer-mcp/internal/faults"
)

// OnCorrupt selects what a read does when persisted data cannot be parsed.
type OnCorrupt int

const (
	// ReturnEmpty logs the problem and reads as if the store were empty.
	ReturnEmpty OnCorrupt = iota
	// ReturnError returns a *faults.CorruptDataError.
	ReturnError
)

func (p OnCorrupt) String() string {
	switch p {
	case ReturnEmpty:
		return "return-empty"
	case ReturnError:
		return "return-error"
	default:
		return "unknown"
	}
}

// apply resolves a read failure according to the policy. It returns nil
// when the caller should carry on with an empty result.
func (p OnCorrupt) apply(err *faults.CorruptDataError) error {
	if p == ReturnError {
		return err
	}
	log.Printf("Warning: %v; treating as empty", err)
	return nil
}

// Accepted range for the physical length of a scale bar, in µm.
const (
	MinScaleUm     = 1
	MaxScaleUm     = 10000
	DefaultScaleUm = 100
)

// ClampScaleUm replaces a bar length outside [MinScaleUm, MaxScaleUm] with
// def. An out-of-range def falls back to DefaultScaleUm. Every write path
// that persists a bar length goes through here.
func ClampScaleUm(v, def float64) float64 {
	if def < MinScaleUm || def > MaxScaleUm {
		def = DefaultScaleUm
	}
	if v < MinScaleUm || v > MaxScaleUm || math.IsNaN(v) {
		return def
	}
	return v
}
