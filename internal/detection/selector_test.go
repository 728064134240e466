package detection

import (
	"math"
	"testing"

	"github.com/ironsheep/roi-analyzer-mcp/internal/config"
	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
)

func newTestSelector(tolerance float64) *Selector {
	cfg := config.DefaultConfig().Detection
	cfg.AngleTolerance = tolerance
	return NewSelector(cfg)
}

// slanted returns a segment of the given length starting at (x,y) whose
// angle from horizontal is deg degrees.
func slanted(x, y int, length, deg float64) geom.Segment {
	rad := deg * math.Pi / 180
	return geom.Segment{
		X1: x,
		Y1: y,
		X2: x + int(math.Round(length*math.Cos(rad))),
		Y2: y - int(math.Round(length*math.Sin(rad))),
	}
}

func TestSelector_AngleToleranceBeatsLength(t *testing.T) {
	const width, height = 1000, 800

	for tol := 5.0; tol <= 15.0; tol++ {
		s := newTestSelector(tol)
		valid := geom.Segment{X1: 100, Y1: 400, X2: 160, Y2: 400} // short, central, flat
		tooSlanted := slanted(50, 780, 900, tol+3)                // long, low, slanted

		got, ok := s.Select([]geom.Segment{tooSlanted, valid}, width, height)
		if !ok {
			t.Fatalf("tol=%.0f: expected a selection", tol)
		}
		if got != valid {
			t.Errorf("tol=%.0f: selected %+v (dev %.1f), want in-tolerance %+v",
				tol, got, got.HorizontalDeviation(), valid)
		}
	}
}

func TestSelector_NearHorizontalAt180(t *testing.T) {
	s := newTestSelector(5)
	// Drawn right to left, 3 degrees off horizontal
	seg := slanted(500, 700, 300, 177)
	if !s.Accepts(seg, 1000) {
		t.Errorf("segment at ~177 degrees (dev %.1f) should be accepted", seg.HorizontalDeviation())
	}
}

func TestSelector_RejectsShort(t *testing.T) {
	s := newTestSelector(5)
	short := geom.Segment{X1: 0, Y1: 90, X2: 40, Y2: 90} // 4% of 1000 < 5%
	if _, ok := s.Select([]geom.Segment{short}, 1000, 100); ok {
		t.Error("segment below minimum length should be rejected")
	}
}

func TestSelector_Empty(t *testing.T) {
	s := newTestSelector(5)
	if _, ok := s.Select(nil, 100, 100); ok {
		t.Error("empty candidate set should report not found")
	}
}

func TestSelector_OrderingProperties(t *testing.T) {
	const width, height = 1000, 900
	s := newTestSelector(10)

	tests := []struct {
		name   string
		better geom.Segment
		worse  geom.Segment
	}{
		{
			"longer wins at same position",
			geom.Segment{X1: 0, Y1: 850, X2: 300, Y2: 850},
			geom.Segment{X1: 0, Y1: 850, X2: 200, Y2: 850},
		},
		{
			"lower third beats middle at same length",
			geom.Segment{X1: 0, Y1: 800, X2: 200, Y2: 800},
			geom.Segment{X1: 0, Y1: 450, X2: 200, Y2: 450},
		},
		{
			"lower third beats top band at same length",
			geom.Segment{X1: 0, Y1: 800, X2: 200, Y2: 800},
			geom.Segment{X1: 0, Y1: 20, X2: 200, Y2: 20},
		},
		{
			"top band beats middle at same length",
			geom.Segment{X1: 0, Y1: 20, X2: 200, Y2: 20},
			geom.Segment{X1: 0, Y1: 450, X2: 200, Y2: 450},
		},
		{
			"straight beats slanted at same length and row",
			geom.Segment{X1: 0, Y1: 800, X2: 200, Y2: 800},
			slanted(0, 800, 200, 4),
		},
		{
			"longer, lower, straighter beats shorter, central, slanted",
			geom.Segment{X1: 0, Y1: 820, X2: 250, Y2: 820},
			slanted(0, 460, 150, 6),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sb, sw := s.Score(tt.better, height), s.Score(tt.worse, height); sb <= sw {
				t.Errorf("score(better)=%.2f <= score(worse)=%.2f", sb, sw)
			}
			// Order in the candidate list must not matter
			for _, cands := range [][]geom.Segment{{tt.better, tt.worse}, {tt.worse, tt.better}} {
				got, ok := s.Select(cands, width, height)
				if !ok || got != tt.better {
					t.Errorf("Select(%v) = %+v, want %+v", cands, got, tt.better)
				}
			}
		})
	}
}

func TestSelector_TieKeepsFirst(t *testing.T) {
	s := newTestSelector(5)
	a := geom.Segment{X1: 0, Y1: 90, X2: 100, Y2: 90}
	b := geom.Segment{X1: 200, Y1: 90, X2: 300, Y2: 90}

	got, ok := s.Select([]geom.Segment{a, b}, 400, 100)
	if !ok || got != a {
		t.Errorf("tie should keep first-seen %+v, got %+v", a, got)
	}
	got, _ = s.Select([]geom.Segment{b, a}, 400, 100)
	if got != b {
		t.Errorf("tie should keep first-seen %+v, got %+v", b, got)
	}
}

func TestSelector_Deterministic(t *testing.T) {
	s := newTestSelector(8)
	cands := []geom.Segment{
		slanted(10, 700, 300, 2),
		{X1: 5, Y1: 760, X2: 305, Y2: 760},
		slanted(400, 100, 500, 7),
		{X1: 0, Y1: 400, X2: 600, Y2: 400},
	}

	first, ok := s.Select(cands, 800, 800)
	if !ok {
		t.Fatal("expected a selection")
	}
	for i := 0; i < 10; i++ {
		if got, _ := s.Select(cands, 800, 800); got != first {
			t.Fatalf("call %d returned %+v, first call %+v", i, got, first)
		}
	}
}
