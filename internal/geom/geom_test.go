package geom

import (
	"math"
	"testing"
)

func TestSegment_Angle(t *testing.T) {
	tests := []struct {
		name string
		seg  Segment
		want float64
	}{
		{"horizontal left to right", Segment{0, 10, 100, 10}, 0},
		{"horizontal right to left", Segment{100, 10, 0, 10}, 0},
		{"vertical", Segment{5, 0, 5, 50}, 90},
		{"vertical upward", Segment{5, 50, 5, 0}, 90},
		{"diagonal down", Segment{0, 0, 10, 10}, 45},
		{"diagonal up", Segment{0, 10, 10, 0}, 135},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.seg.Angle()
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Angle() = %.3f, want %.3f", got, tt.want)
			}
			if got < 0 || got >= 180 {
				t.Errorf("Angle() = %.3f outside [0,180)", got)
			}
		})
	}
}

func TestSegment_HorizontalDeviation(t *testing.T) {
	// 175 degrees is 5 degrees from horizontal
	seg := Segment{X1: 0, Y1: 0, X2: -100, Y2: int(math.Round(100 * math.Tan(5*math.Pi/180)))}
	dev := seg.HorizontalDeviation()
	if math.Abs(dev-5) > 0.5 {
		t.Errorf("HorizontalDeviation() = %.2f, want ~5", dev)
	}

	if d := (Segment{0, 0, 0, 10}).HorizontalDeviation(); d != 90 {
		t.Errorf("vertical deviation = %.2f, want 90", d)
	}
}

func TestSegment_LengthAndMidY(t *testing.T) {
	seg := Segment{X1: 0, Y1: 0, X2: 3, Y2: 4}
	if seg.Length() != 5 {
		t.Errorf("Length() = %v, want 5", seg.Length())
	}
	if seg.MidY() != 2 {
		t.Errorf("MidY() = %v, want 2", seg.MidY())
	}
}

func TestEncodeDecodePoints_PreservesOrder(t *testing.T) {
	points := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {2.5, 7.25}}

	text, err := EncodePoints(points)
	if err != nil {
		t.Fatalf("EncodePoints failed: %v", err)
	}

	got, err := DecodePoints(text)
	if err != nil {
		t.Fatalf("DecodePoints failed: %v", err)
	}
	if len(got) != len(points) {
		t.Fatalf("got %d points, want %d", len(got), len(points))
	}
	for i := range points {
		if got[i] != points[i] {
			t.Errorf("point %d: got %+v, want %+v", i, got[i], points[i])
		}
	}
}

func TestEncodePoints_Nil(t *testing.T) {
	text, err := EncodePoints(nil)
	if err != nil {
		t.Fatalf("EncodePoints failed: %v", err)
	}
	if text != "[]" {
		t.Errorf("EncodePoints(nil) = %q, want []", text)
	}
}

func TestDecodePoints_Malformed(t *testing.T) {
	for _, text := range []string{"", "not json", "[{\"x\":1", "{}"} {
		if _, err := DecodePoints(text); err == nil {
			t.Errorf("DecodePoints(%q) expected error", text)
		}
	}
}
