// Package geom holds the small geometry types shared by detection, rendering
// and persistence: ROI vertices and scale-bar segments.
//
// Coordinates follow the image convention used throughout the module:
// origin (0,0) at the top-left corner, X increasing rightward and Y
// increasing downward.
package geom

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a single ROI vertex. Vertices come from a pointer on a scaled
// canvas, so they are kept as floats.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a straight line segment with integer pixel endpoints.
type Segment struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Length returns the Euclidean length of the segment in pixels.
func (s Segment) Length() float64 {
	dx := float64(s.X2 - s.X1)
	dy := float64(s.Y2 - s.Y1)
	return math.Sqrt(dx*dx + dy*dy)
}

// Angle returns the direction of the segment in degrees from horizontal,
// normalized to [0, 180). A segment and its reverse have the same angle.
func (s Segment) Angle() float64 {
	a := math.Atan2(float64(s.Y2-s.Y1), float64(s.X2-s.X1)) * 180 / math.Pi
	for a < 0 {
		a += 180
	}
	for a >= 180 {
		a -= 180
	}
	return a
}

// HorizontalDeviation returns how far the segment is from horizontal, in
// degrees (0 to 90), treating 0° and 180° as the same direction.
func (s Segment) HorizontalDeviation() float64 {
	a := s.Angle()
	return math.Min(a, 180-a)
}

// MidY returns the Y coordinate of the segment midpoint.
func (s Segment) MidY() float64 {
	return float64(s.Y1+s.Y2) / 2
}

// EncodePoints serializes a vertex list as a JSON array of {x,y} objects.
// Vertex order is preserved.
func EncodePoints(points []Point) (string, error) {
	if points == nil {
		points = []Point{}
	}
	b, err := json.Marshal(points)
	if err != nil {
		return "", fmt.Errorf("failed to encode points: %w", err)
	}
	return string(b), nil
}

// DecodePoints parses a vertex list written by EncodePoints.
func DecodePoints(text string) ([]Point, error) {
	var points []Point
	if err := json.Unmarshal([]byte(text), &points); err != nil {
		return nil, fmt.Errorf("failed to decode points: %w", err)
	}
	return points, nil
}
