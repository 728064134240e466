package detection

import (
	"image"
	"math"

	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
)

// HoughParams configures the probabilistic Hough line transform.
type HoughParams struct {
	// Votes is the accumulator count a (rho, theta) cell needs before a line
	// is traced through it.
	Votes int

	// MinLength is the minimum horizontal or vertical extent, in pixels, of
	// a traced segment.
	MinLength int

	// MaxGap is the largest run of missing edge pixels bridged while tracing.
	MaxGap int
}

// houghAngles is the theta resolution: 180 bins of 1 degree.
const houghAngles = 180

// ProbabilisticHough extracts line segments from an edge map using the
// progressive probabilistic Hough transform.
//
// # Algorithm
//
// Edge pixels are visited in row-major order. Each pixel votes for every
// (rho, theta) line through it (rho resolution 1px, theta resolution 1°).
// When the best cell for the current pixel reaches Votes, the line is traced
// in both directions from the pixel along that angle, bridging up to MaxGap
// missing pixels. Pixels on the traced line are removed from further
// consideration, and if the segment is long enough their votes are
// withdrawn so the same line is not reported twice.
//
// Visiting pixels in a fixed order makes the result a pure function of the
// edge map.
func ProbabilisticHough(edges [][]bool, p HoughParams) []geom.Segment {
	height := len(edges)
	if height == 0 {
		return nil
	}
	width := len(edges[0])
	if width == 0 {
		return nil
	}
	if p.Votes < 1 {
		p.Votes = 1
	}

	maxRho := int(math.Ceil(math.Hypot(float64(width), float64(height))))
	numRho := 2*maxRho + 1
	accumulator := make([]int, houghAngles*numRho)

	cosT := make([]float64, houghAngles)
	sinT := make([]float64, houghAngles)
	for n := 0; n < houghAngles; n++ {
		angle := float64(n) * math.Pi / 180.0
		cosT[n] = math.Cos(angle)
		sinT[n] = math.Sin(angle)
	}

	mask := make([][]bool, height)
	voted := make([][]bool, height)
	for y := 0; y < height; y++ {
		mask[y] = make([]bool, width)
		copy(mask[y], edges[y])
		voted[y] = make([]bool, width)
	}

	vote := func(x, y, delta int) {
		for n := 0; n < houghAngles; n++ {
			r := int(math.Round(float64(x)*cosT[n]+float64(y)*sinT[n])) + maxRho
			accumulator[n*numRho+r] += delta
		}
	}

	segments := make([]geom.Segment, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !mask[y][x] {
				continue
			}

			// Vote in Hough space and remember the strongest line
			best := p.Votes - 1
			bestN := -1
			for n := 0; n < houghAngles; n++ {
				r := int(math.Round(float64(x)*cosT[n]+float64(y)*sinT[n])) + maxRho
				idx := n*numRho + r
				accumulator[idx]++
				if accumulator[idx] > best {
					best = accumulator[idx]
					bestN = n
				}
			}
			voted[y][x] = true

			if bestN < 0 {
				continue
			}

			// The line direction is perpendicular to the normal (cos, sin)
			stepX, stepY := lineStep(-sinT[bestN], cosT[bestN])

			var ends [2]image.Point
			for k := 0; k < 2; k++ {
				sx, sy := stepX, stepY
				if k == 1 {
					sx, sy = -sx, -sy
				}
				ends[k] = traceLine(mask, x, y, sx, sy, p.MaxGap)
			}

			good := absInt(ends[1].X-ends[0].X) >= p.MinLength ||
				absInt(ends[1].Y-ends[0].Y) >= p.MinLength

			// Remove the traced pixels; withdraw their votes for good lines
			for k := 0; k < 2; k++ {
				sx, sy := stepX, stepY
				if k == 1 {
					sx, sy = -sx, -sy
				}
				fx, fy := float64(x), float64(y)
				for {
					px, py := int(math.Round(fx)), int(math.Round(fy))
					if px < 0 || px >= width || py < 0 || py >= height {
						break
					}
					if mask[py][px] {
						if good && voted[py][px] {
							vote(px, py, -1)
							voted[py][px] = false
						}
						mask[py][px] = false
					}
					if px == ends[k].X && py == ends[k].Y {
						break
					}
					fx += sx
					fy += sy
				}
			}

			if good {
				segments = append(segments, geom.Segment{
					X1: ends[0].X,
					Y1: ends[0].Y,
					X2: ends[1].X,
					Y2: ends[1].Y,
				})
			}
		}
	}

	return segments
}

// lineStep converts a direction vector into a per-iteration step that
// advances exactly one pixel along the dominant axis.
func lineStep(dx, dy float64) (float64, float64) {
	if math.Abs(dx) > math.Abs(dy) {
		return math.Copysign(1, dx), dy / math.Abs(dx)
	}
	return dx / math.Abs(dy), math.Copysign(1, dy)
}

// traceLine walks from (x,y) in steps of (sx,sy) while edge pixels keep
// appearing within maxGap steps of each other, and returns the last edge
// pixel reached.
func traceLine(mask [][]bool, x, y int, sx, sy float64, maxGap int) image.Point {
	height := len(mask)
	width := len(mask[0])
	end := image.Point{X: x, Y: y}
	gap := 0
	fx, fy := float64(x), float64(y)
	for {
		px, py := int(math.Round(fx)), int(math.Round(fy))
		if px < 0 || px >= width || py < 0 || py >= height {
			break
		}
		if mask[py][px] {
			gap = 0
			end = image.Point{X: px, Y: py}
		} else {
			gap++
			if gap > maxGap {
				break
			}
		}
		fx += sx
		fy += sy
	}
	return end
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
