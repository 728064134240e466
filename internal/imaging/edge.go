package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
)

// CannyEdges performs Canny edge detection on a grayscale image and returns
// a boolean edge map indexed as edges[y][x].
//
// Parameters:
//   - gray: source image with bounds starting at (0,0).
//   - thresholdLow: weak-edge threshold on the 0-255 intensity scale (50).
//   - thresholdHigh: strong-edge threshold on the 0-255 intensity scale (150).
//
// # Algorithm
//
//  1. Gaussian smoothing (bild blur.Gaussian, radius 1) to suppress
//     sensor noise amplified by contrast equalization
//
//  2. Gradient computation with 3×3 Sobel operators:
//     magnitude = sqrt(Gx² + Gy²), direction = atan2(Gy, Gx)
//
//  3. Non-maximum suppression: thin edges to 1-pixel width by keeping only
//     local maxima along the gradient direction
//
//  4. Hysteresis: pixels above thresholdHigh seed edges; pixels above
//     thresholdLow are kept when 8-connected to a seed through other kept
//     pixels
//
// A uniform image produces no edges.
func CannyEdges(gray *image.Gray, thresholdLow, thresholdHigh int) [][]bool {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	edges := make([][]bool, height)
	for y := range edges {
		edges[y] = make([]bool, width)
	}
	if width < 3 || height < 3 {
		return edges
	}

	smoothed := blur.Gaussian(gray, 1.0)
	sb := smoothed.Bounds()

	// Intensities normalized to [0,1]; red channel of the gray RGBA.
	lum := make([][]float64, height)
	for y := 0; y < height; y++ {
		lum[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			lum[y][x] = float64(smoothed.Pix[smoothed.PixOffset(x+sb.Min.X, y+sb.Min.Y)]) / 255.0
		}
	}

	magnitude := make([][]float64, height)
	direction := make([][]float64, height)

	sobelX := [][]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [][]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		direction[y] = make([]float64, width)

		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					py := clamp(y+ky, 0, height-1)
					px := clamp(x+kx, 0, width-1)
					gx += lum[py][px] * sobelX[ky+1][kx+1]
					gy += lum[py][px] * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			direction[y][x] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression
	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			if y == 0 || y == height-1 || x == 0 || x == width-1 {
				continue
			}

			angle := direction[y][x]
			mag := magnitude[y][x]
			if mag == 0 {
				continue
			}

			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude[y][x-1]
				n2 = magnitude[y][x+1]
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude[y-1][x-1]
				n2 = magnitude[y+1][x+1]
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude[y-1][x]
				n2 = magnitude[y+1][x]
			} else {
				n1 = magnitude[y-1][x+1]
				n2 = magnitude[y+1][x-1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}

	// Double threshold and edge tracking by hysteresis
	lowThresh := float64(thresholdLow) / 255.0
	highThresh := float64(thresholdHigh) / 255.0

	stack := make([]image.Point, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if suppressed[y][x] >= highThresh {
				edges[y][x] = true
				stack = append(stack, image.Point{X: x, Y: y})
			}
		}
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for ky := -1; ky <= 1; ky++ {
			for kx := -1; kx <= 1; kx++ {
				px, py := p.X+kx, p.Y+ky
				if px < 0 || px >= width || py < 0 || py >= height || edges[py][px] {
					continue
				}
				if suppressed[py][px] >= lowThresh {
					edges[py][px] = true
					stack = append(stack, image.Point{X: px, Y: py})
				}
			}
		}
	}

	return edges
}

// CloseEdges applies a morphological closing (3×3 square dilation followed
// by 3×3 erosion, one iteration each) to an edge map. It bridges the
// one-pixel breaks that graduation ticks leave in a scale bar's outline.
// Out-of-bounds neighbours are ignored, so the image border never erodes.
func CloseEdges(edges [][]bool) [][]bool {
	return morph(morph(edges, true), false)
}

// morph applies a 3×3 dilation (dilate=true) or erosion to a bool grid.
func morph(src [][]bool, dilate bool) [][]bool {
	height := len(src)
	dst := make([][]bool, height)
	for y := 0; y < height; y++ {
		width := len(src[y])
		dst[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			v := !dilate
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					py, px := y+ky, x+kx
					if py < 0 || py >= height || px < 0 || px >= len(src[py]) {
						continue
					}
					if dilate && src[py][px] {
						v = true
					}
					if !dilate && !src[py][px] {
						v = false
					}
				}
			}
			dst[y][x] = v
		}
	}
	return dst
}

// CountEdges returns the number of set pixels in an edge map.
func CountEdges(edges [][]bool) int {
	n := 0
	for _, row := range edges {
		for _, e := range row {
			if e {
				n++
			}
		}
	}
	return n
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
