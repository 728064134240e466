package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// labelOffset is how far above the first vertex the label baseline sits.
const labelOffset = 10

// drawLine draws a straight line of the given thickness using a square pen
// stepped along the longer axis.
func drawLine(img *image.NRGBA, x1, y1, x2, y2, thickness int, c color.NRGBA) {
	dx, dy := x2-x1, y2-y1
	steps := maxInt(absInt(dx), absInt(dy))
	if steps == 0 {
		stamp(img, x1, y1, thickness, c)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x1 + roundInt(float64(dx*i)/float64(steps))
		y := y1 + roundInt(float64(dy*i)/float64(steps))
		stamp(img, x, y, thickness, c)
	}
}

// stamp fills a thickness×thickness square centred on (x,y).
func stamp(img *image.NRGBA, x, y, thickness int, c color.NRGBA) {
	lo := -(thickness - 1) / 2
	hi := lo + thickness
	r := image.Rect(x+lo, y+lo, x+hi, y+hi).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// drawLabel draws text with its baseline at (x,y) over a translucent plate.
// The label is shifted as needed to stay inside the image.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	face := basicfont.Face7x13
	bounds := img.Bounds()
	width := font.MeasureString(face, text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	descent := face.Metrics().Descent.Ceil()

	x = clampInt(x, bounds.Min.X, bounds.Max.X-width)
	y = clampInt(y, bounds.Min.Y+ascent, bounds.Max.Y-descent)

	plate := image.Rect(x-2, y-ascent-1, x+width+2, y+descent+1).Intersect(bounds)
	draw.Draw(img, plate, image.NewUniform(bg), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// clampInt keeps v in [lo, hi]; when the range is empty lo wins.
func clampInt(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
