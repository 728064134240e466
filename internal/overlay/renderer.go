package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"regexp"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/roi-analyzer-mcp/internal/config"
	"github.com/ironsheep/roi-analyzer-mcp/internal/faults"
	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
)

// defaultStroke is used when the configured colour cannot be parsed.
var defaultStroke = color.NRGBA{R: 255, A: 255}

// Renderer draws ROI overlays into a single output directory.
type Renderer struct {
	dir       string
	stroke    color.NRGBA
	labelBg   color.NRGBA
	thickness int
}

// NewRenderer creates a renderer writing into dir. The directory is created
// lazily on the first render.
func NewRenderer(dir string, cfg config.Overlay) *Renderer {
	stroke := defaultStroke
	bg := color.NRGBA{A: 160}
	if c, err := colorful.Hex(cfg.Color); err == nil {
		r, g, b := c.RGB255()
		stroke = color.NRGBA{R: r, G: g, B: b, A: 255}
		// Dark, slightly tinted plate behind the label.
		br, bgc, bb := c.BlendLab(colorful.Color{}, 0.85).Clamped().RGB255()
		bg = color.NRGBA{R: br, G: bgc, B: bb, A: 160}
	}

	thickness := cfg.Thickness
	if thickness < 1 {
		thickness = 1
	}

	return &Renderer{
		dir:       dir,
		stroke:    stroke,
		labelBg:   bg,
		thickness: thickness,
	}
}

// Dir returns the output directory.
func (r *Renderer) Dir() string {
	return r.dir
}

// FileName returns the overlay file name for one ROI version of an image.
// The full base name of imageName is kept, extension included, so "a.tif"
// and "a.tiff" never share overlays.
func FileName(imageName string, selection, version int) string {
	return fmt.Sprintf("%s_roi%d_v%d.png", filepath.Base(imageName), selection, version)
}

// overlayPattern matches exactly the names FileName produces for one image.
func overlayPattern(imageName string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(filepath.Base(imageName)) + `_roi\d+_v\d+\.png$`)
}

// checkVertices rejects non-finite vertices and vertices further outside
// bounds than the image's larger side.
func checkVertices(bounds image.Rectangle, pts []geom.Point) error {
	margin := float64(maxInt(bounds.Dx(), bounds.Dy()))
	minX, minY := float64(bounds.Min.X)-margin, float64(bounds.Min.Y)-margin
	maxX, maxY := float64(bounds.Max.X)+margin, float64(bounds.Max.Y)+margin
	for i, p := range pts {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return faults.Input("points", "vertex %d is not a finite number", i)
		}
		if p.X < minX || p.X > maxX || p.Y < minY || p.Y > maxY {
			return faults.Input("points", "vertex %d (%.0f, %.0f) lies far outside the %dx%d image",
				i, p.X, p.Y, bounds.Dx(), bounds.Dy())
		}
	}
	return nil
}

// Label returns the text drawn next to an ROI.
func Label(selection, version int) string {
	return fmt.Sprintf("ROI %d v%d", selection, version)
}

// Render draws the closed polygon pts and its label onto a copy of the
// image at sourcePath and writes it to the output directory. It returns the
// overlay file name relative to Dir().
//
// Fewer than three vertices, or a vertex far outside the image, is an input
// error. An unreadable source image is returned as a wrapped I/O error.
// Nothing is written in either case.
func (r *Renderer) Render(sourcePath, imageName string, selection, version int, pts []geom.Point) (string, error) {
	if len(pts) < 3 {
		return "", faults.Input("points", "a polygon needs at least 3 vertices, got %d", len(pts))
	}

	src, err := imaging.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to read source image %s: %w", filepath.Base(sourcePath), err)
	}
	if err := checkVertices(src.Bounds(), pts); err != nil {
		return "", err
	}

	canvas := r.Draw(src, selection, version, pts)

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", faults.ClassifyWrite(r.dir, err)
	}

	name := FileName(imageName, selection, version)
	out := filepath.Join(r.dir, name)
	if err := imaging.Save(canvas, out); err != nil {
		return "", faults.ClassifyWrite(out, err)
	}
	return name, nil
}

// Draw returns a copy of src with the polygon and label drawn on it.
func (r *Renderer) Draw(src image.Image, selection, version int, pts []geom.Point) *image.NRGBA {
	canvas := imaging.Clone(src)
	off := src.Bounds().Min

	n := len(pts)
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		drawLine(canvas,
			roundInt(a.X)-off.X, roundInt(a.Y)-off.Y,
			roundInt(b.X)-off.X, roundInt(b.Y)-off.Y,
			r.thickness, r.stroke)
	}

	if n > 0 {
		x := roundInt(pts[0].X) - off.X
		y := roundInt(pts[0].Y) - off.Y - labelOffset
		drawLabel(canvas, x, y, Label(selection, version), r.stroke, r.labelBg)
	}
	return canvas
}

// Remove deletes the named overlay file. A file that is already gone is not
// an error.
func (r *Renderer) Remove(name string) error {
	if name == "" {
		return nil
	}
	path := filepath.Join(r.dir, filepath.Base(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return faults.ClassifyWrite(path, err)
	}
	return nil
}

// RemoveAll deletes every overlay FileName can produce for imageName and
// returns the names removed. Overlays of other images are never matched,
// including images whose names share a prefix. Every failure is returned.
func (r *Renderer) RemoveAll(imageName string) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list overlays in %s: %w", r.dir, err)
	}

	pattern := overlayPattern(imageName)
	var removed []string
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !pattern.MatchString(e.Name()) {
			continue
		}
		if err := r.Remove(e.Name()); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, e.Name())
	}
	return removed, errors.Join(errs...)
}
