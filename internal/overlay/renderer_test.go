package overlay

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/roi-analyzer-mcp/internal/config"
	"github.com/ironsheep/roi-analyzer-mcp/internal/faults"
	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
)

// createSourceImage writes a uniform gray PNG and returns its path
func createSourceImage(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 60
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create source image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode source image: %v", err)
	}
	return path
}

func newTestRenderer(dir string) *Renderer {
	return NewRenderer(filepath.Join(dir, "_roi_overlays"), config.DefaultConfig().Overlay)
}

var square = []geom.Point{{X: 20, Y: 30}, {X: 80, Y: 30}, {X: 80, Y: 90}, {X: 20, Y: 90}}

func TestFileName(t *testing.T) {
	tests := []struct {
		image    string
		sel, ver int
		want     string
	}{
		{"a.tif", 1, 1, "a.tif_roi1_v1.png"},
		{"a.tiff", 1, 1, "a.tiff_roi1_v1.png"},
		{"sample.001.tiff", 3, 12, "sample.001.tiff_roi3_v12.png"},
		{"noext", 2, 5, "noext_roi2_v5.png"},
	}
	for _, tt := range tests {
		if got := FileName(tt.image, tt.sel, tt.ver); got != tt.want {
			t.Errorf("FileName(%q, %d, %d) = %q, want %q", tt.image, tt.sel, tt.ver, got, tt.want)
		}
	}
}

func TestRender_WritesOverlay(t *testing.T) {
	dir := t.TempDir()
	src := createSourceImage(t, dir, "a.png", 120, 120)
	r := newTestRenderer(dir)

	name, err := r.Render(src, "a.png", 1, 2, square)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if name != "a.png_roi1_v2.png" {
		t.Errorf("name: got %q, want a.png_roi1_v2.png", name)
	}

	out, err := imaging.Open(filepath.Join(r.Dir(), name))
	if err != nil {
		t.Fatalf("overlay not readable: %v", err)
	}
	if out.Bounds().Dx() != 120 || out.Bounds().Dy() != 120 {
		t.Errorf("overlay size %v, want 120x120", out.Bounds())
	}

	// Edge of the polygon is red, interior untouched.
	if c := color.NRGBAModel.Convert(out.At(50, 90)).(color.NRGBA); c.R != 255 || c.G != 0 || c.B != 0 {
		t.Errorf("polygon edge pixel = %+v, want red", c)
	}
	if c := color.NRGBAModel.Convert(out.At(50, 60)).(color.NRGBA); c.R != 60 || c.G != 60 || c.B != 60 {
		t.Errorf("interior pixel = %+v, want source gray", c)
	}
}

func TestRender_SourceUnchanged(t *testing.T) {
	dir := t.TempDir()
	src := createSourceImage(t, dir, "a.png", 100, 100)
	before, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := newTestRenderer(dir).Render(src, "a.png", 1, 1, square); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	after, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("source image was modified")
	}
}

func TestRender_VersionsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	src := createSourceImage(t, dir, "a.png", 100, 100)
	r := newTestRenderer(dir)

	for v := 1; v <= 3; v++ {
		if _, err := r.Render(src, "a.png", 1, v, square); err != nil {
			t.Fatalf("Render v%d failed: %v", v, err)
		}
	}
	// Same version again overwrites.
	if _, err := r.Render(src, "a.png", 1, 3, square); err != nil {
		t.Fatalf("re-render failed: %v", err)
	}

	entries, err := os.ReadDir(r.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 overlay files, got %d", len(entries))
	}
}

func TestRender_TooFewPoints(t *testing.T) {
	dir := t.TempDir()
	src := createSourceImage(t, dir, "a.png", 50, 50)
	r := newTestRenderer(dir)

	_, err := r.Render(src, "a.png", 1, 1, square[:2])
	if !faults.IsInput(err) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if _, statErr := os.Stat(r.Dir()); !os.IsNotExist(statErr) {
		t.Error("nothing should be written for an invalid polygon")
	}
}

func TestRender_UnreadableSource(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(dir)

	_, err := r.Render(filepath.Join(dir, "missing.tif"), "missing.tif", 1, 1, square)
	if err == nil {
		t.Fatal("expected an error for a missing source")
	}
	if faults.IsInput(err) {
		t.Errorf("missing source should be an I/O error, got InputError: %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap the OS error, got %v", err)
	}
}

func TestDraw_LabelNearEdgeStaysInBounds(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 60, 40))
	r := NewRenderer("", config.Overlay{Color: "#00FF00", Thickness: 3})

	// First vertex in the top-left corner pushes the label off-image.
	pts := []geom.Point{{X: 0, Y: 0}, {X: 50, Y: 5}, {X: 30, Y: 35}}
	out := r.Draw(src, 12, 4, pts)
	if out.Bounds() != src.Bounds() {
		t.Fatalf("bounds changed: %v", out.Bounds())
	}

	green := 0
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i+1] == 255 && out.Pix[i] == 0 {
			green++
		}
	}
	if green == 0 {
		t.Error("no stroke pixels drawn")
	}
}

func TestNewRenderer_BadColorFallsBack(t *testing.T) {
	r := NewRenderer("", config.Overlay{Color: "not-a-colour", Thickness: 0})
	if r.stroke != defaultStroke {
		t.Errorf("stroke: got %+v, want default", r.stroke)
	}
	if r.thickness != 1 {
		t.Errorf("thickness: got %d, want 1", r.thickness)
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	src := createSourceImage(t, dir, "a.png", 50, 50)
	r := newTestRenderer(dir)

	name, err := r.Render(src, "a.png", 1, 1, square)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if err := r.Remove(name); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), name)); !os.IsNotExist(err) {
		t.Error("overlay still present after Remove")
	}
	if err := r.Remove(name); err != nil {
		t.Errorf("removing a missing overlay should succeed, got %v", err)
	}
}

func TestRender_VertexFarOutsideImage(t *testing.T) {
	dir := t.TempDir()
	src := createSourceImage(t, dir, "a.png", 100, 80)
	r := newTestRenderer(dir)

	tests := []struct {
		name string
		pts  []geom.Point
	}{
		{"huge x", []geom.Point{{X: 0, Y: 0}, {X: 2e9, Y: 0}, {X: 0, Y: 10}}},
		{"negative y", []geom.Point{{X: 10, Y: 10}, {X: 50, Y: -500}, {X: 20, Y: 40}}},
		{"infinite", []geom.Point{{X: 10, Y: 10}, {X: math.Inf(1), Y: 10}, {X: 20, Y: 40}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(src, "a.png", 1, 1, tt.pts)
			if !faults.IsInput(err) {
				t.Fatalf("expected InputError, got %v", err)
			}
		})
	}
	if _, err := os.Stat(r.Dir()); !os.IsNotExist(err) {
		t.Error("nothing should be written for a rejected polygon")
	}

	// Slightly outside is still accepted; the stroke is clipped.
	near := []geom.Point{{X: -5, Y: -5}, {X: 104, Y: 10}, {X: 50, Y: 85}}
	if _, err := r.Render(src, "a.png", 1, 1, near); err != nil {
		t.Errorf("vertices just outside the image should render, got %v", err)
	}
}

func TestRemoveAll_OnlyThisImage(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(dir)
	if err := os.MkdirAll(r.Dir(), 0755); err != nil {
		t.Fatal(err)
	}

	mine := []string{"a.tif_roi1_v1.png", "a.tif_roi1_v2.png", "a.tif_roi7_v3.png"}
	others := []string{
		"a.tiff_roi1_v1.png",
		"a.tif_roi2.tif_roi1_v1.png",
		"b.tif_roi1_v1.png",
		"a.tif_roi1_v1.png.bak",
		"a_1.png",
	}
	for _, name := range append(append([]string{}, mine...), others...) {
		if err := os.WriteFile(filepath.Join(r.Dir(), name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := r.RemoveAll("a.tif")
	if err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if len(removed) != len(mine) {
		t.Errorf("removed %v, want %v", removed, mine)
	}
	for _, name := range mine {
		if _, err := os.Stat(filepath.Join(r.Dir(), name)); !os.IsNotExist(err) {
			t.Errorf("%s not removed", name)
		}
	}
	for _, name := range others {
		if _, err := os.Stat(filepath.Join(r.Dir(), name)); err != nil {
			t.Errorf("%s should be kept: %v", name, err)
		}
	}
}

func TestRemoveAll_NoDirectory(t *testing.T) {
	r := newTestRenderer(t.TempDir())
	removed, err := r.RemoveAll("a.tif")
	if err != nil || len(removed) != 0 {
		t.Errorf("RemoveAll without overlays = %v, %v", removed, err)
	}
}
