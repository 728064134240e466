package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"regexp"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
)

// ScaleLabel is a recognized scale bar caption.
type ScaleLabel struct {
	// Text is the raw OCR output for the band around the bar.
	Text string `json:"text"`
	// Value and Unit are the number and unit as printed.
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	// ScaleUm is the length converted to micrometres.
	ScaleUm float64 `json:"scale_um"`
}

// upsample is the enlargement applied to the band before OCR; captions are
// often only a few pixels tall.
const upsample = 2

// ReadScaleLabel runs OCR on the area around bar and parses the first
// length it finds.
func ReadScaleLabel(img image.Image, bar geom.Segment, language string) (*ScaleLabel, error) {
	band := LabelBand(img.Bounds(), bar)
	if band.Dx() < 2 || band.Dy() < 2 {
		return nil, fmt.Errorf("scale bar %+v lies outside the image", bar)
	}

	cropped := imaging.Crop(img, band)
	enlarged := imaging.Resize(cropped, cropped.Bounds().Dx()*upsample, 0, imaging.Lanczos)
	gray := imaging.Grayscale(enlarged)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("failed to encode label band: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	label, ok := ParseScaleText(text)
	if !ok {
		return nil, fmt.Errorf("no scale length recognized in %q", strings.TrimSpace(text))
	}
	return &label, nil
}

// LabelBand returns the region searched for a caption: the bar's extent
// widened by half its length on each side, and a band above and below it
// tall enough for a line of text. The result is clipped to bounds.
func LabelBand(bounds image.Rectangle, bar geom.Segment) image.Rectangle {
	minX, maxX := bar.X1, bar.X2
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	length := int(bar.Length())
	midY := int(bar.MidY())

	padX := maxInt(length/2, 20)
	padY := maxInt(length/3, 30)

	band := image.Rect(minX-padX, midY-padY, maxX+padX, midY+padY)
	return band.Intersect(bounds)
}

var lengthPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(µm|μm|um|microns?|nm|mm)\b`)

// ParseScaleText extracts the first "number unit" length from OCR text.
// Recognized units are µm (also written μm, um or micron), nm and mm.
func ParseScaleText(text string) (ScaleLabel, bool) {
	m := lengthPattern.FindStringSubmatch(text)
	if m == nil {
		return ScaleLabel{}, false
	}

	value, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || value <= 0 {
		return ScaleLabel{}, false
	}

	unit := strings.ToLower(m[2])
	label := ScaleLabel{Text: strings.TrimSpace(text), Value: value}
	switch {
	case unit == "nm":
		label.Unit = "nm"
		label.ScaleUm = value / 1000
	case unit == "mm":
		label.Unit = "mm"
		label.ScaleUm = value * 1000
	default:
		label.Unit = "µm"
		label.ScaleUm = value
	}
	return label, true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
