package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodedImage contains a PNG-encoded image ready for transport.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Thumbnail scales img down to fit within a size×size box, preserving the
// aspect ratio, and encodes the result as PNG. Images already smaller than
// the box are encoded at their original size.
func Thumbnail(img image.Image, size int) (*EncodedImage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size: %d", size)
	}

	bounds := img.Bounds()
	var thumb image.Image = img
	if bounds.Dx() > size || bounds.Dy() > size {
		thumb = imaging.Fit(img, size, size, imaging.Lanczos)
	}
	return EncodePNG(thumb)
}

// EncodePNG encodes img as a base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
