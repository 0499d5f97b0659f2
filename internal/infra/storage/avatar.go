package storage

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/disintegration/imaging"

	"github.com/jebauza/VetFlow/internal/core/port"
)

// AvatarNormalizer accepts jpg/png uploads, applies EXIF orientation and fits them within a square box.
type AvatarNormalizer struct {
	maxBytes  int64
	dimension int
}

// NewAvatarNormalizer builds a normalizer; non-positive values fall back to 2 MiB and 512px.
func NewAvatarNormalizer(maxBytes int64, dimension int) *AvatarNormalizer {
	if maxBytes <= 0 {
		maxBytes = 2048 * 1024
	}
	if dimension <= 0 {
		dimension = 512
	}
	return &AvatarNormalizer{maxBytes: maxBytes, dimension: dimension}
}

// Normalize returns the re-encoded image and its file extension.
func (n *AvatarNormalizer) Normalize(r io.Reader) ([]byte, string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, n.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read avatar: %w", err)
	}
	if int64(len(raw)) > n.maxBytes {
		return nil, "", port.ErrImageTooLarge
	}

	var format imaging.Format
	switch http.DetectContentType(raw) {
	case "image/jpeg":
		format = imaging.JPEG
	case "image/png":
		format = imaging.PNG
	default:
		return nil, "", port.ErrImageFormat
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", port.ErrImageFormat, err)
	}
	img = n.fit(img)

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, format, imaging.JPEGQuality(85)); err != nil {
		return nil, "", fmt.Errorf("encode avatar: %w", err)
	}

	ext := "png"
	if format == imaging.JPEG {
		ext = "jpg"
	}
	return out.Bytes(), ext, nil
}

func (n *AvatarNormalizer) fit(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= n.dimension && bounds.Dy() <= n.dimension {
		return img
	}
	return imaging.Fit(img, n.dimension, n.dimension, imaging.Lanczos)
}

var _ port.ImageNormalizer = (*AvatarNormalizer)(nil)
