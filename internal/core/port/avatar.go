package port

import (
	"errors"
	"io"
)

var (
	// ErrImageTooLarge is returned when an upload exceeds the configured byte limit.
	ErrImageTooLarge = errors.New("image exceeds size limit")
	// ErrImageFormat is returned for uploads that are not a decodable jpg or png.
	ErrImageFormat = errors.New("image must be a jpg or png file")
)

// ImageNormalizer validates an uploaded image and re-encodes it for storage.
type ImageNormalizer interface {
	Normalize(r io.Reader) (data []byte, ext string, err error)
}
