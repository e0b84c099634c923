package commentary

import "errors"

var (
	// ErrNoImageData is returned when a frame request carries no image.
	ErrNoImageData = errors.New("no image data provided")
	// ErrUnsupportedImage is returned for frames that are not JPEG or PNG.
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrFrameTooLarge is returned when a decoded frame exceeds the byte limit.
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
)
