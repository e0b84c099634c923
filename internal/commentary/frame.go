package commentary

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
)

// DefaultMaxFrameBytes bounds decoded frames when no limit is configured.
const DefaultMaxFrameBytes = 8 << 20

// DecodeFrame validates and decodes a frame request. maxBytes <= 0 selects
// DefaultMaxFrameBytes. Zero width or height is filled from the image header.
func DecodeFrame(req FrameRequest, maxBytes int) (Frame, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	payload := strings.TrimSpace(req.ImageData)
	if payload == "" {
		return Frame{}, ErrNoImageData
	}
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return Frame{}, fmt.Errorf("decode frame: malformed data url: %w", ErrUnsupportedImage)
		}
		if !strings.Contains(payload[:comma], ";base64") {
			return Frame{}, fmt.Errorf("decode frame: data url is not base64: %w", ErrUnsupportedImage)
		}
		payload = payload[comma+1:]
	}
	if payload == "" {
		return Frame{}, ErrNoImageData
	}
	// Reject before allocating: base64 expands by 4/3.
	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+3 {
		return Frame{}, fmt.Errorf("decode frame: %w (limit %d bytes)", ErrFrameTooLarge, maxBytes)
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w: %v", ErrUnsupportedImage, err)
	}
	if len(data) > maxBytes {
		return Frame{}, fmt.Errorf("decode frame: %w (limit %d bytes)", ErrFrameTooLarge, maxBytes)
	}
	return NewFrame(data, req.Width, req.Height)
}

// NewFrame wraps raw image bytes, sniffing the content type and dimensions.
func NewFrame(data []byte, width, height int) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrNoImageData
	}
	mime := http.DetectContentType(data)
	if mime != "image/jpeg" && mime != "image/png" {
		return Frame{}, fmt.Errorf("decode frame: %w: %s", ErrUnsupportedImage, mime)
	}
	frame := Frame{MIMEType: mime, Data: data, Width: width, Height: height}
	if frame.Width <= 0 || frame.Height <= 0 {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			frame.Width, frame.Height = cfg.Width, cfg.Height
		}
	}
	return frame, nil
}

func decodeBase64(payload string) ([]byte, error) {
	payload = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, payload)
	if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
}

// DataURL re-encodes the frame for vision APIs.
func (f Frame) DataURL() string {
	return "data:" + f.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}
