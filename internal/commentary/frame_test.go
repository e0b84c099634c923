package commentary_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"onthefly/internal/commentary"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, G: 30, B: 30, A: 255})
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeFrameDataURL(t *testing.T) {
	raw := jpegBytes(t, 32, 18)
	req := commentary.FrameRequest{
		ImageData: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw),
		Width:     1280,
		Height:    720,
	}
	frame, err := commentary.DecodeFrame(req, 0)
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	if frame.MIMEType != "image/jpeg" {
		t.Fatalf("unexpected mime %q", frame.MIMEType)
	}
	if !bytes.Equal(frame.Data, raw) {
		t.Fatal("decoded bytes differ from input")
	}
	if frame.Width != 1280 || frame.Height != 720 {
		t.Fatalf("expected client dimensions to be kept, got %dx%d", frame.Width, frame.Height)
	}
	if !strings.HasPrefix(frame.DataURL(), "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data url prefix %q", frame.DataURL()[:30])
	}
}

func TestDecodeFrameBarePNGReadsDimensions(t *testing.T) {
	req := commentary.FrameRequest{ImageData: base64.StdEncoding.EncodeToString(pngBytes(t, 64, 36))}
	frame, err := commentary.DecodeFrame(req, 0)
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	if frame.MIMEType != "image/png" {
		t.Fatalf("unexpected mime %q", frame.MIMEType)
	}
	if frame.Width != 64 || frame.Height != 36 {
		t.Fatalf("expected dimensions from header, got %dx%d", frame.Width, frame.Height)
	}
}

func TestDecodeFrameRejectsBadInput(t *testing.T) {
	gif := base64.StdEncoding.EncodeToString([]byte("GIF89a\x01\x00\x01\x00\x00\x00\x00"))
	cases := []struct {
		name string
		data string
		max  int
		want error
	}{
		{"empty", "", 0, commentary.ErrNoImageData},
		{"whitespace", "   ", 0, commentary.ErrNoImageData},
		{"empty data url", "data:image/jpeg;base64,", 0, commentary.ErrNoImageData},
		{"not base64", "data:image/jpeg;base64,%%%%", 0, commentary.ErrUnsupportedImage},
		{"plain data url", "data:text/plain,hello", 0, commentary.ErrUnsupportedImage},
		{"gif", gif, 0, commentary.ErrUnsupportedImage},
		{"too large", base64.StdEncoding.EncodeToString(jpegBytes(t, 64, 64)), 100, commentary.ErrFrameTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := commentary.DecodeFrame(commentary.FrameRequest{ImageData: tc.data}, tc.max)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewFrameRejectsEmpty(t *testing.T) {
	if _, err := commentary.NewFrame(nil, 0, 0); !errors.Is(err, commentary.ErrNoImageData) {
		t.Fatalf("expected ErrNoImageData, got %v", err)
	}
}
