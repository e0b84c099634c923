package capture

import (
	"bufio"
	"bytes"
	"testing"
)

func TestSplitJPEG(t *testing.T) {
	first := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	second := []byte{0xFF, 0xD8, 0x03, 0xFF, 0xD9}
	stream := append([]byte{0x00, 0x42}, first...)
	stream = append(stream, second...)
	stream = append(stream, 0xFF, 0xD8, 0x09) // truncated trailing image

	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Buffer(make([]byte, 4), 1024)
	scanner.Split(SplitJPEG)

	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], first) || !bytes.Equal(frames[1], second) {
		t.Fatalf("unexpected frames %x", frames)
	}
}

func TestSplitJPEGEmpty(t *testing.T) {
	advance, token, err := SplitJPEG(nil, true)
	if advance != 0 || token != nil || err != nil {
		t.Fatalf("expected no-op on empty EOF, got %d %v %v", advance, token, err)
	}
}
