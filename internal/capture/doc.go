// Package capture pulls frames out of a video file or live stream with ffmpeg
// and feeds them to the commentary generator on a fixed interval.
//
// Key pieces:
//   - Inspect: ffprobe metadata (duration and dimensions)
//   - Grabber: one JPEG at an offset, or the current frame of a live source
//   - Extract: every Nth second of a file streamed through a single ffmpeg
//   - Loop: the interval timer that drives Grabber and the generator
package capture
