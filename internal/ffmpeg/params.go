package ffmpeg

import "time"

// Params describes a pull of one camera into an MJPEG pipe.
type Params struct {
	InputURL string
	Scheme   string // rtsp, rtsps, http, https, file

	// Timeout aborts stalled network I/O inside ffmpeg (0 = ffmpeg default).
	Timeout time.Duration
	// FPS limits the output frame rate (0 = source rate).
	FPS int
	// Quality is the mjpeg qscale, 2 (best) to 31.
	Quality int
	// Realtime reads file inputs at their native rate.
	Realtime bool

	Options []OptionType
}
