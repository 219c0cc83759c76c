package ffmpeg

import (
	"strconv"
	"time"
)

// Base returns the leading arguments shared by every invocation.
// Level-prefixed logging lets ParseLogLevel classify stderr lines.
func Base() []string {
	return []string{"-hide_banner", "-nostdin", "-loglevel", "level+warning"}
}

// BuildArgs builds the arguments that pull p.InputURL and write an MJPEG
// elementary stream to stdout. The URL is a single argument and is never
// shell-split, so credentials with special characters survive intact.
func BuildArgs(p *Params) []string {
	args := Base()

	switch p.Scheme {
	case "rtsp", "rtsps":
		args = append(args, "-rtsp_transport", "tcp")
		if p.Timeout > 0 {
			args = append(args, "-timeout", micros(p.Timeout))
		}
	case "http", "https":
		args = append(args, "-reconnect", "0")
		if p.Timeout > 0 {
			args = append(args, "-rw_timeout", micros(p.Timeout))
		}
	case "file":
		if p.Realtime {
			args = append(args, "-re")
		}
	}

	args = append(args, inputArgs(p.Options)...)
	args = append(args, "-i", p.InputURL)

	// Video only
	args = append(args, "-an", "-sn", "-dn")

	if p.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(p.FPS))
	}

	q := p.Quality
	if q < 2 || q > 31 {
		q = 2
	}
	args = append(args,
		"-c:v", "mjpeg",
		"-q:v", strconv.Itoa(q),
		"-f", "image2pipe",
		"-",
	)
	return args
}

func micros(d time.Duration) string {
	return strconv.FormatInt(d.Microseconds(), 10)
}
