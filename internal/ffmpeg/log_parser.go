package ffmpeg

import "strings"

// ParseLogLevel splits an ffmpeg stderr line written with -loglevel level+X.
// Lines look like "[error] message" or "[rtsp @ 0x55d0] [warning] message";
// the level bracket is stripped and a component prefix is kept. Lines without
// a recognised level are reported as info.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}
	if first := line[1:end]; isLogLevel(first) {
		return first, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 && isLogLevel(rest[1:next]) {
			return rest[1:next], component + rest[next+2:]
		}
	}
	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
