package source

import "bytes"

// MaxFrameSize bounds a single JPEG read from the pipe.
const MaxFrameSize = 8 << 20

var (
	markerSOI = []byte{0xFF, 0xD8}
	markerEOI = []byte{0xFF, 0xD9}
)

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images delimited by
// SOI and EOI markers. Bytes outside an image are discarded and a truncated
// image at EOF is dropped.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, markerSOI)
	if start < 0 {
		if atEOF || len(data) == 0 || data[len(data)-1] != 0xFF {
			return len(data), nil, nil
		}
		// The SOI marker may straddle two reads.
		return len(data) - 1, nil, nil
	}

	end := bytes.Index(data[start+len(markerSOI):], markerEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + len(markerSOI) + end + len(markerEOI)
	return stop, data[start:stop], nil
}
