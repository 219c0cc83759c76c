package mjpeg

import (
	"io"
	"net/http"
	"strconv"
)

// Boundary separates parts of the multipart stream.
const Boundary = "frame"

// ContentType is the response content type of an MJPEG stream.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// Writer frames JPEG images as parts of a multipart/x-mixed-replace body.
type Writer struct {
	w   io.Writer
	buf []byte
}

// NewWriter wraps w. If w can flush (http.Flusher or Flush() error), every
// frame is flushed after it is written.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one part:
//
//	--frame\r\n
//	Content-Type: image/jpeg\r\n
//	Content-Length: N\r\n
//	\r\n
//	<jpeg>\r\n
func (w *Writer) WriteFrame(jpeg []byte) error {
	b := w.buf[:0]
	b = append(b, "--"+Boundary+"\r\nContent-Type: image/jpeg\r\nContent-Length: "...)
	b = strconv.AppendInt(b, int64(len(jpeg)), 10)
	b = append(b, "\r\n\r\n"...)
	w.buf = b

	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if _, err := w.w.Write(jpeg); err != nil {
		return err
	}
	if _, err := io.WriteString(w.w, "\r\n"); err != nil {
		return err
	}
	return w.flush()
}

func (w *Writer) flush() error {
	switch f := w.w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case http.Flusher:
		f.Flush()
	}
	return nil
}
