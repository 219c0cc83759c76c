// Package mjpeg fans camera frames out to HTTP viewers as
// multipart/x-mixed-replace streams.
//
// A [Multiplexer] turns a camera's frame buffer into a paced iter.Seq of
// frames, one independent sequence per viewer. A [Writer] puts each frame on
// the wire as one multipart part.
package mjpeg
