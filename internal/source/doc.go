// Package source opens camera connections for the capture workers.
//
// [FFmpeg] optionally probes RTSP cameras with an OPTIONS/DESCRIBE handshake,
// then runs ffmpeg to pull the stream over TCP and transcode it to an MJPEG
// elementary stream on stdout. The pipe is split into JPEG images on their
// SOI/EOI markers and only the newest undelivered image is kept. Retry and
// staleness policy live in the worker, not here.
package source
