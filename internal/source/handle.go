package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/camrelay/internal/camera"
)

// stopper is the part of *process.Process a pipe handle needs.
type stopper interface {
	Stop() int
	Tail() []string
	Done() <-chan struct{}
}

// pipeHandle reads JPEG images from a byte stream. A reader goroutine splits
// the stream and keeps only the newest undelivered image in a one-slot
// mailbox, so a slow consumer never backs up the producer.
type pipeHandle struct {
	id          string
	proc        stopper
	readTimeout time.Duration
	logger      *slog.Logger

	frames chan []byte
	done   chan struct{}
	err    error // valid after done is closed

	closeOnce sync.Once
	dropped   uint64
}

func newPipeHandle(id string, r io.Reader, proc stopper, readTimeout time.Duration, logger *slog.Logger) *pipeHandle {
	h := &pipeHandle{
		id:          id,
		proc:        proc,
		readTimeout: readTimeout,
		logger:      logger,
		frames:      make(chan []byte, 1),
		done:        make(chan struct{}),
	}
	go h.readLoop(r)
	return h
}

func (h *pipeHandle) readLoop(r io.Reader) {
	defer close(h.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256<<10), MaxFrameSize)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		frame := bytes.Clone(scanner.Bytes())
		select {
		case h.frames <- frame:
			continue
		default:
		}
		// Replace the undelivered frame with the newer one.
		select {
		case <-h.frames:
			h.dropped++
		default:
		}
		select {
		case h.frames <- frame:
		default:
		}
	}

	h.err = scanner.Err()
	if h.err == nil || errors.Is(h.err, os.ErrClosed) {
		h.err = io.EOF
	}
}

// waitFirstFrame blocks until a frame is available without consuming it.
func (h *pipeHandle) waitFirstFrame(ctx context.Context) error {
	select {
	case f := <-h.frames:
		select {
		case h.frames <- f:
		default:
		}
		return nil
	case <-h.done:
		return h.exitError()
	case <-ctx.Done():
		return fmt.Errorf("no frame before connect timeout: %w", ctx.Err())
	}
}

// ReadFrame returns the newest frame, waiting at most the read timeout.
func (h *pipeHandle) ReadFrame(ctx context.Context) (image.Image, error) {
	var timeout <-chan time.Time
	if h.readTimeout > 0 {
		t := time.NewTimer(h.readTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case f := <-h.frames:
		return h.decode(f)
	case <-h.done:
		select {
		case f := <-h.frames:
			return h.decode(f)
		default:
		}
		return nil, camera.NewReadError(h.id, h.exitError())
	case <-ctx.Done():
		return nil, camera.NewReadError(h.id, ctx.Err())
	case <-timeout:
		return nil, camera.NewReadError(h.id, fmt.Errorf("no frame within %v: %w", h.readTimeout, os.ErrDeadlineExceeded))
	}
}

func (h *pipeHandle) decode(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, camera.NewReadError(h.id, fmt.Errorf("decode jpeg (%d bytes): %w", len(data), err))
	}
	return img, nil
}

// Close stops the producer and waits for the reader goroutine.
func (h *pipeHandle) Close() error {
	h.closeOnce.Do(func() {
		code := h.proc.Stop()
		<-h.done
		select {
		case <-h.frames:
		default:
		}
		h.logger.Debug("Source closed", "camera_id", h.id, "exit_code", code, "dropped_frames", h.dropped)
	})
	return nil
}

func (h *pipeHandle) exitError() error {
	// Stderr is drained once the process is reaped.
	select {
	case <-h.proc.Done():
	case <-time.After(time.Second):
	}
	if tail := h.proc.Tail(); len(tail) > 0 {
		return fmt.Errorf("stream ended: %w: %s", h.err, strings.TrimSpace(tail[len(tail)-1]))
	}
	return fmt.Errorf("stream ended: %w", h.err)
}
