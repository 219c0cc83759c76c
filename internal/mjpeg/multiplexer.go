package mjpeg

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/smazurov/camrelay/internal/camera"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/metrics"
)

// Frame rate bounds for viewers.
const (
	DefaultFPS = 25
	MinFPS     = 1
	MaxFPS     = 60
)

// Frame is one part of a viewer's stream.
type Frame struct {
	Data     []byte
	Sequence uint64
	// Repeat is set when no new frame arrived since the previous tick.
	Repeat bool
	// CapturedAt is when the frame was published.
	CapturedAt time.Time
}

// BufferLookup resolves a camera's current frame buffer. ok is false when
// the camera has no worker.
type BufferLookup func(id string) (buf *camera.FrameBuffer, ok bool)

// EventPublisher receives viewer events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Options configures a Multiplexer.
type Options struct {
	Lookup BufferLookup
	// Interval between frames; zero means 1/DefaultFPS.
	Interval time.Duration
	// EndOnStop ends a viewer's sequence when the camera has no worker or
	// its worker is stopped or failed. Otherwise the last frame keeps being
	// re-sent.
	EndOnStop bool
	Events    EventPublisher
	Logger    *slog.Logger
}

// Multiplexer paces frames from camera buffers to any number of viewers.
// Viewers never block the capture side or each other.
type Multiplexer struct {
	lookup    BufferLookup
	interval  time.Duration
	endOnStop bool
	events    EventPublisher
	logger    *slog.Logger
}

// New creates a multiplexer.
func New(opts Options) *Multiplexer {
	interval := opts.Interval
	if interval <= 0 {
		interval = IntervalForFPS(DefaultFPS)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("mjpeg")
	}
	return &Multiplexer{
		lookup:    opts.Lookup,
		interval:  interval,
		endOnStop: opts.EndOnStop,
		events:    opts.Events,
		logger:    logger,
	}
}

// Interval returns the default pacing interval.
func (m *Multiplexer) Interval() time.Duration { return m.interval }

// IntervalForFPS converts a frame rate, clamped to [MinFPS, MaxFPS], into a
// pacing interval.
func IntervalForFPS(fps int) time.Duration {
	fps = min(max(fps, MinFPS), MaxFPS)
	return time.Second / time.Duration(fps)
}

// Frames streams id's frames at the default interval.
func (m *Multiplexer) Frames(ctx context.Context, id string) iter.Seq[Frame] {
	return m.FramesEvery(ctx, id, m.interval)
}

// FramesEvery yields the camera's latest frame every interval, repeating the
// previous frame when nothing new was published. Nothing is yielded until a
// first frame exists. The buffer is looked up on every tick, so a viewer
// follows a restarted camera. The sequence ends when ctx is done, when the
// consumer stops ranging, or (with EndOnStop) when the camera stops.
func (m *Multiplexer) FramesEvery(ctx context.Context, id string, interval time.Duration) iter.Seq[Frame] {
	if interval <= 0 {
		interval = m.interval
	}
	return func(yield func(Frame) bool) {
		m.attach(id)
		defer m.detach(id)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var (
			lastBuf *camera.FrameBuffer
			lastSeq uint64
		)
		for {
			buf, ok := m.lookup(id)
			if !ok {
				if m.endOnStop {
					return
				}
				// Stopped cameras drop their buffer; keep showing the last frame.
				buf = lastBuf
			}
			if buf != nil {
				snap := buf.Load()
				if m.endOnStop && snap.State.Terminal() {
					m.logger.Debug("Camera no longer running, ending stream", "camera_id", id, "state", snap.State)
					return
				}
				if snap.Frame != nil {
					repeat := buf == lastBuf && snap.Sequence == lastSeq
					if !yield(Frame{Data: snap.Frame, Sequence: snap.Sequence, Repeat: repeat, CapturedAt: snap.UpdatedAt}) {
						return
					}
					metrics.RecordFrameSent(id, len(snap.Frame), repeat)
					lastBuf, lastSeq = buf, snap.Sequence
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

func (m *Multiplexer) attach(id string) {
	n := metrics.ViewerAttached(id)
	m.logger.Info("Viewer attached", "camera_id", id, "viewers", n)
	m.publish(id, "attached", n)
}

func (m *Multiplexer) detach(id string) {
	n := metrics.ViewerDetached(id)
	m.logger.Info("Viewer detached", "camera_id", id, "viewers", n)
	m.publish(id, "detached", n)
}

func (m *Multiplexer) publish(id, action string, viewers int) {
	if m.events == nil {
		return
	}
	m.events.Publish(events.ViewerChangedEvent{
		CameraID:  id,
		Action:    action,
		Viewers:   viewers,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Viewers returns the number of viewers attached to id.
func Viewers(id string) int {
	return metrics.Viewers(id)
}
