package camera

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is an immutable view of a camera's latest frame and health. Frame
// is nil until the first publish; once set it is always a complete JPEG that
// nobody mutates.
type Snapshot struct {
	Frame     []byte
	Sequence  uint64
	UpdatedAt time.Time
	State     State
	Err       error
}

// Age is the time since the last publish, or zero when nothing was published.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s.UpdatedAt.IsZero() {
		return 0
	}
	return now.Sub(s.UpdatedAt)
}

// FrameBuffer is a single-slot latest-frame cache. One writer (the worker)
// replaces the snapshot pointer; any number of readers Load it without
// locking.
type FrameBuffer struct {
	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex
	now     func() time.Time
}

// NewFrameBuffer returns an empty buffer in the connecting state.
func NewFrameBuffer() *FrameBuffer {
	b := &FrameBuffer{now: time.Now}
	b.current.Store(&Snapshot{State: StateConnecting})
	return b
}

// Load returns the current snapshot. The result must not be modified.
func (b *FrameBuffer) Load() *Snapshot {
	return b.current.Load()
}

// Publish stores frame as the latest one and advances the sequence. The
// caller hands over ownership of frame.
func (b *FrameBuffer) Publish(frame []byte) uint64 {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	prev := b.current.Load()
	next := &Snapshot{
		Frame:     frame,
		Sequence:  prev.Sequence + 1,
		UpdatedAt: b.now(),
		State:     prev.State,
	}
	b.current.Store(next)
	return next.Sequence
}

// SetState records a state change, keeping the last frame and sequence.
func (b *FrameBuffer) SetState(state State, err error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	prev := b.current.Load()
	next := *prev
	next.State = state
	next.Err = err
	b.current.Store(&next)
}
