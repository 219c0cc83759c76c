package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource hands out handles produced by connectFn, in call order.
type fakeSource struct {
	mu        sync.Mutex
	connects  int
	connectFn func(n int) (Handle, error)
}

func (s *fakeSource) Connect(ctx context.Context, _ Config) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.connects++
	n := s.connects
	s.mu.Unlock()
	return s.connectFn(n)
}

func (s *fakeSource) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// fakeHandle answers reads with readFn; n is the 1-based read count.
type fakeHandle struct {
	readFn func(ctx context.Context, n int) (image.Image, error)
	reads  atomic.Int32
	closed atomic.Bool
	closeC chan struct{}
	once   sync.Once
}

func newFakeHandle(readFn func(ctx context.Context, n int) (image.Image, error)) *fakeHandle {
	return &fakeHandle{readFn: readFn, closeC: make(chan struct{})}
}

func (h *fakeHandle) ReadFrame(ctx context.Context) (image.Image, error) {
	n := int(h.reads.Add(1))
	return h.readFn(ctx, n)
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	h.once.Do(func() { close(h.closeC) })
	return nil
}

// frameEvery returns a read function delivering a frame every d.
func frameEvery(d time.Duration) func(ctx context.Context, n int) (image.Image, error) {
	return func(ctx context.Context, _ int) (image.Image, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
			return testImage(8, 8), nil
		}
	}
}

// blockUntilDone never delivers a frame and returns when ctx is done.
func blockUntilDone(ctx context.Context, _ int) (image.Image, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	return img
}

var errRefused = errors.New("connection refused")

// stateRecorder collects worker transitions.
type stateRecorder struct {
	mu      sync.Mutex
	changes []StateChange
}

func (r *stateRecorder) record(c StateChange) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *stateRecorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.To
	}
	return out
}

func (r *stateRecorder) find(to State) (StateChange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.changes {
		if c.To == to {
			return c, true
		}
	}
	return StateChange{}, false
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func testPolicy() Policy {
	return Policy{
		MaxRetries:       5,
		RetryDelay:       5 * time.Millisecond,
		MaxRetryDelay:    20 * time.Millisecond,
		ReadFailureLimit: 3,
		StaleAfter:       200 * time.Millisecond,
	}
}
