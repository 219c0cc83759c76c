package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"slices"
	"sync"
	"testing"
	"time"
)

func newTestWorker(src Source, policy Policy, rec *stateRecorder) *Worker {
	opts := WorkerOptions{
		Config: Config{ID: "cam1", URI: "rtsp://10.0.0.1/stream"},
		Source: src,
		Policy: policy,
	}
	if rec != nil {
		opts.OnStateChange = rec.record
	}
	return NewWorker(opts)
}

func TestWorkerPublishesFrames(t *testing.T) {
	h := newFakeHandle(frameEvery(2 * time.Millisecond))
	src := &fakeSource{connectFn: func(int) (Handle, error) { return h, nil }}
	rec := &stateRecorder{}

	w := newTestWorker(src, testPolicy(), rec)
	w.Start()

	waitFor(t, 2*time.Second, "five frames", func() bool { return w.Buffer().Load().Sequence >= 5 })

	snap := w.Buffer().Load()
	if snap.State != StateStreaming {
		t.Errorf("state = %s, want streaming", snap.State)
	}
	if _, err := jpeg.Decode(bytes.NewReader(snap.Frame)); err != nil {
		t.Errorf("published frame is not a valid JPEG: %v", err)
	}

	w.Stop()

	if got := w.State(); got != StateStopped {
		t.Errorf("state after Stop = %s, want stopped", got)
	}
	if !h.closed.Load() {
		t.Error("handle not closed on Stop")
	}

	want := []State{StateConnecting, StateStreaming, StateStopped}
	if got := rec.states(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
	if first := rec.changes[0]; first.From != StateUnknown {
		t.Errorf("first transition from %s, want unknown", first.From)
	}
}

func TestWorkerFailsAfterRetryCeiling(t *testing.T) {
	src := &fakeSource{connectFn: func(int) (Handle, error) { return nil, errRefused }}
	rec := &stateRecorder{}

	w := newTestWorker(src, testPolicy(), rec)

	var mu sync.Mutex
	var delays []time.Duration
	w.wait = func(ctx context.Context, d time.Duration) bool {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err() == nil
	}

	w.Start()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not give up")
	}

	if got := src.Connects(); got != 5 {
		t.Errorf("connect attempts = %d, want 5", got)
	}

	want := []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond}
	mu.Lock()
	if !slices.Equal(delays, want) {
		t.Errorf("backoff delays = %v, want %v", delays, want)
	}
	mu.Unlock()

	snap := w.Buffer().Load()
	if snap.State != StateFailed {
		t.Fatalf("state = %s, want failed", snap.State)
	}
	if !errors.Is(snap.Err, ErrRetryExhausted) {
		t.Errorf("error = %v, want retry exhausted", snap.Err)
	}
	if !errors.Is(snap.Err, ErrConnect) || !errors.Is(snap.Err, errRefused) {
		t.Errorf("error chain should contain the connect failure: %v", snap.Err)
	}

	// Stopping a failed worker is allowed and terminal.
	w.Stop()
	if w.State() != StateStopped {
		t.Errorf("state after Stop = %s, want stopped", w.State())
	}
}

func TestWorkerReadFailureLimitTriggersReconnect(t *testing.T) {
	h1 := newFakeHandle(func(_ context.Context, n int) (image.Image, error) {
		if n <= 2 {
			return testImage(4, 4), nil
		}
		return nil, errors.New("rtsp: unexpected EOF")
	})
	h2 := newFakeHandle(frameEvery(2 * time.Millisecond))
	src := &fakeSource{connectFn: func(n int) (Handle, error) {
		if n == 1 {
			return h1, nil
		}
		return h2, nil
	}}
	rec := &stateRecorder{}

	w := newTestWorker(src, testPolicy(), rec)
	w.Start()
	defer w.Stop()

	waitFor(t, 2*time.Second, "reconnect to second handle", func() bool {
		return w.Buffer().Load().Sequence >= 5
	})

	if got := h1.reads.Load(); got != 5 {
		t.Errorf("reads on first handle = %d, want 5 (2 frames + 3 failures)", got)
	}
	if !h1.closed.Load() {
		t.Error("first handle not closed before reconnect")
	}

	rc, ok := rec.find(StateReconnecting)
	if !ok {
		t.Fatal("no reconnecting transition")
	}
	if !errors.Is(rc.Err, ErrRead) {
		t.Errorf("reconnect cause = %v, want read error", rc.Err)
	}
	if rc.Sequence != 2 {
		t.Errorf("sequence at reconnect = %d, want 2", rc.Sequence)
	}

	want := []State{StateConnecting, StateStreaming, StateReconnecting, StateStreaming}
	if got := rec.states(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestWorkerStaleSourceTriggersReconnect(t *testing.T) {
	h1 := newFakeHandle(func(ctx context.Context, n int) (image.Image, error) {
		if n == 1 {
			return testImage(4, 4), nil
		}
		return blockUntilDone(ctx, n)
	})
	h2 := newFakeHandle(frameEvery(2 * time.Millisecond))
	src := &fakeSource{connectFn: func(n int) (Handle, error) {
		if n == 1 {
			return h1, nil
		}
		return h2, nil
	}}
	rec := &stateRecorder{}

	policy := testPolicy()
	policy.StaleAfter = 80 * time.Millisecond

	w := newTestWorker(src, policy, rec)
	w.Start()
	defer w.Stop()

	waitFor(t, 2*time.Second, "reconnecting", func() bool {
		_, ok := rec.find(StateReconnecting)
		return ok
	})

	rc, _ := rec.find(StateReconnecting)
	if !errors.Is(rc.Err, ErrStaleSource) {
		t.Errorf("reconnect cause = %v, want stale source", rc.Err)
	}
	if got := h1.reads.Load(); got != 2 {
		t.Errorf("reads on stale handle = %d, want 2", got)
	}

	waitFor(t, 2*time.Second, "frames after reconnect", func() bool {
		return w.Buffer().Load().Sequence >= 4
	})
	if w.State() != StateStreaming {
		t.Errorf("state = %s, want streaming", w.State())
	}
}

func TestWorkerStaleWithoutAnyFrame(t *testing.T) {
	h := newFakeHandle(blockUntilDone)
	src := &fakeSource{connectFn: func(int) (Handle, error) { return h, nil }}
	rec := &stateRecorder{}

	policy := testPolicy()
	policy.StaleAfter = 30 * time.Millisecond

	w := newTestWorker(src, policy, rec)
	w.Start()
	defer w.Stop()

	waitFor(t, 2*time.Second, "stale reconnect", func() bool { return src.Connects() >= 2 })

	rc, ok := rec.find(StateReconnecting)
	if !ok || !errors.Is(rc.Err, ErrStaleSource) {
		t.Errorf("expected stale reconnect, got %+v", rc)
	}
	if w.Buffer().Load().Frame != nil {
		t.Error("no frame should have been published")
	}
}

func TestWorkerEncodeFailureCountsAsReadFailure(t *testing.T) {
	h := newFakeHandle(func(context.Context, int) (image.Image, error) {
		return image.NewRGBA(image.Rectangle{}), nil
	})
	src := &fakeSource{connectFn: func(int) (Handle, error) { return h, nil }}
	rec := &stateRecorder{}

	w := newTestWorker(src, testPolicy(), rec)
	w.Start()
	defer w.Stop()

	waitFor(t, 2*time.Second, "reconnecting", func() bool {
		_, ok := rec.find(StateReconnecting)
		return ok
	})
	rc, _ := rec.find(StateReconnecting)
	if !errors.Is(rc.Err, ErrRead) {
		t.Errorf("cause = %v, want read error", rc.Err)
	}
}

func TestWorkerStopInterruptsBlockingRead(t *testing.T) {
	h := newFakeHandle(nil)
	h.readFn = func(context.Context, int) (image.Image, error) {
		// Ignores ctx; only Close unblocks it.
		<-h.closeC
		return nil, errors.New("closed")
	}
	src := &fakeSource{connectFn: func(int) (Handle, error) { return h, nil }}

	policy := testPolicy()
	policy.StaleAfter = time.Minute

	w := newTestWorker(src, policy, nil)
	w.Start()
	waitFor(t, time.Second, "first read", func() bool { return h.reads.Load() >= 1 })

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the blocking read")
	}
	if w.State() != StateStopped {
		t.Errorf("state = %s, want stopped", w.State())
	}
}

func TestWorkerStopDuringBackoff(t *testing.T) {
	src := &fakeSource{connectFn: func(int) (Handle, error) { return nil, errRefused }}
	rec := &stateRecorder{}

	policy := testPolicy()
	policy.RetryDelay = time.Hour
	policy.MaxRetryDelay = time.Hour

	w := newTestWorker(src, policy, rec)
	w.Start()
	waitFor(t, time.Second, "first attempt", func() bool { return src.Connects() >= 1 })

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on backoff wait")
	}

	if _, failed := rec.find(StateFailed); failed {
		t.Error("a stopped worker must not report failed")
	}
	if w.State() != StateStopped {
		t.Errorf("state = %s, want stopped", w.State())
	}
}

func TestWorkerStopBeforeStart(t *testing.T) {
	src := &fakeSource{connectFn: func(int) (Handle, error) { return nil, errRefused }}
	w := newTestWorker(src, testPolicy(), nil)

	w.Stop()
	w.Start()

	select {
	case <-w.Done():
	default:
		t.Fatal("Done should be closed")
	}
	if src.Connects() != 0 {
		t.Error("Start after Stop must not connect")
	}
	if w.State() != StateStopped {
		t.Errorf("state = %s, want stopped", w.State())
	}
}

func TestWorkerSequenceMonotonicForReaders(t *testing.T) {
	h := newFakeHandle(frameEvery(time.Millisecond))
	src := &fakeSource{connectFn: func(int) (Handle, error) { return h, nil }}

	w := newTestWorker(src, testPolicy(), nil)
	w.Start()
	defer w.Stop()

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			deadline := time.Now().Add(100 * time.Millisecond)
			for time.Now().Before(deadline) {
				s := w.Buffer().Load()
				if s.Sequence < last {
					errs <- "sequence went backwards"
					return
				}
				if s.Sequence > 0 && len(s.Frame) == 0 {
					errs <- "published snapshot without frame"
					return
				}
				last = s.Sequence
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}
