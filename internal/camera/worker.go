package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/metrics"
)

// Source opens pull connections to cameras. Connect must honor ctx and
// return a *Error with CodeConnect (or any error, which is wrapped) on
// failure. It never retries.
type Source interface {
	Connect(ctx context.Context, cfg Config) (Handle, error)
}

// Handle is one open camera connection. ReadFrame must return within a
// bounded time, and as soon as ctx is done. Close releases the connection
// unconditionally, may be called concurrently with ReadFrame and more than
// once.
type Handle interface {
	ReadFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// StateChange describes one worker transition.
type StateChange struct {
	CameraID string
	From     State
	To       State
	Err      error
	Sequence uint64
	At       time.Time
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	Config        Config
	Source        Source
	Encoder       Encoder
	Policy        Policy
	Logger        *slog.Logger
	OnStateChange func(StateChange)
}

// Worker owns the capture loop of one camera: it connects through its
// Source, publishes encoded frames into its FrameBuffer and reconnects with
// backoff when the connection fails or goes stale. A Worker runs once;
// after Stop or failure a new Worker must be created.
type Worker struct {
	cfg      Config
	source   Source
	encoder  Encoder
	policy   Policy
	logger   *slog.Logger
	onChange func(StateChange)
	buffer   *FrameBuffer

	// wait sleeps for d or until ctx is done; replaced in tests.
	wait func(ctx context.Context, d time.Duration) bool

	mu        sync.Mutex
	cancel    context.CancelFunc
	handle    Handle
	startedAt time.Time
	stopped   bool
	done      chan struct{}
	stopOnce  sync.Once
}

// NewWorker creates a worker in the connecting state. Call Start to run it.
func NewWorker(opts WorkerOptions) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("camera")
	}
	enc := opts.Encoder
	if enc == nil {
		enc = NewJPEGEncoder(opts.Config, DefaultWidth, DefaultHeight, DefaultQuality)
	}
	return &Worker{
		cfg:      opts.Config,
		source:   opts.Source,
		encoder:  enc,
		policy:   opts.Policy.withDefaults(),
		logger:   logger.With("camera_id", opts.Config.ID),
		onChange: opts.OnStateChange,
		buffer:   NewFrameBuffer(),
		wait:     sleepCtx,
		done:     make(chan struct{}),
	}
}

// Start launches the capture loop. Calling it more than once has no effect.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.cancel != nil || w.stopped {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.startedAt = time.Now()
	w.mu.Unlock()

	w.notify(StateUnknown, StateConnecting, nil)
	go w.run(ctx)
}

// Stop cancels the capture loop, closes the open connection, waits for the
// loop to exit and moves the worker to stopped. Idempotent.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		cancel := w.cancel
		handle := w.handle
		w.mu.Unlock()

		if cancel == nil {
			close(w.done)
		} else {
			cancel()
			if handle != nil {
				_ = handle.Close()
			}
			<-w.done
		}
		w.transition(StateStopped, nil)
		w.logger.Info("Camera worker stopped")
	})
}

// Done is closed when the capture loop has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// State returns the current state.
func (w *Worker) State() State { return w.buffer.Load().State }

// Buffer returns the worker's frame buffer.
func (w *Worker) Buffer() *FrameBuffer { return w.buffer }

// Config returns the configuration the worker was created with.
func (w *Worker) Config() Config { return w.cfg }

// StartedAt returns when Start was called.
func (w *Worker) StartedAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.startedAt
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	for {
		handle, err := w.connect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("Camera failed, giving up", "error", err)
				w.transition(StateFailed, err)
			}
			return
		}

		w.setHandle(handle)
		w.logger.Info("Camera connected", "uri", w.cfg.Redacted())
		w.transition(StateStreaming, nil)

		err = w.capture(ctx, handle)

		w.setHandle(nil)
		_ = handle.Close()
		if ctx.Err() != nil {
			return
		}

		reason := CodeRead
		var ce *Error
		if errors.As(err, &ce) {
			reason = ce.Code
		}
		metrics.RecordReconnect(w.cfg.ID, reason)
		w.logger.Warn("Camera connection lost, reconnecting", "reason", reason, "error", err)
		w.transition(StateReconnecting, err)
	}
}

// connect tries up to MaxRetries times with exponential backoff between
// attempts.
func (w *Worker) connect(ctx context.Context) (Handle, error) {
	var lastErr error
	for attempt := 1; attempt <= w.policy.MaxRetries; attempt++ {
		handle, err := w.source.Connect(ctx, w.cfg)
		if err == nil {
			return handle, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrConnect) {
			err = NewConnectError(w.cfg.ID, err)
		}
		lastErr = err
		metrics.RecordConnectFailure(w.cfg.ID)

		if attempt == w.policy.MaxRetries {
			break
		}
		delay := w.policy.Backoff(attempt)
		w.logger.Warn("Connect failed, retrying",
			"attempt", attempt,
			"max_retries", w.policy.MaxRetries,
			"retry_in", delay,
			"error", err)
		if !w.wait(ctx, delay) {
			return nil, ctx.Err()
		}
	}

	return nil, &Error{
		Code:     CodeRetryExhausted,
		CameraID: w.cfg.ID,
		Message:  fmt.Sprintf("gave up after %d connect attempts", w.policy.MaxRetries),
		Cause:    lastErr,
	}
}

// capture reads and publishes frames until the connection fails, goes
// stale or ctx is cancelled. The returned error explains why it stopped.
func (w *Worker) capture(ctx context.Context, h Handle) error {
	streamingSince := time.Now()
	failures := 0

	for {
		last := w.buffer.Load().UpdatedAt
		if last.Before(streamingSince) {
			last = streamingSince
		}
		deadline := last.Add(w.policy.StaleAfter)
		if !time.Now().Before(deadline) {
			return w.staleError(last, nil)
		}

		readCtx, cancel := context.WithDeadline(ctx, deadline)
		img, err := h.ReadFrame(readCtx)
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil {
			var data []byte
			data, err = w.encoder.Encode(img)
			if err == nil {
				seq := w.buffer.Publish(data)
				metrics.RecordFrame(w.cfg.ID, len(data), time.Now())
				if failures > 0 {
					w.logger.Debug("Frame read recovered", "after_failures", failures, "sequence", seq)
				}
				failures = 0
				continue
			}
			err = fmt.Errorf("encode frame: %w", err)
		}

		if !time.Now().Before(deadline) {
			return w.staleError(last, err)
		}

		failures++
		metrics.RecordReadError(w.cfg.ID)
		w.logger.Debug("Frame read failed", "consecutive", failures, "error", err)
		if failures >= w.policy.ReadFailureLimit {
			if !errors.Is(err, ErrRead) {
				err = NewReadError(w.cfg.ID, err)
			}
			return fmt.Errorf("%d consecutive read failures: %w", failures, err)
		}
	}
}

func (w *Worker) staleError(last time.Time, cause error) error {
	return &Error{
		Code:     CodeStaleSource,
		CameraID: w.cfg.ID,
		Message:  fmt.Sprintf("no frame for %s", time.Since(last).Round(time.Millisecond)),
		Cause:    cause,
	}
}

func (w *Worker) setHandle(h Handle) {
	w.mu.Lock()
	w.handle = h
	w.mu.Unlock()
}

func (w *Worker) transition(to State, err error) {
	prev := w.buffer.Load()
	if prev.State == to && err == nil {
		return
	}
	w.buffer.SetState(to, err)
	w.notify(prev.State, to, err)
}

func (w *Worker) notify(from, to State, err error) {
	metrics.SetState(w.cfg.ID, string(to), stateNames)

	w.logger.Debug("Camera state changed", "from", from, "to", to)
	if w.onChange != nil {
		w.onChange(StateChange{
			CameraID: w.cfg.ID,
			From:     from,
			To:       to,
			Err:      err,
			Sequence: w.buffer.Load().Sequence,
			At:       time.Now(),
		})
	}
}

var stateNames = func() []string {
	names := make([]string, len(AllStates))
	for i, s := range AllStates {
		names[i] = string(s)
	}
	return names
}()

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
