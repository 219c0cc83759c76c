package registry

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camrelay/internal/camera"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
)

// EventPublisher receives camera lifecycle events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Options configures a Registry.
type Options struct {
	Source camera.Source
	Policy camera.Policy
	// NewEncoder builds the encoder for a worker. Nil uses a JPEG encoder
	// with the package defaults and the camera's overrides.
	NewEncoder func(cfg camera.Config) camera.Encoder
	Events     EventPublisher
	Logger     *slog.Logger
}

type entry struct {
	// mu serializes Start and Stop for one camera.
	mu     sync.Mutex
	worker atomic.Pointer[camera.Worker]
	// stopped is set once Stop released the worker and cleared by Start.
	stopped atomic.Bool
}

// Registry maps camera ids to their configuration and at most one worker.
// Operations on different cameras never wait for each other.
type Registry struct {
	source     camera.Source
	policy     camera.Policy
	newEncoder func(cfg camera.Config) camera.Encoder
	events     EventPublisher
	logger     *slog.Logger

	mu      sync.RWMutex
	configs map[string]camera.Config
	entries map[string]*entry
}

// New creates an empty registry.
func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("registry")
	}
	newEncoder := opts.NewEncoder
	if newEncoder == nil {
		newEncoder = func(cfg camera.Config) camera.Encoder {
			return camera.NewJPEGEncoder(cfg, camera.DefaultWidth, camera.DefaultHeight, camera.DefaultQuality)
		}
	}
	return &Registry{
		source:     opts.Source,
		policy:     opts.Policy,
		newEncoder: newEncoder,
		events:     opts.Events,
		logger:     logger,
		configs:    make(map[string]camera.Config),
		entries:    make(map[string]*entry),
	}
}

// Register adds or replaces a camera configuration. Only the id is checked
// here; the connection URI is validated by Start. A running worker keeps its
// old configuration until it is restarted.
func (r *Registry) Register(cfg camera.Config) error {
	if err := camera.ValidateID(cfg.ID); err != nil {
		return err
	}

	r.mu.Lock()
	old, replaced := r.configs[cfg.ID]
	r.configs[cfg.ID] = cfg
	if !replaced {
		r.entries[cfg.ID] = &entry{}
	}
	r.mu.Unlock()

	if replaced && old == cfg {
		return nil
	}
	r.logger.Info("Camera registered", "camera_id", cfg.ID, "uri", cfg.Redacted(), "replaced", replaced)
	r.publish(events.CameraRegisteredEvent{
		CameraID:  cfg.ID,
		Host:      cfg.Host(),
		Replaced:  replaced,
		Timestamp: timestamp(time.Now()),
	})
	return nil
}

// Config returns the registered configuration for id.
func (r *Registry) Config(id string) (camera.Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	return cfg, ok
}

// Configs returns all registered configurations sorted by id.
func (r *Registry) Configs() []camera.Config {
	r.mu.RLock()
	out := make([]camera.Config, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b camera.Config) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Start ensures a worker is running for id. It returns an UNKNOWN_CAMERA
// error for unregistered ids and an INVALID_CONFIG error for a malformed
// configuration. A running worker is left alone; a stopped or failed one is
// replaced with a fresh worker whose sequence starts over. Start returns
// once the worker exists; connecting happens in the background.
func (r *Registry) Start(id string) error {
	e := r.entry(id)
	if e == nil {
		return camera.NewUnknownCameraError(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Read under e.mu so a concurrent Register is observed by the next Start.
	cfg, _ := r.Config(id)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if w := e.worker.Load(); w != nil && !w.State().Terminal() {
		return nil
	}

	w := camera.NewWorker(camera.WorkerOptions{
		Config:        cfg,
		Source:        r.source,
		Encoder:       r.newEncoder(cfg),
		Policy:        r.policy,
		Logger:        logging.GetLogger("camera"),
		OnStateChange: r.onStateChange,
	})
	e.worker.Store(w)
	e.stopped.Store(false)
	w.Start()

	r.logger.Info("Camera started", "camera_id", id, "host", cfg.Host())
	return nil
}

// Stop tears down the worker for id, waits for it to exit and drops it
// together with its frame buffer. Stopping an unregistered, never started or
// already stopped camera is a no-op.
func (r *Registry) Stop(id string) error {
	e := r.entry(id)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	w := e.worker.Load()
	if w == nil {
		return nil
	}
	w.Stop()
	e.worker.CompareAndSwap(w, nil)
	e.stopped.Store(true)

	r.logger.Info("Camera stopped", "camera_id", id)
	r.publish(events.CameraStoppedEvent{CameraID: id, Timestamp: timestamp(time.Now())})
	return nil
}

// StopAll stops every worker concurrently and waits for all of them.
func (r *Registry) StopAll() {
	var wg sync.WaitGroup
	for _, id := range r.ids() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Stop(id)
		}()
	}
	wg.Wait()
}

// Status reports the state of id. Unregistered ids report Configured=false
// and state unknown; a camera released by Stop reports stopped.
func (r *Registry) Status(id string) camera.Status {
	r.mu.RLock()
	cfg, ok := r.configs[id]
	e := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return camera.Status{ID: id, State: camera.StateUnknown}
	}
	st := camera.StatusOf(cfg, e.worker.Load())
	if st.State == camera.StateUnknown && e.stopped.Load() {
		st.State = camera.StateStopped
	}
	return st
}

// StatusAll reports every registered camera sorted by id.
func (r *Registry) StatusAll() []camera.Status {
	ids := r.ids()
	out := make([]camera.Status, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.Status(id))
	}
	return out
}

// Buffer returns the frame buffer of id's current worker. ok is false when
// the camera has never been started or was stopped.
func (r *Registry) Buffer(id string) (buf *camera.FrameBuffer, ok bool) {
	e := r.entry(id)
	if e == nil {
		return nil, false
	}
	w := e.worker.Load()
	if w == nil {
		return nil, false
	}
	return w.Buffer(), true
}

func (r *Registry) entry(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

func (r *Registry) ids() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (r *Registry) onStateChange(c camera.StateChange) {
	ev := events.CameraStateChangedEvent{
		CameraID:  c.CameraID,
		OldState:  string(c.From),
		NewState:  string(c.To),
		Sequence:  c.Sequence,
		Timestamp: timestamp(c.At),
	}
	if c.Err != nil {
		ev.Error = c.Err.Error()
	}
	r.publish(ev)
}

func (r *Registry) publish(ev events.Event) {
	if r.events != nil {
		r.events.Publish(ev)
	}
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
