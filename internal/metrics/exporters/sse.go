package exporters

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes per-camera counters on the event bus,
// where the SSE endpoint picks them up.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher, interval time.Duration) *SSEExporter {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &SSEExporter{
		eventBus: eventBus,
		interval: interval,
		now:      time.Now,
	}
}

// Start begins the export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the exporter and waits for the loop to exit.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publish()
		}
	}
}

func (s *SSEExporter) publish() {
	all := metrics.All()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := s.now()
	for _, id := range ids {
		m := all[id]
		age := int64(-1)
		if !m.LastFrameAt.IsZero() {
			age = now.Sub(m.LastFrameAt).Milliseconds()
		}
		s.eventBus.Publish(events.CameraMetricsEvent{
			CameraID:        id,
			FramesPublished: m.FramesPublished,
			FramesSent:      m.FramesSent,
			ReadErrors:      m.ReadErrors,
			Reconnects:      m.Reconnects,
			Viewers:         m.Viewers,
			LastFrameAgeMs:  age,
		})
	}
}
