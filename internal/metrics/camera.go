// Package metrics provides Prometheus metrics for camera capture and MJPEG
// viewers, plus a small in-process cache of the same values for the API and
// the SSE exporter.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camrelay"

var (
	framesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "frames_published_total",
		Help:      "Frames encoded and published to the frame buffer",
	}, []string{"camera_id"})

	readErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "read_errors_total",
		Help:      "Failed frame reads",
	}, []string{"camera_id"})

	connectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "connect_failures_total",
		Help:      "Failed connection attempts",
	}, []string{"camera_id"})

	reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "reconnects_total",
		Help:      "Transitions into the reconnecting state",
	}, []string{"camera_id", "reason"})

	cameraState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "state",
		Help:      "1 for the camera's current state, 0 otherwise",
	}, []string{"camera_id", "state"})

	lastFrameTime = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "last_frame_timestamp_seconds",
		Help:      "Unix time of the last published frame",
	}, []string{"camera_id"})

	frameBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "frame_bytes",
		Help:      "Size of published JPEG frames",
		Buckets:   prometheus.ExponentialBuckets(8<<10, 2, 8),
	}, []string{"camera_id"})

	cacheMu sync.RWMutex
	cache   = make(map[string]*CameraMetrics)
)

// CameraMetrics holds the current counter values for one camera.
type CameraMetrics struct {
	FramesPublished uint64
	ReadErrors      uint64
	ConnectFailures uint64
	Reconnects      uint64
	Viewers         int
	FramesSent      uint64
	LastFrameAt     time.Time
}

// RecordFrame counts one published frame of n bytes.
func RecordFrame(cameraID string, n int, at time.Time) {
	framesPublished.WithLabelValues(cameraID).Inc()
	frameBytes.WithLabelValues(cameraID).Observe(float64(n))
	lastFrameTime.WithLabelValues(cameraID).Set(float64(at.UnixNano()) / 1e9)
	update(cameraID, func(m *CameraMetrics) {
		m.FramesPublished++
		m.LastFrameAt = at
	})
}

// RecordReadError counts one failed read.
func RecordReadError(cameraID string) {
	readErrors.WithLabelValues(cameraID).Inc()
	update(cameraID, func(m *CameraMetrics) { m.ReadErrors++ })
}

// RecordConnectFailure counts one failed connection attempt.
func RecordConnectFailure(cameraID string) {
	connectFailures.WithLabelValues(cameraID).Inc()
	update(cameraID, func(m *CameraMetrics) { m.ConnectFailures++ })
}

// RecordReconnect counts a transition to reconnecting with the given reason
// (an error code).
func RecordReconnect(cameraID, reason string) {
	reconnects.WithLabelValues(cameraID, reason).Inc()
	update(cameraID, func(m *CameraMetrics) { m.Reconnects++ })
}

// SetState marks state as current for the camera among the given states.
func SetState(cameraID, state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		cameraState.WithLabelValues(cameraID, s).Set(v)
	}
}

// Get returns a copy of the camera's cached metrics, or nil.
func Get(cameraID string) *CameraMetrics {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	if m, ok := cache[cameraID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// All returns copies of every camera's cached metrics.
func All() map[string]CameraMetrics {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	out := make(map[string]CameraMetrics, len(cache))
	for id, m := range cache {
		out[id] = *m
	}
	return out
}

// Delete drops every series and cache entry of a camera.
func Delete(cameraID string) {
	labels := prometheus.Labels{"camera_id": cameraID}
	framesPublished.DeletePartialMatch(labels)
	readErrors.DeletePartialMatch(labels)
	connectFailures.DeletePartialMatch(labels)
	reconnects.DeletePartialMatch(labels)
	cameraState.DeletePartialMatch(labels)
	lastFrameTime.DeletePartialMatch(labels)
	frameBytes.DeletePartialMatch(labels)
	viewersActive.DeletePartialMatch(labels)
	framesSent.DeletePartialMatch(labels)
	bytesSent.DeletePartialMatch(labels)

	cacheMu.Lock()
	delete(cache, cameraID)
	cacheMu.Unlock()
}

func update(cameraID string, fn func(*CameraMetrics)) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	m, ok := cache[cameraID]
	if !ok {
		m = &CameraMetrics{}
		cache[cameraID] = m
	}
	fn(m)
}
