package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	viewersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "mjpeg",
		Name:      "viewers",
		Help:      "Currently attached MJPEG viewers",
	}, []string{"camera_id"})

	framesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mjpeg",
		Name:      "frames_sent_total",
		Help:      "Frames written to viewers, including repeats",
	}, []string{"camera_id", "repeat"})

	bytesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mjpeg",
		Name:      "bytes_sent_total",
		Help:      "Frame payload bytes written to viewers",
	}, []string{"camera_id"})
)

// ViewerAttached increments the viewer count and returns the new value.
func ViewerAttached(cameraID string) int {
	viewersActive.WithLabelValues(cameraID).Inc()
	var n int
	update(cameraID, func(m *CameraMetrics) {
		m.Viewers++
		n = m.Viewers
	})
	return n
}

// ViewerDetached decrements the viewer count and returns the new value.
func ViewerDetached(cameraID string) int {
	viewersActive.WithLabelValues(cameraID).Dec()
	var n int
	update(cameraID, func(m *CameraMetrics) {
		if m.Viewers > 0 {
			m.Viewers--
		}
		n = m.Viewers
	})
	return n
}

// RecordFrameSent counts one frame of n bytes written to a viewer.
func RecordFrameSent(cameraID string, n int, repeat bool) {
	label := "false"
	if repeat {
		label = "true"
	}
	framesSent.WithLabelValues(cameraID, label).Inc()
	bytesSent.WithLabelValues(cameraID).Add(float64(n))
	update(cameraID, func(m *CameraMetrics) { m.FramesSent++ })
}

// Viewers returns the cached viewer count of a camera.
func Viewers(cameraID string) int {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	if m, ok := cache[cameraID]; ok {
		return m.Viewers
	}
	return 0
}
