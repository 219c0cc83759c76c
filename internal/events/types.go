package events

// Event type constants for kelindar/event.
const (
	TypeCameraStateChanged uint32 = iota + 1
	TypeCameraRegistered
	TypeCameraStopped
	TypeViewerChanged
	TypeCameraMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CameraStateChangedEvent is published on every worker state transition.
type CameraStateChangedEvent struct {
	CameraID  string `json:"camera_id" example:"front" doc:"Camera identifier"`
	OldState  string `json:"old_state" example:"connecting" doc:"Previous state"`
	NewState  string `json:"new_state" example:"streaming" doc:"Current state"`
	Error     string `json:"error,omitempty" example:"camera front: read failed: EOF" doc:"Error that caused the transition"`
	Sequence  uint64 `json:"sequence" example:"1042" doc:"Frame sequence at the time of the transition"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition time"`
}

// Type returns the event type identifier for CameraStateChangedEvent.
func (e CameraStateChangedEvent) Type() uint32 { return TypeCameraStateChanged }

// CameraRegisteredEvent is published when a camera configuration is added or
// replaced.
type CameraRegisteredEvent struct {
	CameraID  string `json:"camera_id" example:"front" doc:"Camera identifier"`
	Host      string `json:"host" example:"192.168.50.211" doc:"Camera host"`
	Replaced  bool   `json:"replaced" doc:"True when an existing configuration was replaced"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Registration time"`
}

// Type returns the event type identifier for CameraRegisteredEvent.
func (e CameraRegisteredEvent) Type() uint32 { return TypeCameraRegistered }

// CameraStoppedEvent is published after a worker has been torn down on
// request.
type CameraStoppedEvent struct {
	CameraID  string `json:"camera_id" example:"front" doc:"Camera identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Stop time"`
}

// Type returns the event type identifier for CameraStoppedEvent.
func (e CameraStoppedEvent) Type() uint32 { return TypeCameraStopped }

// ViewerChangedEvent is published when an MJPEG viewer attaches or detaches.
type ViewerChangedEvent struct {
	CameraID  string `json:"camera_id" example:"front" doc:"Camera identifier"`
	Action    string `json:"action" example:"attached" doc:"attached or detached"`
	Viewers   int    `json:"viewers" example:"2" doc:"Viewers after the change"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event time"`
}

// Type returns the event type identifier for ViewerChangedEvent.
func (e ViewerChangedEvent) Type() uint32 { return TypeViewerChanged }

// CameraMetricsEvent carries periodic per-camera counters.
type CameraMetricsEvent struct {
	CameraID        string `json:"camera_id" example:"front" doc:"Camera identifier"`
	FramesPublished uint64 `json:"frames_published" doc:"Frames published since start"`
	FramesSent      uint64 `json:"frames_sent" doc:"Frames written to viewers"`
	ReadErrors      uint64 `json:"read_errors" doc:"Failed reads"`
	Reconnects      uint64 `json:"reconnects" doc:"Reconnect transitions"`
	Viewers         int    `json:"viewers" doc:"Attached viewers"`
	LastFrameAgeMs  int64  `json:"last_frame_age_ms" doc:"Milliseconds since the last published frame, -1 if none"`
}

// Type returns the event type identifier for CameraMetricsEvent.
func (e CameraMetricsEvent) Type() uint32 { return TypeCameraMetrics }
