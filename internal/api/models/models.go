package models

import (
	"time"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	Cameras int    `json:"cameras" example:"4" doc:"Configured cameras"`
	Running int    `json:"running" example:"2" doc:"Cameras currently capturing"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Camera models
type CameraData struct {
	CameraID        string     `json:"camera_id" example:"front" doc:"Camera identifier"`
	Name            string     `json:"name" example:"Front door" doc:"Display name"`
	Host            string     `json:"host" example:"192.168.50.211" doc:"Camera address without credentials"`
	Configured      bool       `json:"configured" doc:"Whether the camera is in the configuration"`
	State           string     `json:"state" enum:"unknown,connecting,streaming,reconnecting,stopped,failed" example:"streaming" doc:"Worker state"`
	Sequence        uint64     `json:"sequence" example:"1042" doc:"Sequence number of the latest frame"`
	HasFrame        bool       `json:"has_frame" doc:"Whether a frame is available"`
	LastFrame       *time.Time `json:"last_frame,omitempty" doc:"When the latest frame was published"`
	LastUpdateAgeMs int64      `json:"last_update_age_ms" example:"40" doc:"Milliseconds since the latest frame was published, 0 before the first frame"`
	StartedAt       *time.Time `json:"started_at,omitempty" doc:"When the current worker was started"`
	Viewers         int        `json:"viewers" example:"2" doc:"Attached MJPEG viewers"`
	Error           string     `json:"error,omitempty" example:"camera front: connect failed: connection refused" doc:"Last error"`
	StreamURL       string     `json:"stream_url" example:"/api/cameras/front/stream" doc:"MJPEG stream path"`
}

type CameraListData struct {
	Cameras []CameraData `json:"cameras" doc:"Configured cameras"`
	Count   int          `json:"count" example:"2" doc:"Number of cameras"`
}

type CameraListResponse struct {
	Body CameraListData
}

type CameraResponse struct {
	Body CameraData
}

type CameraIDInput struct {
	CameraID string `path:"camera_id" maxLength:"64" example:"front" doc:"Camera identifier"`
}

type StreamInput struct {
	CameraID string `path:"camera_id" maxLength:"64" example:"front" doc:"Camera identifier"`
	FPS      int    `query:"fps" minimum:"1" maximum:"60" example:"25" doc:"Frames per second sent to this viewer; defaults to the server setting"`
}

type SnapshotResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Sequence     string `header:"X-Frame-Sequence"`
	Body         []byte
}
