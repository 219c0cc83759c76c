package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrelay/internal/api/models"
	"github.com/smazurov/camrelay/internal/mjpeg"
)

const noCache = "no-cache, no-store, no-transform"

// registerStreamRoutes registers the MJPEG stream and snapshot endpoints.
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "stream-camera",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{camera_id}/stream",
		Summary:     "MJPEG Stream",
		Description: "Live multipart/x-mixed-replace stream of JPEG frames. Starts the camera if it is not running. " +
			"The latest frame is re-sent at the pacing rate when the camera delivers nothing new.",
		Tags:     []string{"stream"},
		Errors:   []int{404, 422},
		Security: []map[string][]string{},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "MJPEG stream",
				Content:     map[string]*huma.MediaType{mjpeg.ContentType: {}},
			},
		},
	}, func(ctx context.Context, input *models.StreamInput) (*huma.StreamResponse, error) {
		id := input.CameraID
		if err := s.registry.Start(id); err != nil {
			return nil, s.mapCameraError(err)
		}

		interval := s.frames.Interval()
		if input.FPS > 0 {
			interval = mjpeg.IntervalForFPS(input.FPS)
		}

		return &huma.StreamResponse{
			Body: func(hctx huma.Context) {
				hctx.SetHeader("Content-Type", mjpeg.ContentType)
				hctx.SetHeader("Cache-Control", noCache)
				hctx.SetHeader("Pragma", "no-cache")
				hctx.SetHeader("Access-Control-Allow-Origin", "*")
				hctx.SetHeader("X-Accel-Buffering", "no")
				hctx.SetStatus(http.StatusOK)

				bw := hctx.BodyWriter()
				if f, ok := bw.(http.Flusher); ok {
					f.Flush()
				}

				w := mjpeg.NewWriter(bw)
				sent := 0
				for frame := range s.frames.FramesEvery(hctx.Context(), id, interval) {
					if err := w.WriteFrame(frame.Data); err != nil {
						s.logger.Debug("Viewer write failed", "camera_id", id, "error", err)
						break
					}
					sent++
				}
				s.logger.Debug("Stream closed", "camera_id", id, "frames", sent)
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "snapshot-camera",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{camera_id}/snapshot",
		Summary:     "Snapshot",
		Description: "Latest JPEG frame of a camera",
		Tags:        []string{"stream"},
		Errors:      []int{404, 503},
		Security:    []map[string][]string{},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "JPEG image",
				Content:     map[string]*huma.MediaType{"image/jpeg": {}},
			},
		},
	}, func(ctx context.Context, input *models.CameraIDInput) (*models.SnapshotResponse, error) {
		if st := s.registry.Status(input.CameraID); !st.Configured {
			return nil, huma.Error404NotFound("camera " + input.CameraID + " is not configured")
		}
		buf, ok := s.registry.Buffer(input.CameraID)
		if !ok {
			return nil, huma.Error503ServiceUnavailable("camera " + input.CameraID + " is not running")
		}
		snap := buf.Load()
		if snap.State.Terminal() {
			return nil, huma.Error503ServiceUnavailable("camera " + input.CameraID + " is " + string(snap.State))
		}
		if snap.Frame == nil {
			return nil, huma.Error503ServiceUnavailable("camera " + input.CameraID + " has no frame yet")
		}
		return &models.SnapshotResponse{
			ContentType:  "image/jpeg",
			CacheControl: noCache,
			Sequence:     strconv.FormatUint(snap.Sequence, 10),
			Body:         snap.Frame,
		}, nil
	})
}
