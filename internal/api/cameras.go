package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrelay/internal/api/models"
	"github.com/smazurov/camrelay/internal/camera"
	"github.com/smazurov/camrelay/internal/mjpeg"
)

// registerCameraRoutes registers status and control endpoints.
func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List Cameras",
		Description: "Status of every configured camera",
		Tags:        []string{"cameras"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.CameraListResponse, error) {
		statuses := s.registry.StatusAll()
		cameras := make([]models.CameraData, len(statuses))
		for i, st := range statuses {
			cameras[i] = toCameraData(st)
		}
		return &models.CameraListResponse{
			Body: models.CameraListData{Cameras: cameras, Count: len(cameras)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{camera_id}",
		Summary:     "Get Camera",
		Description: "Status of one camera",
		Tags:        []string{"cameras"},
		Errors:      []int{404},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *models.CameraIDInput) (*models.CameraResponse, error) {
		st := s.registry.Status(input.CameraID)
		if !st.Configured {
			return nil, huma.Error404NotFound("camera " + input.CameraID + " is not configured")
		}
		return &models.CameraResponse{Body: toCameraData(st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-camera",
		Method:      http.MethodPost,
		Path:        "/api/cameras/{camera_id}/start",
		Summary:     "Start Camera",
		Description: "Start capturing from a camera. Starting a running camera has no effect; a stopped or failed one gets a fresh worker.",
		Tags:        []string{"cameras"},
		Errors:      []int{401, 404, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraIDInput) (*models.CameraResponse, error) {
		if err := s.registry.Start(input.CameraID); err != nil {
			return nil, s.mapCameraError(err)
		}
		return &models.CameraResponse{Body: toCameraData(s.registry.Status(input.CameraID))}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-camera",
		Method:        http.MethodPost,
		Path:          "/api/cameras/{camera_id}/stop",
		Summary:       "Stop Camera",
		Description:   "Stop capturing from a camera and release its connection. Stopping a camera that is not running succeeds.",
		Tags:          []string{"cameras"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.CameraIDInput) (*struct{}, error) {
		if err := s.registry.Stop(input.CameraID); err != nil {
			return nil, s.mapCameraError(err)
		}
		return &struct{}{}, nil
	})
}

// mapCameraError translates domain errors to HTTP errors.
func (s *Server) mapCameraError(err error) error {
	var ce *camera.Error
	if !errors.As(err, &ce) {
		s.logger.Error("Camera operation failed", "error", err)
		return huma.Error500InternalServerError("camera operation failed", err)
	}
	switch ce.Code {
	case camera.CodeUnknownCamera:
		return huma.Error404NotFound(ce.Error())
	case camera.CodeInvalidConfig:
		return huma.Error422UnprocessableEntity(ce.Error())
	default:
		return huma.Error503ServiceUnavailable(ce.Error())
	}
}

func toCameraData(st camera.Status) models.CameraData {
	data := models.CameraData{
		CameraID:        st.ID,
		Name:            st.Name,
		Host:            st.Host,
		Configured:      st.Configured,
		State:           string(st.State),
		Sequence:        st.Sequence,
		HasFrame:        st.HasFrame,
		LastUpdateAgeMs: st.LastUpdateAge.Milliseconds(),
		Viewers:         mjpeg.Viewers(st.ID),
		StreamURL:       "/api/cameras/" + st.ID + "/stream",
	}
	if !st.LastFrame.IsZero() {
		t := st.LastFrame
		data.LastFrame = &t
	}
	if !st.StartedAt.IsZero() {
		t := st.StartedAt
		data.StartedAt = &t
	}
	if st.Err != nil {
		data.Error = st.Err.Error()
	}
	return data
}
