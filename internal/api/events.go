package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camrelay/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time camera lifecycle, viewer and metrics events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, events.SSETypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		feed, unsubscribe := s.eventBus.Feed(32)
		defer unsubscribe()

		// Current state first so clients need no separate status call.
		for _, st := range s.registry.StatusAll() {
			ev := events.CameraStateChangedEvent{
				CameraID: st.ID,
				OldState: string(st.State),
				NewState: string(st.State),
				Sequence: st.Sequence,
			}
			if st.Err != nil {
				ev.Error = st.Err.Error()
			}
			if err := send.Data(ev); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-feed:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
