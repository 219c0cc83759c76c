package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/camrelay/internal/camera"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/mjpeg"
	"github.com/smazurov/camrelay/ui"
)

// Server is the camrelay HTTP API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	registry   CameraRegistry
	frames     *mjpeg.Multiplexer
	eventBus   *events.Bus
	options    *Options
	logger     *slog.Logger
}

// CameraRegistry is the camera control surface the API needs.
type CameraRegistry interface {
	Start(id string) error
	Stop(id string) error
	Status(id string) camera.Status
	StatusAll() []camera.Status
	Buffer(id string) (*camera.FrameBuffer, bool)
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Registry          CameraRegistry
	Multiplexer       *mjpeg.Multiplexer
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// NewServer builds the API on a stdlib ServeMux. Control routes require basic
// auth when credentials are configured; everything else is open.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camrelay API", "1.0.0")
	config.Info.Description = "Multi-camera RTSP to MJPEG relay"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		registry: opts.Registry,
		frames:   opts.Multiplexer,
		eventBus: opts.EventBus,
		options:  opts,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	if viewer, err := ui.Handler(); err == nil {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api") {
				http.NotFound(w, r)
				return
			}
			viewer.ServeHTTP(w, r)
		})
	} else {
		server.logger.Warn("Viewer page unavailable", "error", err)
	}

	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves HTTP on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting camrelay API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	// No write timeout: MJPEG responses stay open for as long as the viewer.
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and every open connection, including streams.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.registerSystemRoutes()
	s.registerCameraRoutes()
	s.registerStreamRoutes()
	s.registerSSERoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
