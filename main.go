package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/camrelay/cmd"
	"github.com/smazurov/camrelay/internal/api"
	"github.com/smazurov/camrelay/internal/camera"
	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/ffmpeg"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/metrics/exporters"
	"github.com/smazurov/camrelay/internal/mjpeg"
	"github.com/smazurov/camrelay/internal/registry"
	"github.com/smazurov/camrelay/internal/source"
	"github.com/smazurov/camrelay/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Cameras
	CamerasFile      string `help:"Camera definitions file" default:"cameras.toml" toml:"cameras.file" env:"CAMERAS_FILE"`
	CamerasAutostart bool   `help:"Start every camera at boot instead of on first viewer" default:"false" toml:"cameras.autostart" env:"CAMERAS_AUTOSTART"`

	// Viewer pacing
	StreamFPS int `help:"Frames per second sent to each viewer" name:"stream-fps" default:"25" toml:"stream.fps" env:"STREAM_FPS"`

	// Capture settings
	CaptureConnectTimeout   string `help:"Time allowed to open a camera and receive the first frame" default:"10s" toml:"capture.connect_timeout" env:"CAPTURE_CONNECT_TIMEOUT"`
	CaptureReadTimeout      string `help:"Time allowed for a single frame read" default:"5s" toml:"capture.read_timeout" env:"CAPTURE_READ_TIMEOUT"`
	CaptureStaleAfter       string `help:"Reconnect when no frame was published for this long" default:"5s" toml:"capture.stale_after" env:"CAPTURE_STALE_AFTER"`
	CaptureMaxRetries       int    `help:"Connect attempts per reconnect cycle before giving up" default:"5" toml:"capture.max_retries" env:"CAPTURE_MAX_RETRIES"`
	CaptureRetryDelay       string `help:"Delay after the first failed connect attempt" default:"1s" toml:"capture.retry_delay" env:"CAPTURE_RETRY_DELAY"`
	CaptureMaxRetryDelay    string `help:"Upper bound of the reconnect delay" default:"30s" toml:"capture.max_retry_delay" env:"CAPTURE_MAX_RETRY_DELAY"`
	CaptureReadFailureLimit int    `help:"Consecutive read failures that force a reconnect" default:"3" toml:"capture.read_failure_limit" env:"CAPTURE_READ_FAILURE_LIMIT"`
	CaptureProbe            bool   `help:"Run an RTSP DESCRIBE before starting the decoder" default:"true" toml:"capture.probe" env:"CAPTURE_PROBE"`
	CaptureFPS              int    `help:"Decode frame rate cap, 0 keeps the camera rate" name:"capture-fps" default:"0" toml:"capture.fps" env:"CAPTURE_FPS"`

	// Output encoding
	EncodeWidth   int `help:"Maximum output width" default:"960" toml:"encode.width" env:"ENCODE_WIDTH"`
	EncodeHeight  int `help:"Maximum output height" default:"540" toml:"encode.height" env:"ENCODE_HEIGHT"`
	EncodeQuality int `help:"JPEG quality (1-100)" default:"75" toml:"encode.quality" env:"ENCODE_QUALITY"`

	// FFmpeg
	FFmpegPath    string `help:"ffmpeg command" name:"ffmpeg-path" default:"ffmpeg" toml:"ffmpeg.path" env:"FFMPEG_PATH"`
	FFmpegOptions string `help:"Comma-separated input options (low_latency, genpts, igndts, ...)" name:"ffmpeg-options" default:"" toml:"ffmpeg.options" env:"FFMPEG_OPTIONS"`

	// Auth settings
	AuthUsername string `help:"Basic auth username for control endpoints" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password for control endpoints" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Metrics
	MetricsEnabled bool `help:"Expose /metrics and publish metrics events" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingJournal  bool   `help:"Also log to the systemd journal" default:"false" toml:"logging.journal" env:"LOGGING_JOURNAL"`
	LoggingCamera   string `help:"Camera worker logging level" default:"" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingRegistry string `help:"Registry logging level" default:"" toml:"logging.registry" env:"LOGGING_REGISTRY"`
	LoggingSource   string `help:"Source adapter logging level" default:"" toml:"logging.source" env:"LOGGING_SOURCE"`
	LoggingFFmpeg   string `help:"ffmpeg output logging level" name:"logging-ffmpeg" default:"" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingMJPEG    string `help:"Multiplexer logging level" name:"logging-mjpeg" default:"" toml:"logging.mjpeg" env:"LOGGING_MJPEG"`
	LoggingAPI      string `help:"API logging level" name:"logging-api" default:"" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP access logging level" name:"logging-http" default:"" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	var root *cobra.Command

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, root); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		loggingConfig := config.MergeLogging(logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			Journal: opts.LoggingJournal,
			Modules: map[string]string{
				"camera":   opts.LoggingCamera,
				"registry": opts.LoggingRegistry,
				"source":   opts.LoggingSource,
				"ffmpeg":   opts.LoggingFFmpeg,
				"mjpeg":    opts.LoggingMJPEG,
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingHTTP,
			},
		}, config.LoadLoggingModules(opts.Config))
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		ffmpegOpts, err := ffmpeg.ParseOptions(splitList(opts.FFmpegOptions))
		if err != nil {
			logger.Error("Invalid ffmpeg options", "error", err)
			os.Exit(1)
		}

		eventBus := events.New()

		src := source.NewFFmpeg(source.Options{
			FFmpegPath:     opts.FFmpegPath,
			ConnectTimeout: config.Duration(opts.CaptureConnectTimeout, source.DefaultConnectTimeout),
			ReadTimeout:    config.Duration(opts.CaptureReadTimeout, source.DefaultReadTimeout),
			FPS:            opts.CaptureFPS,
			Probe:          opts.CaptureProbe,
			FFmpegOptions:  ffmpegOpts,
		})

		defaults := camera.DefaultPolicy()
		reg := registry.New(registry.Options{
			Source: src,
			Policy: camera.Policy{
				MaxRetries:       opts.CaptureMaxRetries,
				RetryDelay:       config.Duration(opts.CaptureRetryDelay, defaults.RetryDelay),
				MaxRetryDelay:    config.Duration(opts.CaptureMaxRetryDelay, defaults.MaxRetryDelay),
				ReadFailureLimit: opts.CaptureReadFailureLimit,
				StaleAfter:       config.Duration(opts.CaptureStaleAfter, defaults.StaleAfter),
			},
			NewEncoder: func(cfg camera.Config) camera.Encoder {
				return camera.NewJPEGEncoder(cfg, opts.EncodeWidth, opts.EncodeHeight, opts.EncodeQuality)
			},
			Events: eventBus,
		})

		cameras, err := config.LoadCameras(opts.CamerasFile)
		if err != nil {
			logger.Warn("Some cameras could not be loaded", "file", opts.CamerasFile, "error", err)
		}
		for _, cfg := range cameras {
			if regErr := reg.Register(cfg); regErr != nil {
				logger.Warn("Failed to register camera", "camera_id", cfg.ID, "error", regErr)
			}
		}
		logger.Info("Cameras loaded", "file", opts.CamerasFile, "count", len(cameras))

		watcher := config.NewConfigWatcher(opts.CamerasFile, config.LoadCameras, logging.GetLogger("config"),
			config.WithErrorHandler[[]camera.Config](func(err error) {
				logger.Warn("Cameras file reload failed", "file", opts.CamerasFile, "error", err)
			}))
		watcher.OnReload(func(cfgs []camera.Config) {
			for _, cfg := range cfgs {
				known := reg.Status(cfg.ID).Configured
				if regErr := reg.Register(cfg); regErr != nil {
					logger.Warn("Failed to register camera", "camera_id", cfg.ID, "error", regErr)
					continue
				}
				if !known && opts.CamerasAutostart {
					if startErr := reg.Start(cfg.ID); startErr != nil {
						logger.Warn("Failed to start camera", "camera_id", cfg.ID, "error", startErr)
					}
				}
			}
		})

		frames := mjpeg.New(mjpeg.Options{
			Lookup:    reg.Buffer,
			Interval:  mjpeg.IntervalForFPS(opts.StreamFPS),
			EndOnStop: true,
			Events:    eventBus,
		})

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Registry:     reg,
			Multiplexer:  frames,
			EventBus:     eventBus,
		}

		var sseExporter *exporters.SSEExporter
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
			sseExporter = exporters.NewSSEExporter(eventBus, 2*time.Second)
		}

		server := api.NewServer(apiOpts)

		hooks.OnStart(func() {
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to watch cameras file", "file", opts.CamerasFile, "error", startErr)
			}

			if sseExporter != nil {
				sseExporter.Start(context.Background())
			}

			if opts.CamerasAutostart {
				for _, cfg := range reg.Configs() {
					if startErr := reg.Start(cfg.ID); startErr != nil {
						logger.Warn("Failed to start camera", "camera_id", cfg.ID, "error", startErr)
					}
				}
			}

			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping cameras watcher", "error", stopErr)
			}
			if sseExporter != nil {
				sseExporter.Stop()
			}

			// After the HTTP server so no viewer restarts a camera.
			logger.Info("Stopping all cameras")
			reg.StopAll()
		})
	})

	root = cli.Root()
	root.Use = "camrelay"
	root.Short = "Multi-camera RTSP to MJPEG relay"
	root.Version = version.Get().String()

	root.AddCommand(cmd.CreateProbeCmd())
	root.AddCommand(cmd.CreateSnapshotCmd())

	cli.Run()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
