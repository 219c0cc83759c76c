package source

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/smazurov/camrelay/internal/camera"
	"github.com/smazurov/camrelay/internal/ffmpeg"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/process"
)

// Defaults for Options.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 5 * time.Second
	DefaultFFmpegPath     = "ffmpeg"
)

// Options configures the ffmpeg source.
type Options struct {
	FFmpegPath     string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// FPS caps the decoded frame rate (0 = camera rate).
	FPS int
	// Probe runs an RTSP handshake before starting ffmpeg for rtsp URIs.
	Probe         bool
	Prober        Prober
	FFmpegOptions []ffmpeg.OptionType

	// GracefulTimeout is how long ffmpeg gets to exit after SIGINT.
	GracefulTimeout time.Duration
	Logger          *slog.Logger
}

// FFmpeg pulls cameras through an ffmpeg subprocess that writes an MJPEG
// elementary stream to its stdout.
type FFmpeg struct {
	opts      Options
	logger    *slog.Logger
	ffmpegLog *slog.Logger
}

var _ camera.Source = (*FFmpeg)(nil)

// NewFFmpeg creates an ffmpeg-backed source.
func NewFFmpeg(opts Options) *FFmpeg {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = DefaultFFmpegPath
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.Prober == nil {
		opts.Prober = RTSPProber{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("source")
	}
	return &FFmpeg{
		opts:      opts,
		logger:    logger,
		ffmpegLog: logging.GetLogger("ffmpeg"),
	}
}

// Connect starts ffmpeg for cfg and returns once the first frame arrived.
func (f *FFmpeg) Connect(ctx context.Context, cfg camera.Config) (camera.Handle, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, camera.NewConnectError(cfg.ID, err)
	}
	uri := cfg.SourceURI()

	ctx, cancel := context.WithTimeout(ctx, f.opts.ConnectTimeout)
	defer cancel()

	if f.opts.Probe && (u.Scheme == "rtsp" || u.Scheme == "rtsps") {
		res, err := f.opts.Prober.Probe(ctx, uri)
		if err != nil {
			return nil, camera.NewConnectError(cfg.ID, err)
		}
		if !res.HasVideo() {
			return nil, camera.NewConnectError(cfg.ID, errNoVideo)
		}
		f.logger.Debug("RTSP probe succeeded", "camera_id", cfg.ID, "medias", res.Medias)
	}

	input := uri
	if u.Scheme == "file" {
		input = u.Path
	}
	args := ffmpeg.BuildArgs(&ffmpeg.Params{
		InputURL: input,
		Scheme:   u.Scheme,
		Timeout:  f.opts.ReadTimeout,
		FPS:      f.opts.FPS,
		Realtime: true,
		Options:  f.opts.FFmpegOptions,
	})

	proc, err := process.Start(process.Options{
		ID:              cfg.ID,
		Command:         f.opts.FFmpegPath,
		Args:            args,
		Logger:          f.logger,
		OutputLogger:    f.ffmpegLog.With("camera_id", cfg.ID),
		LogParser:       ffmpeg.ParseLogLevel,
		GracefulTimeout: f.opts.GracefulTimeout,
	})
	if err != nil {
		return nil, camera.NewConnectError(cfg.ID, err)
	}
	f.logger.Debug("ffmpeg started", "camera_id", cfg.ID, "pid", proc.PID(), "uri", cfg.Redacted())

	h := newPipeHandle(cfg.ID, proc.Stdout(), proc, f.opts.ReadTimeout, f.logger)
	if err := h.waitFirstFrame(ctx); err != nil {
		_ = h.Close()
		return nil, camera.NewConnectError(cfg.ID, err)
	}
	return h, nil
}
