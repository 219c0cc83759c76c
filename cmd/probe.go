package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camrelay/internal/camera"
	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/source"
)

// ProbeReport is printed by the probe command.
type ProbeReport struct {
	CameraID string         `json:"camera_id"`
	Host     string         `json:"host"`
	Medias   []source.Media `json:"medias,omitempty"`
	Frame    *FrameInfo     `json:"frame,omitempty"`
}

// FrameInfo describes the first decoded frame.
type FrameInfo struct {
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Received time.Duration `json:"received_after_ns"`
}

// sourceFlags are shared by the commands that open a camera directly.
type sourceFlags struct {
	camerasFile string
	ffmpegPath  string
	timeout     time.Duration
	logJSON     bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.camerasFile, "cameras", "cameras.toml", "Camera definitions file")
	cmd.Flags().StringVar(&f.ffmpegPath, "ffmpeg", source.DefaultFFmpegPath, "ffmpeg command")
	cmd.Flags().DurationVar(&f.timeout, "timeout", source.DefaultConnectTimeout, "Time allowed to connect and receive a frame")
	cmd.Flags().BoolVar(&f.logJSON, "log-json", false, "Use JSON log format")
}

func (f *sourceFlags) initLogging() {
	cfg := logging.Config{Level: "warn", Format: "text"}
	if f.logJSON {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}

// loadCamera looks id up in the cameras file.
func (f *sourceFlags) loadCamera(id string) (camera.Config, error) {
	cameras, err := config.LoadCameras(f.camerasFile)
	if err != nil {
		return camera.Config{}, err
	}
	for _, cfg := range cameras {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return camera.Config{}, camera.NewUnknownCameraError(id)
}

func (f *sourceFlags) source() *source.FFmpeg {
	return source.NewFFmpeg(source.Options{
		FFmpegPath:     f.ffmpegPath,
		ConnectTimeout: f.timeout,
	})
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var flags sourceFlags
	var skipFrame bool

	cmd := &cobra.Command{
		Use:   "probe [camera-id]",
		Short: "Check that a camera answers and delivers frames",
		Long: `Runs an RTSP DESCRIBE against the camera (rtsp/rtsps URIs) and prints the announced media, ` +
			`then opens the camera through ffmpeg and waits for one decoded frame.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			flags.initLogging()

			cfg, err := flags.loadCamera(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context(), flags.timeout)
			defer cancel()

			report, err := probe(ctx, flags.source(), source.RTSPProber{}, cfg, !skipFrame)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&skipFrame, "describe-only", false, "Skip waiting for a decoded frame")
	return cmd
}

func probe(ctx context.Context, src camera.Source, prober source.Prober, cfg camera.Config, readFrame bool) (*ProbeReport, error) {
	report := &ProbeReport{CameraID: cfg.ID, Host: cfg.Host()}

	if u, err := url.Parse(cfg.URI); err == nil && (u.Scheme == "rtsp" || u.Scheme == "rtsps") {
		res, err := prober.Probe(ctx, cfg.SourceURI())
		if err != nil {
			return nil, fmt.Errorf("camera %s: %w", cfg.ID, err)
		}
		report.Medias = res.Medias
		if !res.HasVideo() {
			return report, fmt.Errorf("camera %s announces no video", cfg.ID)
		}
	}

	if !readFrame {
		return report, nil
	}

	start := time.Now()
	h, err := src.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()

	img, err := h.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	report.Frame = &FrameInfo{Width: b.Dx(), Height: b.Dy(), Received: time.Since(start)}
	return report, nil
}
