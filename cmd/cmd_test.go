package cmd

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/smazurov/camrelay/internal/camera"
	"github.com/smazurov/camrelay/internal/source"
)

type stubHandle struct {
	img    image.Image
	closed bool
}

func (h *stubHandle) ReadFrame(context.Context) (image.Image, error) { return h.img, nil }
func (h *stubHandle) Close() error                                   { h.closed = true; return nil }

type stubSource struct {
	handle *stubHandle
	err    error
}

func (s *stubSource) Connect(context.Context, camera.Config) (camera.Handle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.handle, nil
}

type stubProber struct {
	res   *source.ProbeResult
	err   error
	calls int
}

func (p *stubProber) Probe(context.Context, string) (*source.ProbeResult, error) {
	p.calls++
	return p.res, p.err
}

func TestProbeReportsMediaAndFrame(t *testing.T) {
	h := &stubHandle{img: image.NewGray(image.Rect(0, 0, 64, 36))}
	prober := &stubProber{res: &source.ProbeResult{Medias: []source.Media{{Kind: "video", Codecs: []string{"H264"}}}}}
	cfg := camera.Config{ID: "front", URI: "rtsp://10.0.0.1/live"}

	report, err := probe(context.Background(), &stubSource{handle: h}, prober, cfg, true)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(report.Medias) != 1 || report.Medias[0].Codecs[0] != "H264" {
		t.Errorf("medias = %+v", report.Medias)
	}
	if report.Frame == nil || report.Frame.Width != 64 || report.Frame.Height != 36 {
		t.Errorf("frame = %+v", report.Frame)
	}
	if !h.closed {
		t.Error("handle not closed")
	}
}

func TestProbeSkipsDescribeForHTTP(t *testing.T) {
	prober := &stubProber{err: errors.New("should not be called")}
	cfg := camera.Config{ID: "lab", URI: "http://10.0.0.5/video.mjpg"}

	report, err := probe(context.Background(), &stubSource{}, prober, cfg, false)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if prober.calls != 0 || report.Frame != nil {
		t.Errorf("calls = %d, frame = %+v", prober.calls, report.Frame)
	}
}

func TestProbeNoVideo(t *testing.T) {
	prober := &stubProber{res: &source.ProbeResult{Medias: []source.Media{{Kind: "audio"}}}}
	cfg := camera.Config{ID: "front", URI: "rtsp://10.0.0.1/live"}

	if _, err := probe(context.Background(), &stubSource{}, prober, cfg, true); err == nil {
		t.Fatal("expected error for audio-only camera")
	}
}

func TestSnapshotEncodesFrame(t *testing.T) {
	h := &stubHandle{img: image.NewGray(image.Rect(0, 0, 128, 72))}
	cfg := camera.Config{ID: "front", URI: "rtsp://10.0.0.1/live"}
	enc := camera.NewJPEGEncoder(cfg, 64, 0, 80)

	data, err := snapshot(context.Background(), &stubSource{handle: h}, enc, cfg)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 36 {
		t.Errorf("size = %dx%d, want 64x36", b.Dx(), b.Dy())
	}
}

func TestSnapshotConnectError(t *testing.T) {
	cfg := camera.Config{ID: "front", URI: "rtsp://10.0.0.1/live"}
	src := &stubSource{err: camera.NewConnectError("front", errors.New("refused"))}

	_, err := snapshot(context.Background(), src, camera.NewJPEGEncoder(cfg, 0, 0, 0), cfg)
	if !errors.Is(err, camera.ErrConnect) {
		t.Errorf("err = %v, want ErrConnect", err)
	}
}

func TestLoadCamera(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.toml")
	content := `
[cameras.front]
uri = "rtsp://10.0.0.1/live"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	flags := sourceFlags{camerasFile: path}

	cfg, err := flags.loadCamera("front")
	if err != nil || cfg.URI != "rtsp://10.0.0.1/live" {
		t.Fatalf("loadCamera = %+v, %v", cfg, err)
	}
	if _, err := flags.loadCamera("garage"); !errors.Is(err, camera.ErrUnknownCamera) {
		t.Errorf("err = %v, want ErrUnknownCamera", err)
	}
}
