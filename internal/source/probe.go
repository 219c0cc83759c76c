package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/AlexxIT/go2rtc/pkg/rtsp"
)

var errNoVideo = errors.New("stream has no video media")

// Media is one media section announced by a camera.
type Media struct {
	Kind   string   `json:"kind"`
	Codecs []string `json:"codecs"`
}

// ProbeResult is what a camera announced in its session description.
type ProbeResult struct {
	Medias []Media `json:"medias"`
}

// HasVideo reports whether any video media was announced.
func (r *ProbeResult) HasVideo() bool {
	for _, m := range r.Medias {
		if m.Kind == core.KindVideo {
			return true
		}
	}
	return false
}

// Prober checks that a URI answers before a decoder is started for it.
type Prober interface {
	Probe(ctx context.Context, uri string) (*ProbeResult, error)
}

// RTSPProber runs an RTSP OPTIONS/DESCRIBE handshake.
type RTSPProber struct{}

type probeOutcome struct {
	conn   *rtsp.Conn
	medias []*core.Media
	err    error
}

// Probe dials uri and reads its session description. It returns when ctx is
// done even if the camera stops answering mid-handshake; the connection is
// then closed in the background once the handshake gives up.
func (RTSPProber) Probe(ctx context.Context, uri string) (*ProbeResult, error) {
	ch := make(chan probeOutcome, 1)
	go func() {
		conn := rtsp.NewClient(uri)
		if err := conn.Dial(); err != nil {
			ch <- probeOutcome{err: fmt.Errorf("dial: %w", err)}
			return
		}
		if err := conn.Describe(); err != nil {
			ch <- probeOutcome{conn: conn, err: fmt.Errorf("describe: %w", err)}
			return
		}
		ch <- probeOutcome{conn: conn, medias: conn.GetMedias()}
	}()

	select {
	case out := <-ch:
		if out.conn != nil {
			_ = out.conn.Stop()
		}
		if out.err != nil {
			return nil, out.err
		}
		return newProbeResult(out.medias), nil
	case <-ctx.Done():
		go func() {
			if out := <-ch; out.conn != nil {
				_ = out.conn.Stop()
			}
		}()
		return nil, fmt.Errorf("rtsp handshake: %w", ctx.Err())
	}
}

func newProbeResult(medias []*core.Media) *ProbeResult {
	res := &ProbeResult{}
	for _, m := range medias {
		media := Media{Kind: m.Kind}
		for _, c := range m.Codecs {
			media.Codecs = append(media.Codecs, c.Name)
		}
		res.Medias = append(res.Medias, media)
	}
	return res
}
