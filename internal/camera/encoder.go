package camera

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Encoder turns a decoded frame into wire-format bytes. Each call must
// return a fresh slice.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

// JPEGEncoder scales frames to fit within MaxWidth x MaxHeight (keeping the
// aspect ratio, never upscaling) and encodes them as baseline JPEG.
type JPEGEncoder struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	Scaler    draw.Scaler

	lastSize int
}

// NewJPEGEncoder builds an encoder for cfg, falling back to the given
// defaults for zero fields.
func NewJPEGEncoder(cfg Config, width, height, quality int) *JPEGEncoder {
	e := &JPEGEncoder{MaxWidth: width, MaxHeight: height, Quality: quality, Scaler: draw.ApproxBiLinear}
	if cfg.Width > 0 {
		e.MaxWidth = cfg.Width
	}
	if cfg.Height > 0 {
		e.MaxHeight = cfg.Height
	}
	if cfg.Quality > 0 {
		e.Quality = cfg.Quality
	}
	if e.Quality <= 0 || e.Quality > 100 {
		e.Quality = DefaultQuality
	}
	return e
}

var errEmptyFrame = errors.New("empty frame")

// Encode implements Encoder. Not safe for concurrent use; each worker owns
// its encoder.
func (e *JPEGEncoder) Encode(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errEmptyFrame
	}

	src := img
	if w, h, ok := fitWithin(img.Bounds().Dx(), img.Bounds().Dy(), e.MaxWidth, e.MaxHeight); ok {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		scaler := e.Scaler
		if scaler == nil {
			scaler = draw.ApproxBiLinear
		}
		scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		src = dst
	}

	var buf bytes.Buffer
	buf.Grow(e.lastSize + e.lastSize/4)
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, err
	}
	e.lastSize = buf.Len()
	return buf.Bytes(), nil
}

// fitWithin returns the scaled size of a w x h frame bounded by maxW x maxH,
// and false when no scaling is needed.
func fitWithin(w, h, maxW, maxH int) (int, int, bool) {
	if maxW <= 0 && maxH <= 0 {
		return w, h, false
	}
	if maxW <= 0 {
		maxW = w
	}
	if maxH <= 0 {
		maxH = h
	}
	if w <= maxW && h <= maxH {
		return w, h, false
	}

	// Compare ratios in integer arithmetic: scale by the tighter bound.
	if w*maxH > h*maxW {
		nh := max(h*maxW/w, 1)
		return maxW, nh, true
	}
	nw := max(w*maxH/h, 1)
	return nw, maxH, true
}
