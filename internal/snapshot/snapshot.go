// Package snapshot captures the visible viewport and crops it down to one element.
package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/time/rate"

	"webtestflow/recorder/internal/models"
)

const pngPrefix = "data:image/png;base64,"

// EmptyDataURI is what a zero-area crop encodes to.
const EmptyDataURI = "data:,"

var ErrMalformedDataURI = errors.New("malformed data URI")

// Capturer produces a raster of the currently visible viewport.
type Capturer interface {
	CaptureViewport(ctx context.Context) ([]byte, error)
}

type Config struct {
	Timeout time.Duration
	// PerSecond and Burst bound how often the viewport may be captured.
	PerSecond float64
	Burst     int
}

type Snapshotter struct {
	capturer Capturer
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger
}

func New(capturer Capturer, cfg Config, logger *zap.Logger) *Snapshotter {
	limit := rate.Inf
	if cfg.PerSecond > 0 {
		limit = rate.Limit(cfg.PerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Snapshotter{
		capturer: capturer,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  cfg.Timeout,
		logger:   logger.Named("snapshot"),
	}
}

// CaptureFullView returns the viewport as a PNG data URI. Any failure, including a
// missing tab or an exhausted rate budget, yields nil; callers record the step without a
// screenshot and never retry.
func (s *Snapshotter) CaptureFullView(ctx context.Context) *string {
	if s == nil || s.capturer == nil {
		return nil
	}
	if !s.limiter.Allow() {
		s.logger.Debug("Viewport capture rate limited")
		return nil
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	buf, err := s.capturer.CaptureViewport(ctx)
	if err != nil {
		s.logger.Debug("Viewport capture unavailable", zap.Error(err))
		return nil
	}
	if len(buf) == 0 {
		return nil
	}
	uri := pngPrefix + base64.StdEncoding.EncodeToString(buf)
	return &uri
}

// Crop cuts box out of a full-view data URI and returns the crop as a PNG data URI.
// A zero-area box produces EmptyDataURI rather than an error.
func Crop(fullView string, box models.BoundingBox) (string, error) {
	src, err := DecodeDataURI(fullView)
	if err != nil {
		return "", err
	}
	if box.Width <= 0 || box.Height <= 0 {
		return EmptyDataURI, nil
	}
	return EncodeDataURI(CropImage(src, box))
}

// CropImage renders exactly box.Width x box.Height pixels of src starting at box.X, box.Y.
// Regions outside src stay transparent.
func CropImage(src image.Image, box models.BoundingBox) *image.RGBA {
	w, h := max(box.Width, 0), max(box.Height, 0)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	origin := src.Bounds().Min
	sr := image.Rect(box.X, box.Y, box.X+w, box.Y+h).Add(origin)
	draw.Copy(dst, image.Point{}, src, sr, draw.Src, nil)
	return dst
}

func DecodeDataURI(uri string) (image.Image, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, ErrMalformedDataURI
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, ErrMalformedDataURI
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode viewport image: %w", err)
	}
	return img, nil
}

func EncodeDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode crop: %w", err)
	}
	return pngPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
