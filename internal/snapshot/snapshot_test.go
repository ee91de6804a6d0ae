package snapshot_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"webtestflow/recorder/internal/models"
	"webtestflow/recorder/internal/snapshot"
)

type fakeCapturer struct {
	buf   []byte
	err   error
	calls int
}

func (f *fakeCapturer) CaptureViewport(ctx context.Context) ([]byte, error) {
	f.calls++
	return f.buf, f.err
}

var red = color.RGBA{R: 255, A: 255}

// viewport is 100x50, white, with a red 10x10 square at (20,30).
func viewport(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.White)
		}
	}
	for y := 30; y < 40; y++ {
		for x := 20; x < 30; x++ {
			img.Set(x, y, red)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCaptureFullView(t *testing.T) {
	capturer := &fakeCapturer{buf: viewport(t)}
	s := snapshot.New(capturer, snapshot.Config{Timeout: time.Second}, zap.NewNop())

	uri := s.CaptureFullView(context.Background())
	require.NotNil(t, uri)
	assert.Contains(t, *uri, "data:image/png;base64,")

	img, err := snapshot.DecodeDataURI(*uri)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())
}

func TestCaptureFullView_FailureIsNil(t *testing.T) {
	capturer := &fakeCapturer{err: errors.New("tab gone")}
	s := snapshot.New(capturer, snapshot.Config{}, zap.NewNop())

	assert.Nil(t, s.CaptureFullView(context.Background()))
	assert.Equal(t, 1, capturer.calls, "failed captures are not retried")

	var nilSnapshotter *snapshot.Snapshotter
	assert.Nil(t, nilSnapshotter.CaptureFullView(context.Background()))
}

func TestCaptureFullView_RateLimited(t *testing.T) {
	capturer := &fakeCapturer{buf: viewport(t)}
	s := snapshot.New(capturer, snapshot.Config{PerSecond: 0.001, Burst: 1}, zap.NewNop())

	assert.NotNil(t, s.CaptureFullView(context.Background()))
	assert.Nil(t, s.CaptureFullView(context.Background()))
	assert.Equal(t, 1, capturer.calls)
}

func TestCrop(t *testing.T) {
	capturer := &fakeCapturer{buf: viewport(t)}
	s := snapshot.New(capturer, snapshot.Config{}, zap.NewNop())
	full := s.CaptureFullView(context.Background())
	require.NotNil(t, full)

	out, err := snapshot.Crop(*full, models.BoundingBox{X: 20, Y: 30, Width: 10, Height: 10})
	require.NoError(t, err)

	img, err := snapshot.DecodeDataURI(out)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0, 0xffff}, []uint32{r, g, b, a})
	r, g, b, _ = img.At(9, 9).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0}, []uint32{r, g, b})
}

func TestCrop_ExactSizeBeyondViewport(t *testing.T) {
	capturer := &fakeCapturer{buf: viewport(t)}
	s := snapshot.New(capturer, snapshot.Config{}, zap.NewNop())
	full := s.CaptureFullView(context.Background())
	require.NotNil(t, full)

	out, err := snapshot.Crop(*full, models.BoundingBox{X: 90, Y: 40, Width: 30, Height: 20})
	require.NoError(t, err)
	img, err := snapshot.DecodeDataURI(out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 20), img.Bounds())

	_, _, _, a := img.At(25, 15).RGBA()
	assert.Zero(t, a, "pixels outside the viewport are transparent")
}

func TestCrop_ZeroSize(t *testing.T) {
	capturer := &fakeCapturer{buf: viewport(t)}
	s := snapshot.New(capturer, snapshot.Config{}, zap.NewNop())
	full := s.CaptureFullView(context.Background())
	require.NotNil(t, full)

	for _, box := range []models.BoundingBox{
		{X: 5, Y: 5, Width: 0, Height: 10},
		{X: 5, Y: 5, Width: 10, Height: 0},
	} {
		out, err := snapshot.Crop(*full, box)
		require.NoError(t, err)
		assert.Equal(t, snapshot.EmptyDataURI, out)
	}

	assert.Equal(t, image.Rect(0, 0, 0, 7), snapshot.CropImage(image.NewRGBA(image.Rect(0, 0, 4, 4)),
		models.BoundingBox{Width: 0, Height: 7}).Bounds())
}

func TestDecodeDataURI_Malformed(t *testing.T) {
	for _, in := range []string{"", "http://x", "data:image/png,abc", "data:image/png;base64,%%%"} {
		_, err := snapshot.DecodeDataURI(in)
		assert.ErrorIs(t, err, snapshot.ErrMalformedDataURI, in)
	}
}
