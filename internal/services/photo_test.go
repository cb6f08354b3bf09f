package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	url    string
	err    error
	folder string
	data   []byte
}

func (f *fakeUploader) Upload(ctx context.Context, data []byte, folder string) (string, error) {
	f.folder = folder
	f.data = data
	return f.url, f.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDataURL(t *testing.T, dataURL string) image.Config {
	t.Helper()
	const prefix = "data:image/jpeg;base64,"
	require.True(t, strings.HasPrefix(dataURL, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	return cfg
}

func TestPhotoProcessorResizes(t *testing.T) {
	p := NewPhotoProcessor(nil, nil)

	out, err := p.Process(context.Background(), bytes.NewReader(pngBytes(t, 1200, 800)), "image/png")
	require.NoError(t, err)

	assert.Equal(t, 600, out.Width)
	assert.Equal(t, 400, out.Height)
	assert.False(t, out.Hosted)
	assert.Equal(t, out.DataURL, out.URL)
	assert.Nil(t, out.Location, "no EXIF in a PNG")

	cfg := decodeDataURL(t, out.DataURL)
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
}

func TestPhotoProcessorKeepsSmallImages(t *testing.T) {
	p := NewPhotoProcessor(nil, nil)

	out, err := p.Process(context.Background(), bytes.NewReader(pngBytes(t, 200, 100)), "image/png")
	require.NoError(t, err)
	assert.Equal(t, 200, out.Width)
	assert.Equal(t, 100, out.Height)
}

func TestPhotoProcessorUploads(t *testing.T) {
	up := &fakeUploader{url: "https://res.cloudinary.com/demo/image/upload/rock.jpg"}
	p := NewPhotoProcessor(up, nil)

	out, err := p.Process(context.Background(), bytes.NewReader(pngBytes(t, 50, 50)), "image/png")
	require.NoError(t, err)
	assert.True(t, out.Hosted)
	assert.Equal(t, up.url, out.URL)
	assert.Equal(t, PhotoFolder, up.folder)
	assert.Equal(t, out.Bytes, len(up.data))
}

func TestPhotoProcessorFallsBackToDataURL(t *testing.T) {
	up := &fakeUploader{err: errUnreachable}
	p := NewPhotoProcessor(up, nil)

	out, err := p.Process(context.Background(), bytes.NewReader(pngBytes(t, 50, 50)), "image/png")
	require.NoError(t, err)
	assert.False(t, out.Hosted)
	assert.Equal(t, out.DataURL, out.URL)
}

func TestPhotoProcessorRejects(t *testing.T) {
	p := NewPhotoProcessor(nil, nil)

	_, err := p.Process(context.Background(), strings.NewReader("hello"), "text/plain")
	assert.ErrorIs(t, err, ErrNotAnImage)

	_, err = p.Process(context.Background(), strings.NewReader("not really a png"), "image/png")
	assert.ErrorIs(t, err, ErrNotAnImage)

	_, err = p.Process(context.Background(), bytes.NewReader(make([]byte, MaxPhotoBytes+1)), "image/jpeg")
	assert.ErrorIs(t, err, ErrPhotoTooLarge)
}
