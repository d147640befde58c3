package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"beatpost/internal/validation"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := range 4 {
		for y := range 3 {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGrayscaleProducesGrayJPEG(t *testing.T) {
	out, err := Grayscale(pngBytes(t))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	_, isGray := img.(*image.Gray)
	assert.True(t, isGray)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
}

func TestGrayscaleRejectsGarbage(t *testing.T) {
	_, err := Grayscale([]byte("not an image"))
	var ve *validation.RequestValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestDisabledStore(t *testing.T) {
	s := NewStore(nil, 0)
	assert.False(t, s.Enabled())
	_, err := s.UploadPostImage(context.Background(), pngBytes(t))
	assert.ErrorIs(t, err, ErrImagesUnavailable)
	_, err = s.UploadAvatar(context.Background(), "u1", "image/png", []byte("x"))
	assert.ErrorIs(t, err, ErrImagesUnavailable)
}

func TestLocalBucketUpload(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(&LocalBucket{Dir: dir, BaseURL: "/media/"}, time.Second)

	url, err := s.UploadPostImage(context.Background(), pngBytes(t))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/posts/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/media/")))
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(data))
	assert.NoError(t, err)

	url, err = s.UploadAvatar(context.Background(), "u1", "image/png", []byte("raw"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/avatars/u1/"))
}

func TestLocalBucketStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	b := &LocalBucket{Dir: dir, BaseURL: "/media"}
	url, err := b.Upload(context.Background(), "../../escape.jpg", ImageContentType, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "/media/escape.jpg", url)
	_, err = os.Stat(filepath.Join(dir, "escape.jpg"))
	assert.NoError(t, err)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/beats/posts/a.jpg", PublicURL("beats", "posts/a.jpg"))
}

type failingBucket struct{ calls int }

func (f *failingBucket) Upload(context.Context, string, string, []byte) (string, error) {
	f.calls++
	return "", errors.New("connection refused")
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	fb := &failingBucket{}
	b := NewBreakerBucket(fb, BreakerConfig{Name: "test", FailureThreshold: 2, Timeout: time.Minute})
	s := NewStore(b, 0)
	ctx := context.Background()

	for range 2 {
		_, err := s.UploadAvatar(ctx, "u1", "image/png", []byte("x"))
		assert.ErrorIs(t, err, ErrImagesUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := s.UploadAvatar(ctx, "u1", "image/png", []byte("x"))
	assert.ErrorIs(t, err, ErrImagesUnavailable)
	assert.Equal(t, 2, fb.calls)
}
