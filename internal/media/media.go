// Package media stores uploaded images in object storage and returns their
// public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beatpost/internal/logging"
	"beatpost/internal/metrics"

	"github.com/google/uuid"
)

// ErrImagesUnavailable means no bucket is configured or the bucket is
// failing. Callers report it as a temporary outage.
var ErrImagesUnavailable = errors.New("image storage is not available")

const (
	ImageContentType = "image/jpeg"
	// MaxAvatarBytes caps avatar uploads.
	MaxAvatarBytes = 2 << 20
)

type Bucket interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

func PostImageKey() string {
	return fmt.Sprintf("posts/%s.jpg", uuid.New().String())
}

func AvatarKey(userID string) string {
	return fmt.Sprintf("avatars/%s/%s.jpg", userID, uuid.New().String())
}

// Store uploads through an optional bucket. A Store without a bucket
// rejects every upload with ErrImagesUnavailable.
type Store struct {
	bucket  Bucket
	timeout time.Duration
}

func NewStore(b Bucket, timeout time.Duration) *Store {
	return &Store{bucket: b, timeout: timeout}
}

func (s *Store) Enabled() bool {
	return s != nil && s.bucket != nil
}

func (s *Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if !s.Enabled() {
		return "", ErrImagesUnavailable
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	url, err := s.bucket.Upload(ctx, key, contentType, data)
	if err != nil {
		metrics.ImageUploads.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("key", key).Msg("image upload failed")
		if errors.Is(err, ErrImagesUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrImagesUnavailable, err)
	}
	metrics.ImageUploads.WithLabelValues("ok").Inc()
	return url, nil
}

// UploadPostImage converts data to a grayscale JPEG and stores it under a
// fresh posts/ key.
func (s *Store) UploadPostImage(ctx context.Context, data []byte) (string, error) {
	if !s.Enabled() {
		return "", ErrImagesUnavailable
	}
	bw, err := Grayscale(data)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, PostImageKey(), ImageContentType, bw)
}

// UploadAvatar stores data unchanged under the user's avatars/ prefix.
func (s *Store) UploadAvatar(ctx context.Context, userID, contentType string, data []byte) (string, error) {
	return s.Upload(ctx, AvatarKey(userID), contentType, data)
}
