package media

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSBucket writes objects to a Google Cloud Storage bucket with uniform
// bucket-level access, so objects are not made public one by one.
type GCSBucket struct {
	client *storage.Client
	name   string
}

// NewGCSBucket uses application default credentials.
func NewGCSBucket(ctx context.Context, name string) (*GCSBucket, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSBucket{client: client, name: name}, nil
}

func (b *GCSBucket) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := b.client.Bucket(b.name).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return PublicURL(b.name, key), nil
}

func (b *GCSBucket) Close() error {
	return b.client.Close()
}

func PublicURL(bucket, key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}
