package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalBucket keeps objects under a directory, for development without
// cloud credentials. The HTTP server exposes the directory at BaseURL.
type LocalBucket struct {
	Dir     string
	BaseURL string
}

func (b *LocalBucket) Upload(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + key)
	path := filepath.Join(b.Dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return strings.TrimRight(b.BaseURL, "/") + filepath.ToSlash(clean), nil
}
