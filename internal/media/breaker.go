package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beatpost/internal/logging"

	gobreaker "github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	Timeout          time.Duration
}

// BreakerBucket stops calling a failing bucket for a while. While the
// breaker is open uploads fail fast with ErrImagesUnavailable.
type BreakerBucket struct {
	next Bucket
	cb   *gobreaker.CircuitBreaker[string]
}

func NewBreakerBucket(next Bucket, cfg BreakerConfig) *BreakerBucket {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("image storage breaker changed state")
		},
	}
	return &BreakerBucket{next: next, cb: gobreaker.NewCircuitBreaker[string](settings)}
}

func (b *BreakerBucket) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	url, err := b.cb.Execute(func() (string, error) {
		return b.next.Upload(ctx, key, contentType, data)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrImagesUnavailable, err)
	}
	return url, err
}

func (b *BreakerBucket) State() gobreaker.State {
	return b.cb.State()
}
