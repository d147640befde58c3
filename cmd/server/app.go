package main

import (
	"context"
	"database/sql"
	"fmt"

	"beatpost/internal/auth"
	"beatpost/internal/config"
	"beatpost/internal/db"
	"beatpost/internal/logging"
	"beatpost/internal/media"
	"beatpost/internal/ranking"
	"beatpost/internal/service"
	"beatpost/internal/store"
)

type app struct {
	conn    *sql.DB
	svc     *service.Service
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Error().Err(err).Msg("shutdown cleanup failed")
		}
	}
}

// openDB opens and migrates the database.
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func newBucket(ctx context.Context, cfg config.StorageConfig) (media.Bucket, func() error, error) {
	var (
		b       media.Bucket
		closeFn func() error
	)
	switch {
	case cfg.Bucket != "":
		g, err := media.NewGCSBucket(ctx, cfg.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("open bucket %s: %w", cfg.Bucket, err)
		}
		b, closeFn = g, g.Close
		logging.Info().Str("bucket", cfg.Bucket).Msg("image uploads go to GCS")
	case cfg.LocalDir != "":
		b = &media.LocalBucket{Dir: cfg.LocalDir, BaseURL: cfg.LocalBaseURL}
		logging.Info().Str("dir", cfg.LocalDir).Msg("image uploads go to local disk")
	default:
		logging.Warn().Msg("no image storage configured, uploads are disabled")
		return nil, nil, nil
	}
	return media.NewBreakerBucket(b, media.BreakerConfig{
		Name:             "images",
		FailureThreshold: cfg.BreakerFailures,
		Timeout:          cfg.BreakerTimeout,
	}), closeFn, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	conn, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{conn: conn, closers: []func() error{conn.Close}}

	bucket, closeBucket, err := newBucket(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeBucket != nil {
		a.closers = append(a.closers, closeBucket)
	}

	tokens, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	if err != nil {
		a.Close()
		return nil, err
	}

	st := store.New(conn)
	ranker := ranking.NewRanker(st, ranking.Options{
		FrontpageWindow: cfg.Ranking.FrontpageWindow,
		FrontpageSize:   cfg.Ranking.FrontpageSize,
		RanksSize:       cfg.Ranking.RanksSize,
	})
	a.svc = service.New(st, ranker, media.NewStore(bucket, cfg.Storage.UploadTimeout), tokens)
	return a, nil
}
