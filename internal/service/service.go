// Package service implements the Beatpost operations on top of the store.
// Every write that can change someone's standing recomputes that user's
// Mojo before returning.
package service

import (
	"context"
	"errors"
	"strings"

	"beatpost/internal/auth"
	"beatpost/internal/logging"
	"beatpost/internal/media"
	"beatpost/internal/ranking"
	"beatpost/internal/reputation"
	"beatpost/internal/store"
)

var (
	ErrUnauthorized = errors.New("could not validate credentials")
	ErrForbidden    = errors.New("not allowed to modify this resource")
)

type Service struct {
	store  *store.Store
	mojo   *reputation.Engine
	ranker *ranking.Ranker
	media  *media.Store
	tokens *auth.Manager
}

func New(st *store.Store, ranker *ranking.Ranker, images *media.Store, tokens *auth.Manager) *Service {
	return &Service{
		store:  st,
		mojo:   reputation.NewEngine(st),
		ranker: ranker,
		media:  images,
		tokens: tokens,
	}
}

// recompute refreshes userID's Mojo. A failure is logged and dropped so the
// mutation that triggered it still succeeds.
func (s *Service) recompute(ctx context.Context, userIDs ...string) {
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.mojo.Recompute(ctx, id); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", id).Msg("mojo recompute failed")
		}
	}
}

// Image is an uploaded file.
type Image struct {
	ContentType string
	Data        []byte
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
