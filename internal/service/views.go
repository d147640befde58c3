package service

import (
	"context"

	"beatpost/internal/auth"
	"beatpost/internal/ranking"
	"beatpost/internal/store"
)

const PopularHashtagsLimit = 20

func (s *Service) Frontpage(ctx context.Context) ([]ranking.RankedPost, error) {
	return s.ranker.Frontpage(ctx)
}

func (s *Service) Ranks(ctx context.Context, hashtag string) ([]ranking.RankedPost, error) {
	return s.ranker.Ranks(ctx, hashtag)
}

func (s *Service) Authors(ctx context.Context, q ranking.AuthorQuery) (ranking.AuthorPage, error) {
	return s.ranker.Authors(ctx, q)
}

// UserPosts is only open to the owner of the listed posts.
func (s *Service) UserPosts(ctx context.Context, id auth.Identity, q ranking.UserPostQuery) ([]ranking.PostWithStats, error) {
	if q.AuthorID != id.UserID {
		return nil, ErrForbidden
	}
	return s.ranker.UserPosts(ctx, q)
}

func (s *Service) PopularHashtags(ctx context.Context) ([]store.HashtagCount, error) {
	return s.store.PopularHashtags(ctx, PopularHashtagsLimit)
}

// RecomputeAllMojo rebuilds every user's Mojo from the base entities.
func (s *Service) RecomputeAllMojo(ctx context.Context) (int, error) {
	ids, err := s.store.UserIDs(ctx)
	if err != nil {
		return 0, err
	}
	return s.mojo.RecomputeAll(ctx, ids)
}

// RecomputeMojo rebuilds one user's Mojo and reports the new value.
func (s *Service) RecomputeMojo(ctx context.Context, userID string) (float64, error) {
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		return 0, err
	}
	return s.mojo.Recompute(ctx, userID)
}
