package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beatpost/internal/metrics"
	"beatpost/internal/models"
	"beatpost/internal/store"
)

// Store is what the ranker reads.
type Store interface {
	ListPosts(ctx context.Context, f store.PostFilter) ([]models.Post, error)
	RatingsForPosts(ctx context.Context, postIDs []string) ([]models.Rating, error)
	CountComments(ctx context.Context, f store.CommentFilter) (int, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	AuthorRows(ctx context.Context, search string) ([]store.AuthorRow, error)
	CountFollowers(ctx context.Context, userID string) (int, error)
}

type Options struct {
	FrontpageWindow time.Duration
	FrontpageSize   int
	RanksSize       int
}

func DefaultOptions() Options {
	return Options{
		FrontpageWindow: 24 * time.Hour,
		FrontpageSize:   10,
		RanksSize:       20,
	}
}

type Ranker struct {
	store Store
	opts  Options
	now   func() time.Time
}

func NewRanker(s Store, opts Options) *Ranker {
	def := DefaultOptions()
	if opts.FrontpageWindow <= 0 {
		opts.FrontpageWindow = def.FrontpageWindow
	}
	if opts.FrontpageSize <= 0 {
		opts.FrontpageSize = def.FrontpageSize
	}
	if opts.RanksSize <= 0 {
		opts.RanksSize = def.RanksSize
	}
	return &Ranker{store: s, opts: opts, now: time.Now}
}

// SetClock overrides the time source used for the frontpage window.
func (r *Ranker) SetClock(now func() time.Time) {
	r.now = now
}

// WithStats derives ratings and comment aggregates for posts, keeping
// their order.
func (r *Ranker) WithStats(ctx context.Context, posts []models.Post) ([]PostWithStats, error) {
	out := make([]PostWithStats, len(posts))
	if len(posts) == 0 {
		return out, nil
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	ratings, err := r.store.RatingsForPosts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	byPost := make(map[string][]models.Rating, len(posts))
	for _, rt := range ratings {
		byPost[rt.PostID] = append(byPost[rt.PostID], rt)
	}
	for i, p := range posts {
		comments, err := r.store.CountComments(ctx, store.CommentFilter{PostID: p.ID})
		if err != nil {
			return nil, fmt.Errorf("count comments of %s: %w", p.ID, err)
		}
		rs := byPost[p.ID]
		out[i] = PostWithStats{
			Post: p,
			Stats: models.PostStats{
				AverageRating: models.AverageRating(rs),
				RatingsCount:  len(rs),
				CommentsCount: comments,
			},
		}
	}
	return out, nil
}

// Frontpage returns the best posts created within the trailing window.
func (r *Ranker) Frontpage(ctx context.Context) ([]RankedPost, error) {
	start := time.Now()
	posts, err := r.store.ListPosts(ctx, store.PostFilter{Since: r.now().Add(-r.opts.FrontpageWindow)})
	if err != nil {
		return nil, err
	}
	withStats, err := r.WithStats(ctx, posts)
	if err != nil {
		return nil, err
	}

	mojo := make(map[string]float64)
	ranked := make([]RankedPost, 0, len(withStats))
	for _, ps := range withStats {
		m, ok := mojo[ps.Post.AuthorID]
		if !ok {
			u, err := r.store.UserByID(ctx, ps.Post.AuthorID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				m = 0
			case err != nil:
				return nil, fmt.Errorf("load author %s: %w", ps.Post.AuthorID, err)
			default:
				m = u.Mojo
			}
			mojo[ps.Post.AuthorID] = m
		}
		ranked = append(ranked, RankedPost{
			PostWithStats: ps,
			AuthorMojo:    m,
			Score:         FrontpageWeights.Score(ps.Post.Visits, ps.Stats, m),
		})
	}
	metrics.RecordRanking("frontpage", len(ranked), time.Since(start))
	return rank(ranked, r.opts.FrontpageSize), nil
}

// Ranks scores all posts, or only those tagged hashtag when it is set.
func (r *Ranker) Ranks(ctx context.Context, hashtag string) ([]RankedPost, error) {
	start := time.Now()
	posts, err := r.store.ListPosts(ctx, store.PostFilter{Hashtag: hashtag})
	if err != nil {
		return nil, err
	}
	withStats, err := r.WithStats(ctx, posts)
	if err != nil {
		return nil, err
	}
	ranked := make([]RankedPost, len(withStats))
	for i, ps := range withStats {
		ranked[i] = RankedPost{
			PostWithStats: ps,
			Score:         RanksWeights.Score(ps.Post.Visits, ps.Stats, 0),
		}
	}
	metrics.RecordRanking("ranks", len(ranked), time.Since(start))
	return rank(ranked, r.opts.RanksSize), nil
}
