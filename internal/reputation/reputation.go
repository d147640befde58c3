// Package reputation computes a user's Mojo from their posts, the ratings
// those posts received, the comments the user wrote and the user's followers.
package reputation

import (
	"context"
	"fmt"
	"time"

	"beatpost/internal/logging"
	"beatpost/internal/metrics"
	"beatpost/internal/models"
	"beatpost/internal/store"
)

const (
	PostWeight        = 5.0
	QualityWeight     = 10.0
	VisitWeight       = 0.1
	InteractionWeight = 1.0
	FollowerWeight    = 3.0
)

// Inputs are the base counts Mojo is derived from.
type Inputs struct {
	Posts int
	// PostAverageSum adds up each post's own average rating. Posts without
	// ratings contribute 0 but still count in Posts.
	PostAverageSum   float64
	RatingsReceived  int
	Visits           int
	CommentsAuthored int
	Followers        int
}

// AverageQuality is the mean of per-post averages, 0 without posts.
func (in Inputs) AverageQuality() float64 {
	if in.Posts == 0 {
		return 0
	}
	return in.PostAverageSum / float64(in.Posts)
}

// Interactions counts ratings received on own posts plus comments written
// anywhere.
func (in Inputs) Interactions() int {
	return in.RatingsReceived + in.CommentsAuthored
}

func Compute(in Inputs) float64 {
	return PostWeight*float64(in.Posts) +
		QualityWeight*in.AverageQuality() +
		VisitWeight*float64(in.Visits) +
		InteractionWeight*float64(in.Interactions()) +
		FollowerWeight*float64(in.Followers)
}

// Store is the slice of persistence the engine reads and writes.
type Store interface {
	PostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error)
	RatingsForPost(ctx context.Context, postID string) ([]models.Rating, error)
	CountComments(ctx context.Context, f store.CommentFilter) (int, error)
	CountFollowers(ctx context.Context, userID string) (int, error)
	SetMojo(ctx context.Context, userID string, mojo float64) error
}

type Engine struct {
	store Store
}

func NewEngine(s Store) *Engine {
	return &Engine{store: s}
}

// Gather loads the inputs for userID from the base entities.
func (e *Engine) Gather(ctx context.Context, userID string) (Inputs, error) {
	var in Inputs
	posts, err := e.store.PostsByAuthor(ctx, userID)
	if err != nil {
		return in, fmt.Errorf("load posts: %w", err)
	}
	in.Posts = len(posts)
	for _, p := range posts {
		ratings, err := e.store.RatingsForPost(ctx, p.ID)
		if err != nil {
			return in, fmt.Errorf("load ratings of %s: %w", p.ID, err)
		}
		in.PostAverageSum += models.AverageRating(ratings)
		in.RatingsReceived += len(ratings)
		in.Visits += p.Visits
	}
	if in.CommentsAuthored, err = e.store.CountComments(ctx, store.CommentFilter{AuthorID: userID}); err != nil {
		return in, fmt.Errorf("count comments: %w", err)
	}
	if in.Followers, err = e.store.CountFollowers(ctx, userID); err != nil {
		return in, fmt.Errorf("count followers: %w", err)
	}
	return in, nil
}

// Recompute rebuilds userID's Mojo and overwrites the stored value. Two
// concurrent recomputes for the same user race and the last write wins.
func (e *Engine) Recompute(ctx context.Context, userID string) (mojo float64, err error) {
	start := time.Now()
	defer func() { metrics.RecordMojo(err, time.Since(start)) }()

	in, err := e.Gather(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("recompute mojo for %s: %w", userID, err)
	}
	mojo = Compute(in)
	if err = e.store.SetMojo(ctx, userID, mojo); err != nil {
		return 0, fmt.Errorf("persist mojo for %s: %w", userID, err)
	}
	logging.Ctx(ctx).Debug().
		Str("user_id", userID).
		Int("posts", in.Posts).
		Int("interactions", in.Interactions()).
		Int("followers", in.Followers).
		Float64("mojo", mojo).
		Msg("mojo recomputed")
	return mojo, nil
}

// RecomputeAll rebuilds Mojo for every id and stops at the first failure.
func (e *Engine) RecomputeAll(ctx context.Context, userIDs []string) (int, error) {
	for i, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := e.Recompute(ctx, id); err != nil {
			return i, err
		}
	}
	return len(userIDs), nil
}
