package ranking

import (
	"context"
	"sort"
	"time"

	"beatpost/internal/metrics"
	"beatpost/internal/store"
)

type UserPostSort string

const (
	UserPostsByVisitsDesc UserPostSort = "visits_desc"
	UserPostsByVisitsAsc  UserPostSort = "visits_asc"
	UserPostsByDateDesc   UserPostSort = "date_desc"
	UserPostsByDateAsc    UserPostSort = "date_asc"
	UserPostsByRatingDesc UserPostSort = "rating_desc"
	UserPostsByRatingAsc  UserPostSort = "rating_asc"
)

const DefaultUserPostsLimit = 100

type UserPostQuery struct {
	AuthorID string
	// Archived nil lists both archived and live posts.
	Archived *bool
	Search   string
	Sort     UserPostSort
	Skip     int
	Limit    int
}

var userPostOrder = map[UserPostSort]store.PostSort{
	UserPostsByVisitsDesc: store.SortMostVisited,
	UserPostsByVisitsAsc:  store.SortLeastVisited,
	UserPostsByDateDesc:   store.SortNewest,
	UserPostsByDateAsc:    store.SortOldest,
}

// UserPosts lists one author's posts with stats. Visit and date orders are
// paged by the store; rating orders score every matching post first and
// page afterwards.
func (r *Ranker) UserPosts(ctx context.Context, q UserPostQuery) ([]PostWithStats, error) {
	start := time.Now()
	if q.Limit <= 0 {
		q.Limit = DefaultUserPostsLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	f := store.PostFilter{AuthorID: q.AuthorID, Archived: q.Archived, Search: q.Search}

	byRating := q.Sort == UserPostsByRatingDesc || q.Sort == UserPostsByRatingAsc
	if !byRating {
		f.Sort = userPostOrder[q.Sort]
		f.Skip, f.Limit = q.Skip, q.Limit
	}
	posts, err := r.store.ListPosts(ctx, f)
	if err != nil {
		return nil, err
	}
	out, err := r.WithStats(ctx, posts)
	if err != nil {
		return nil, err
	}
	metrics.RecordRanking("user_posts", len(out), time.Since(start))
	if !byRating {
		return out, nil
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.Sort == UserPostsByRatingAsc {
			return out[i].Stats.AverageRating < out[j].Stats.AverageRating
		}
		return out[i].Stats.AverageRating > out[j].Stats.AverageRating
	})
	return page(out, q.Skip, q.Limit), nil
}
