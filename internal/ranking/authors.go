package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"beatpost/internal/metrics"
	"beatpost/internal/models"
	"beatpost/internal/store"
)

type AuthorSort string

const (
	AuthorsByMojoDesc   AuthorSort = "mojo_desc"
	AuthorsByMojoAsc    AuthorSort = "mojo_asc"
	AuthorsByPostsDesc  AuthorSort = "posts_desc"
	AuthorsByPostsAsc   AuthorSort = "posts_asc"
	AuthorsByRatingDesc AuthorSort = "rating_desc"
	AuthorsByRatingAsc  AuthorSort = "rating_asc"
)

const DefaultAuthorsLimit = 20

// Author is a directory entry. AverageRating is the flat mean over every
// rating on every post of the author, unlike the per-post mean inside Mojo.
type Author struct {
	User           models.User
	PostsCount     int
	TotalVisits    int
	FollowersCount int
	RatingsCount   int
	AverageRating  float64
}

type AuthorQuery struct {
	Search string
	Sort   AuthorSort
	Skip   int
	Limit  int
}

type AuthorPage struct {
	Authors []Author
	Total   int
	Skip    int
	Limit   int
}

// less reports whether a sorts before b. Unknown keys fall back to Mojo
// descending.
func (s AuthorSort) less(a, b Author) bool {
	switch s {
	case AuthorsByMojoAsc:
		return a.User.Mojo < b.User.Mojo
	case AuthorsByPostsDesc:
		return a.PostsCount > b.PostsCount
	case AuthorsByPostsAsc:
		return a.PostsCount < b.PostsCount
	case AuthorsByRatingDesc:
		return a.AverageRating > b.AverageRating
	case AuthorsByRatingAsc:
		return a.AverageRating < b.AverageRating
	default:
		return a.User.Mojo > b.User.Mojo
	}
}

// Authors lists users with at least one post. The whole directory is
// enriched and sorted before the page is cut; ties keep user creation order.
func (r *Ranker) Authors(ctx context.Context, q AuthorQuery) (AuthorPage, error) {
	start := time.Now()
	if q.Limit <= 0 {
		q.Limit = DefaultAuthorsLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	rows, err := r.store.AuthorRows(ctx, q.Search)
	if err != nil {
		return AuthorPage{}, err
	}

	authors := make([]Author, 0, len(rows))
	for _, row := range rows {
		a, err := r.enrichAuthor(ctx, row)
		if err != nil {
			return AuthorPage{}, err
		}
		authors = append(authors, a)
	}
	sort.SliceStable(authors, func(i, j int) bool {
		return q.Sort.less(authors[i], authors[j])
	})
	metrics.RecordRanking("authors", len(authors), time.Since(start))

	return AuthorPage{
		Authors: page(authors, q.Skip, q.Limit),
		Total:   len(authors),
		Skip:    q.Skip,
		Limit:   q.Limit,
	}, nil
}

func (r *Ranker) enrichAuthor(ctx context.Context, row store.AuthorRow) (Author, error) {
	a := Author{User: row.User, PostsCount: row.PostsCount, TotalVisits: row.TotalVisits}
	posts, err := r.store.ListPosts(ctx, store.PostFilter{AuthorID: row.User.ID})
	if err != nil {
		return a, fmt.Errorf("load posts of %s: %w", row.User.ID, err)
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	ratings, err := r.store.RatingsForPosts(ctx, ids)
	if err != nil {
		return a, fmt.Errorf("load ratings of %s: %w", row.User.ID, err)
	}
	a.RatingsCount = len(ratings)
	a.AverageRating = models.AverageRating(ratings)
	if a.FollowersCount, err = r.store.CountFollowers(ctx, row.User.ID); err != nil {
		return a, fmt.Errorf("count followers of %s: %w", row.User.ID, err)
	}
	return a, nil
}
