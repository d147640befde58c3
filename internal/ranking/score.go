// Package ranking builds the read-time ordered views over posts and
// authors. Nothing here is stored; every call scores its candidates from
// scratch.
package ranking

import (
	"sort"

	"beatpost/internal/models"
)

// Weights of the post relevance score.
type Weights struct {
	Visit   float64
	Rating  float64
	Comment float64
	Mojo    float64
	Average float64
}

var (
	FrontpageWeights = Weights{Visit: 0.1, Rating: 2, Comment: 1.5, Mojo: 0.01, Average: 3}
	// RanksWeights drop the author Mojo term.
	RanksWeights = Weights{Visit: 0.1, Rating: 2, Comment: 1.5, Average: 3}
)

func (w Weights) Score(visits int, stats models.PostStats, authorMojo float64) float64 {
	return float64(visits)*w.Visit +
		float64(stats.RatingsCount)*w.Rating +
		float64(stats.CommentsCount)*w.Comment +
		authorMojo*w.Mojo +
		stats.AverageRating*w.Average
}

// PostWithStats is a post with its derived aggregates.
type PostWithStats struct {
	Post  models.Post
	Stats models.PostStats
}

type RankedPost struct {
	PostWithStats
	AuthorMojo float64
	Score      float64
}

// rank sorts by score, highest first. Equal scores keep their input order.
func rank(posts []RankedPost, top int) []RankedPost {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Score > posts[j].Score
	})
	if top > 0 && len(posts) > top {
		posts = posts[:top]
	}
	return posts
}

// page returns items[skip:skip+limit], clamped to the slice bounds.
func page[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return items[skip:end]
}
