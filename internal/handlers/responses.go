package handlers

import (
	"time"

	"beatpost/internal/models"
	"beatpost/internal/ranking"
	"beatpost/internal/service"
	"beatpost/internal/store"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Bio            *string   `json:"bio"`
	Avatar         *string   `json:"avatar"`
	Mojo           float64   `json:"mojo"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	PostsCount     int       `json:"posts_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newUserResponse(p *service.Profile) userResponse {
	return userResponse{
		ID:             p.User.ID,
		Username:       p.User.Username,
		Email:          p.User.Email,
		Bio:            optional(p.User.Bio),
		Avatar:         optional(p.User.Avatar),
		Mojo:           p.User.Mojo,
		FollowersCount: p.Followers,
		FollowingCount: p.Following,
		PostsCount:     p.Posts,
		CreatedAt:      p.User.CreatedAt,
	}
}

type postResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Hashtags       []string  `json:"hashtags"`
	Image          *string   `json:"image"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Visits         int       `json:"visits"`
	Archived       bool      `json:"archived"`
	AverageRating  float64   `json:"average_rating"`
	RatingsCount   int       `json:"ratings_count"`
	CommentsCount  int       `json:"comments_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newPostResponse(ps ranking.PostWithStats) postResponse {
	p := ps.Post
	tags := p.Hashtags
	if tags == nil {
		tags = []string{}
	}
	return postResponse{
		ID:             p.ID,
		Title:          p.Title,
		Content:        p.Content,
		Hashtags:       tags,
		Image:          optional(p.Image),
		AuthorID:       p.AuthorID,
		AuthorUsername: p.Author,
		Visits:         p.Visits,
		Archived:       p.Archived,
		AverageRating:  ps.Stats.AverageRating,
		RatingsCount:   ps.Stats.RatingsCount,
		CommentsCount:  ps.Stats.CommentsCount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func newPostList(posts []ranking.PostWithStats) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = newPostResponse(p)
	}
	return out
}

func newRankedList(posts []ranking.RankedPost) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = newPostResponse(p.PostWithStats)
	}
	return out
}

type ranksResponse struct {
	Posts []postResponse `json:"posts"`
}

type commentResponse struct {
	ID             string     `json:"id"`
	PostID         string     `json:"post_id"`
	AuthorID       string     `json:"author_id"`
	AuthorUsername string     `json:"author_username"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

func newCommentResponse(c models.Comment) commentResponse {
	return commentResponse{
		ID:             c.ID,
		PostID:         c.PostID,
		AuthorID:       c.AuthorID,
		AuthorUsername: c.Author,
		Content:        c.Content,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

type ratingResponse struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

type archiveResponse struct {
	Message  string `json:"message"`
	Archived bool   `json:"archived"`
}

type followResponse struct {
	Message string `json:"message"`
	Action  string `json:"action"`
}

type authorResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Bio            *string   `json:"bio"`
	Avatar         *string   `json:"avatar"`
	Mojo           float64   `json:"mojo"`
	PostsCount     int       `json:"posts_count"`
	FollowersCount int       `json:"followers_count"`
	AverageRating  float64   `json:"average_rating"`
	TotalVisits    int       `json:"total_visits"`
	RatingsCount   int       `json:"ratings_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type authorsResponse struct {
	Authors []authorResponse `json:"authors"`
	Total   int              `json:"total"`
	Skip    int              `json:"skip"`
	Limit   int              `json:"limit"`
}

func newAuthorsResponse(pg ranking.AuthorPage) authorsResponse {
	out := authorsResponse{Authors: make([]authorResponse, len(pg.Authors)), Total: pg.Total, Skip: pg.Skip, Limit: pg.Limit}
	for i, a := range pg.Authors {
		out.Authors[i] = authorResponse{
			ID:             a.User.ID,
			Username:       a.User.Username,
			Bio:            optional(a.User.Bio),
			Avatar:         optional(a.User.Avatar),
			Mojo:           a.User.Mojo,
			PostsCount:     a.PostsCount,
			FollowersCount: a.FollowersCount,
			AverageRating:  a.AverageRating,
			TotalVisits:    a.TotalVisits,
			RatingsCount:   a.RatingsCount,
			CreatedAt:      a.User.CreatedAt,
		}
	}
	return out
}

type hashtagResponse struct {
	Hashtag string `json:"hashtag"`
	Count   int    `json:"count"`
}

func newHashtagList(tags []store.HashtagCount) []hashtagResponse {
	out := make([]hashtagResponse, len(tags))
	for i, t := range tags {
		out[i] = hashtagResponse{Hashtag: t.Tag, Count: t.Count}
	}
	return out
}
