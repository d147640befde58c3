package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"beatpost/internal/auth"
	"beatpost/internal/models"
	"beatpost/internal/ranking"
	"beatpost/internal/store"
	"beatpost/internal/validation"

	"github.com/goccy/go-json"
)

const DefaultPostsLimit = 20

type PostInput struct {
	Title    string   `json:"title" validate:"min=20,max=80"`
	Content  string   `json:"content" validate:"min=150,max=10000"`
	Hashtags []string `json:"hashtags" validate:"min=1,max=3,dive,required,max=50"`
}

// ParseHashtags decodes the JSON array sent in the hashtags form field.
// Entries are trimmed; empty ones are kept so validation rejects them.
func ParseHashtags(raw string) ([]string, error) {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, validation.Field("hashtags", "hashtags must be a JSON list of strings")
	}
	for i, t := range tags {
		tags[i] = strings.TrimSpace(t)
	}
	return tags, nil
}

func (in *PostInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	for i, t := range in.Hashtags {
		in.Hashtags[i] = strings.TrimSpace(t)
	}
	return validation.ValidateStruct(in)
}

func postNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("post %w", store.ErrNotFound)
	}
	return err
}

func (s *Service) withStats(ctx context.Context, p *models.Post) (*ranking.PostWithStats, error) {
	out, err := s.ranker.WithStats(ctx, []models.Post{*p})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// ownedPost loads postID and checks that the caller wrote it.
func (s *Service) ownedPost(ctx context.Context, id auth.Identity, postID string) (*models.Post, error) {
	p, err := s.store.PostByID(ctx, postID)
	if err != nil {
		return nil, postNotFound(err)
	}
	if p.AuthorID != id.UserID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *Service) CreatePost(ctx context.Context, id auth.Identity, in PostInput, img *Image) (*ranking.PostWithStats, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	p := &models.Post{AuthorID: id.UserID, Author: id.Username, Title: in.Title, Content: in.Content, Hashtags: in.Hashtags}
	if img != nil {
		url, err := s.media.UploadPostImage(ctx, img.Data)
		if err != nil {
			return nil, err
		}
		p.Image = url
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return nil, err
	}
	s.recompute(ctx, id.UserID)
	return &ranking.PostWithStats{Post: *p}, nil
}

// GetPost counts a visit and returns the post with its stats.
func (s *Service) GetPost(ctx context.Context, postID string) (*ranking.PostWithStats, error) {
	if _, err := s.store.IncrementVisits(ctx, postID); err != nil {
		return nil, postNotFound(err)
	}
	p, err := s.store.PostByID(ctx, postID)
	if err != nil {
		return nil, postNotFound(err)
	}
	s.recompute(ctx, p.AuthorID)
	return s.withStats(ctx, p)
}

// ListPosts pages through all posts, newest first.
func (s *Service) ListPosts(ctx context.Context, skip, limit int, hashtag string) ([]ranking.PostWithStats, error) {
	if limit <= 0 {
		limit = DefaultPostsLimit
	}
	if skip < 0 {
		skip = 0
	}
	posts, err := s.store.ListPosts(ctx, store.PostFilter{Hashtag: hashtag, Skip: skip, Limit: limit})
	if err != nil {
		return nil, err
	}
	return s.ranker.WithStats(ctx, posts)
}

// UpdatePost keeps the existing image unless img is set.
func (s *Service) UpdatePost(ctx context.Context, id auth.Identity, postID string, in PostInput, img *Image) (*ranking.PostWithStats, error) {
	p, err := s.ownedPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if img != nil {
		url, err := s.media.UploadPostImage(ctx, img.Data)
		if err != nil {
			return nil, err
		}
		p.Image = url
	}
	p.Title, p.Content, p.Hashtags = in.Title, in.Content, in.Hashtags
	if err := s.store.UpdatePost(ctx, p); err != nil {
		return nil, postNotFound(err)
	}
	s.recompute(ctx, id.UserID)
	return s.withStats(ctx, p)
}

// DeletePost removes the post with its comments and ratings. The author and
// everyone who commented on it lose standing, so all of them are recomputed.
func (s *Service) DeletePost(ctx context.Context, id auth.Identity, postID string) error {
	if _, err := s.ownedPost(ctx, id, postID); err != nil {
		return err
	}
	comments, err := s.store.CommentsForPost(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		return postNotFound(err)
	}
	affected := []string{id.UserID}
	for _, c := range comments {
		affected = append(affected, c.AuthorID)
	}
	s.recompute(ctx, affected...)
	return nil
}

// ToggleArchive flips the archived flag and returns the new value.
func (s *Service) ToggleArchive(ctx context.Context, id auth.Identity, postID string) (bool, error) {
	p, err := s.ownedPost(ctx, id, postID)
	if err != nil {
		return false, err
	}
	archived := !p.Archived
	if err := s.store.SetArchived(ctx, postID, archived); err != nil {
		return false, postNotFound(err)
	}
	return archived, nil
}

type RateInput struct {
	Rating int `json:"rating" validate:"gte=1,lte=5"`
}

// Rate records the caller's rating of a post, replacing an earlier one.
func (s *Service) Rate(ctx context.Context, id auth.Identity, postID string, in RateInput) (*models.Rating, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	p, err := s.store.PostByID(ctx, postID)
	if err != nil {
		return nil, postNotFound(err)
	}
	r := &models.Rating{PostID: postID, UserID: id.UserID, Value: in.Rating}
	if err := s.store.UpsertRating(ctx, r); err != nil {
		return nil, err
	}
	s.recompute(ctx, p.AuthorID)
	return r, nil
}
