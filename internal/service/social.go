package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"beatpost/internal/auth"
	"beatpost/internal/models"
	"beatpost/internal/store"
	"beatpost/internal/validation"
)

type CommentInput struct {
	Content string `json:"content" validate:"min=1,max=1000"`
}

func commentNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("comment %w", store.ErrNotFound)
	}
	return err
}

func (s *Service) CreateComment(ctx context.Context, id auth.Identity, postID string, in CommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	if _, err := s.store.PostByID(ctx, postID); err != nil {
		return nil, postNotFound(err)
	}
	c := &models.Comment{PostID: postID, AuthorID: id.UserID, Author: id.Username, Content: in.Content}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	s.recompute(ctx, id.UserID)
	return c, nil
}

// Comments lists a post's comments, oldest first.
func (s *Service) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	return s.store.CommentsForPost(ctx, postID)
}

func (s *Service) ownedComment(ctx context.Context, id auth.Identity, commentID string) (*models.Comment, error) {
	c, err := s.store.CommentByID(ctx, commentID)
	if err != nil {
		return nil, commentNotFound(err)
	}
	if c.AuthorID != id.UserID {
		return nil, ErrForbidden
	}
	return c, nil
}

// UpdateComment edits the text only; it does not change anyone's Mojo.
func (s *Service) UpdateComment(ctx context.Context, id auth.Identity, commentID string, in CommentInput) (*models.Comment, error) {
	if _, err := s.ownedComment(ctx, id, commentID); err != nil {
		return nil, err
	}
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateComment(ctx, commentID, in.Content); err != nil {
		return nil, commentNotFound(err)
	}
	c, err := s.store.CommentByID(ctx, commentID)
	return c, commentNotFound(err)
}

func (s *Service) DeleteComment(ctx context.Context, id auth.Identity, commentID string) error {
	if _, err := s.ownedComment(ctx, id, commentID); err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return commentNotFound(err)
	}
	s.recompute(ctx, id.UserID)
	return nil
}

// ToggleFollow follows username, or unfollows when already following.
// It reports whether the caller follows the target afterwards.
func (s *Service) ToggleFollow(ctx context.Context, id auth.Identity, username string) (bool, error) {
	target, err := s.store.UserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("user %w", store.ErrNotFound)
	}
	if err != nil {
		return false, err
	}
	if target.ID == id.UserID {
		return false, validation.Field("username", "you cannot follow yourself")
	}

	exists, err := s.store.FollowExists(ctx, id.UserID, target.ID)
	if err != nil {
		return false, err
	}
	if exists {
		err = s.store.DeleteFollow(ctx, id.UserID, target.ID)
	} else {
		err = s.store.CreateFollow(ctx, &models.Follow{FollowerID: id.UserID, FollowingID: target.ID})
	}
	// a concurrent toggle may have won the race; the edge is in the state we wanted
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		err = nil
	}
	if err != nil {
		return false, err
	}
	s.recompute(ctx, target.ID)
	return !exists, nil
}
