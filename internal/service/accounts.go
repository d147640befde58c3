package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"beatpost/internal/auth"
	"beatpost/internal/media"
	"beatpost/internal/models"
	"beatpost/internal/store"
	"beatpost/internal/validation"
)

type RegisterInput struct {
	Username string `json:"username" validate:"min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
	Bio      string `json:"bio" validate:"max=500"`
	Avatar   string `json:"avatar" validate:"max=2048"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Profile is a user with follow and post counts.
type Profile struct {
	User      models.User
	Followers int
	Following int
	Posts     int
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Profile, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Bio = strings.TrimSpace(in.Bio)
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		Bio:          in.Bio,
		Avatar:       in.Avatar,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: email or username already registered", store.ErrConflict)
		}
		return nil, err
	}
	return &Profile{User: *u}, nil
}

// Login returns a bearer token. Unknown email and wrong password fail the
// same way.
func (s *Service) Login(ctx context.Context, in LoginInput) (string, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.ValidateStruct(in); err != nil {
		return "", err
	}
	u, err := s.store.UserByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: incorrect email or password", ErrUnauthorized)
	}
	if err != nil {
		return "", err
	}
	if !auth.CheckPassword(in.Password, u.PasswordHash) {
		return "", fmt.Errorf("%w: incorrect email or password", ErrUnauthorized)
	}
	return s.tokens.Issue(u.ID, u.Username)
}

// Authenticate resolves a bearer token to a live user. The username in the
// token must still belong to the user it was issued for.
func (s *Service) Authenticate(ctx context.Context, token string) (auth.Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	u, err := s.store.UserByUsername(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return auth.Identity{}, ErrUnauthorized
	}
	if err != nil {
		return auth.Identity{}, err
	}
	if claims.UserID != "" && claims.UserID != u.ID {
		return auth.Identity{}, ErrUnauthorized
	}
	return auth.Identity{UserID: u.ID, Username: u.Username}, nil
}

func (s *Service) profile(ctx context.Context, u *models.User) (*Profile, error) {
	p := &Profile{User: *u}
	var err error
	if p.Followers, err = s.store.CountFollowers(ctx, u.ID); err != nil {
		return nil, err
	}
	if p.Following, err = s.store.CountFollowing(ctx, u.ID); err != nil {
		return nil, err
	}
	if p.Posts, err = s.store.CountPosts(ctx, store.PostFilter{AuthorID: u.ID}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Me(ctx context.Context, id auth.Identity) (*Profile, error) {
	u, err := s.store.UserByID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, u)
}

func (s *Service) ProfileByUsername(ctx context.Context, username string) (*Profile, error) {
	u, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, u)
}

// ProfileInput changes only the fields that are set. An empty Bio clears
// the bio.
type ProfileInput struct {
	Username *string
	Bio      *string
	Avatar   *Image
}

func (s *Service) UpdateProfile(ctx context.Context, id auth.Identity, in ProfileInput) (*Profile, error) {
	var upd store.ProfileUpdate
	if in.Username != nil {
		name := trimPtr(in.Username)
		if n := len([]rune(*name)); n < 3 || n > 30 {
			return nil, validation.Field("username", "username must be between 3 and 30 characters")
		}
		taken, err := s.store.UsernameTaken(ctx, *name, id.UserID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: username already taken", store.ErrConflict)
		}
		upd.Username = name
	}
	if in.Bio != nil {
		bio := trimPtr(in.Bio)
		if len([]rune(*bio)) > 500 {
			return nil, validation.Field("bio", "bio must be at most 500 characters")
		}
		upd.Bio = bio
	}
	if in.Avatar != nil {
		if !s.media.Enabled() {
			return nil, media.ErrImagesUnavailable
		}
		if !strings.HasPrefix(in.Avatar.ContentType, "image/") {
			return nil, validation.Field("avatar", "avatar must be an image")
		}
		if len(in.Avatar.Data) > media.MaxAvatarBytes {
			return nil, validation.Field("avatar", "avatar must be at most 2MB")
		}
		url, err := s.media.UploadAvatar(ctx, id.UserID, media.ImageContentType, in.Avatar.Data)
		if err != nil {
			return nil, err
		}
		upd.Avatar = &url
	}
	if upd.Username == nil && upd.Bio == nil && upd.Avatar == nil {
		return nil, validation.Field("profile", "no fields to update")
	}
	if err := s.store.UpdateProfile(ctx, id.UserID, upd); err != nil {
		return nil, err
	}
	return s.Me(ctx, id)
}
