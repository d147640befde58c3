package models

import "time"

type User struct {
	ID           string
	Email        string
	Username     string
	Bio          string
	Avatar       string
	PasswordHash string
	Mojo         float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Post struct {
	ID        string
	AuthorID  string
	Author    string
	Title     string
	Content   string
	Hashtags  []string
	Image     string
	Visits    int
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Author    string
	Content   string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Rating is unique per (PostID, UserID); a second submission updates Value.
type Rating struct {
	ID        string
	PostID    string
	UserID    string
	Value     int
	CreatedAt time.Time
}

type Follow struct {
	ID          string
	FollowerID  string
	FollowingID string
	CreatedAt   time.Time
}

// PostStats are the read-time aggregates of a post. They are never stored.
type PostStats struct {
	AverageRating float64
	RatingsCount  int
	CommentsCount int
}

// AverageRating is the flat mean of the given ratings, 0 when empty.
func AverageRating(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Value
	}
	return float64(sum) / float64(len(ratings))
}
