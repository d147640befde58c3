package store

import (
	"context"
	"database/sql"
	"fmt"

	"beatpost/internal/models"
)

type HashtagCount struct {
	Tag   string
	Count int
}

// PopularHashtags groups post hashtags and returns the most used first.
func (s *Store) PopularHashtags(ctx context.Context, limit int) ([]HashtagCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag, COUNT(*) AS n FROM post_hashtags
		GROUP BY tag ORDER BY n DESC, tag ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select hashtags: %w", err)
	}
	defer rows.Close()
	out := []HashtagCount{}
	for rows.Next() {
		var h HashtagCount
		if err := rows.Scan(&h.Tag, &h.Count); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AuthorRow is a user joined with the posts they authored.
type AuthorRow struct {
	User        models.User
	PostsCount  int
	TotalVisits int
}

// AuthorRows lists users with at least one post, in user creation order.
// search, when set, keeps only users whose username or bio contains it,
// ignoring case.
func (s *Store) AuthorRows(ctx context.Context, search string) ([]AuthorRow, error) {
	q := `SELECT u.id, u.email, u.username, u.bio, u.avatar, u.password_hash, u.mojo, u.created_at, u.updated_at,
		COUNT(p.id), COALESCE(SUM(p.visits), 0)
		FROM users u JOIN posts p ON p.author_id = u.id`
	var args []any
	if search != "" {
		pat := containsPattern(search)
		q += ` WHERE unicode_lower(u.username) LIKE ? ESCAPE '\' OR unicode_lower(COALESCE(u.bio, '')) LIKE ? ESCAPE '\'`
		args = append(args, pat, pat)
	}
	q += ` GROUP BY u.id ORDER BY u.created_at, u.rowid`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select authors: %w", err)
	}
	defer rows.Close()
	var out []AuthorRow
	for rows.Next() {
		var a AuthorRow
		var bio, avatar sql.NullString
		var created, updated int64
		if err := rows.Scan(&a.User.ID, &a.User.Email, &a.User.Username, &bio, &avatar, &a.User.PasswordHash,
			&a.User.Mojo, &created, &updated, &a.PostsCount, &a.TotalVisits); err != nil {
			return nil, err
		}
		a.User.Bio = bio.String
		a.User.Avatar = avatar.String
		a.User.CreatedAt = fromNanos(created)
		a.User.UpdatedAt = fromNanos(updated)
		out = append(out, a)
	}
	return out, rows.Err()
}
