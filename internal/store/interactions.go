package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"beatpost/internal/models"

	"github.com/google/uuid"
)

// UpsertRating stores r as the rating of (r.PostID, r.UserID). An existing
// rating keeps its id and creation time and only takes the new value.
func (s *Store) UpsertRating(ctx context.Context, r *models.Rating) error {
	now := nanos(s.now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO ratings(id,post_id,user_id,value,created_at)
		VALUES(?,?,?,?,?)
		ON CONFLICT(post_id,user_id) DO UPDATE SET value=excluded.value, updated_at=excluded.created_at`,
		uuid.New().String(), r.PostID, r.UserID, r.Value, now)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	var created int64
	err = s.db.QueryRowContext(ctx, `SELECT id, created_at FROM ratings WHERE post_id = ? AND user_id = ?`, r.PostID, r.UserID).
		Scan(&r.ID, &created)
	if err != nil {
		return fmt.Errorf("read rating: %w", err)
	}
	r.CreatedAt = fromNanos(created)
	return nil
}

func (s *Store) queryRatings(ctx context.Context, q string, args ...any) ([]models.Rating, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select ratings: %w", err)
	}
	defer rows.Close()
	var out []models.Rating
	for rows.Next() {
		var r models.Rating
		var created int64
		if err := rows.Scan(&r.ID, &r.PostID, &r.UserID, &r.Value, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = fromNanos(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) RatingsForPost(ctx context.Context, postID string) ([]models.Rating, error) {
	return s.queryRatings(ctx, `SELECT id, post_id, user_id, value, created_at FROM ratings WHERE post_id = ? ORDER BY created_at, rowid`, postID)
}

// RatingsForPosts returns every rating whose post id is in postIDs.
func (s *Store) RatingsForPosts(ctx context.Context, postIDs []string) ([]models.Rating, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	return s.queryRatings(ctx, `SELECT id, post_id, user_id, value, created_at FROM ratings WHERE post_id IN (`+placeholders(len(postIDs))+`) ORDER BY created_at, rowid`,
		stringArgs(postIDs)...)
}

// PostStats derives the average rating, rating count and comment count of a post.
func (s *Store) PostStats(ctx context.Context, postID string) (models.PostStats, error) {
	ratings, err := s.RatingsForPost(ctx, postID)
	if err != nil {
		return models.PostStats{}, err
	}
	comments, err := s.CountComments(ctx, CommentFilter{PostID: postID})
	if err != nil {
		return models.PostStats{}, err
	}
	return models.PostStats{
		AverageRating: models.AverageRating(ratings),
		RatingsCount:  len(ratings),
		CommentsCount: comments,
	}, nil
}

const commentSelect = `SELECT c.id, c.post_id, c.author_id, u.username, c.content, c.created_at, c.updated_at
	FROM comments c JOIN users u ON u.id = c.author_id`

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	var created int64
	var updated sql.NullInt64
	if err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Author, &c.Content, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt = fromNanos(created)
	if updated.Valid {
		t := fromNanos(updated.Int64)
		c.UpdatedAt = &t
	}
	return &c, nil
}

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	c.ID = uuid.New().String()
	c.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO comments(id,post_id,author_id,content,created_at) VALUES(?,?,?,?,?)`,
		c.ID, c.PostID, c.AuthorID, c.Content, nanos(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *Store) CommentByID(ctx context.Context, id string) (*models.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, commentSelect+` WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select comment: %w", err)
	}
	return c, nil
}

// CommentsForPost lists a post's comments, oldest first.
func (s *Store) CommentsForPost(ctx context.Context, postID string) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, commentSelect+` WHERE c.post_id = ? ORDER BY c.created_at, c.rowid`, postID)
	if err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	defer rows.Close()
	out := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateComment(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`, content, nanos(s.now()), id)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return expectAffected(res)
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return expectAffected(res)
}

type CommentFilter struct {
	PostID   string
	AuthorID string
}

func (s *Store) CountComments(ctx context.Context, f CommentFilter) (int, error) {
	var conds []string
	var args []any
	if f.PostID != "" {
		conds = append(conds, "post_id = ?")
		args = append(args, f.PostID)
	}
	if f.AuthorID != "" {
		conds = append(conds, "author_id = ?")
		args = append(args, f.AuthorID)
	}
	q := `SELECT COUNT(*) FROM comments`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

func (s *Store) FollowExists(ctx context.Context, followerID, followingID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows WHERE follower_id = ? AND following_id = ?`, followerID, followingID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("select follow: %w", err)
	}
	return n > 0, nil
}

func (s *Store) CreateFollow(ctx context.Context, f *models.Follow) error {
	f.ID = uuid.New().String()
	f.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO follows(id,follower_id,following_id,created_at) VALUES(?,?,?,?)`,
		f.ID, f.FollowerID, f.FollowingID, nanos(f.CreatedAt))
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

func (s *Store) DeleteFollow(ctx context.Context, followerID, followingID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM follows WHERE follower_id = ? AND following_id = ?`, followerID, followingID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return expectAffected(res)
}

func (s *Store) CountFollowers(ctx context.Context, userID string) (int, error) {
	return s.countFollows(ctx, "following_id", userID)
}

func (s *Store) CountFollowing(ctx context.Context, userID string) (int, error) {
	return s.countFollows(ctx, "follower_id", userID)
}

func (s *Store) countFollows(ctx context.Context, column, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows WHERE `+column+` = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count follows: %w", err)
	}
	return n, nil
}
