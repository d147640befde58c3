package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"beatpost/internal/models"

	"github.com/google/uuid"
)

type PostSort int

const (
	SortNewest PostSort = iota
	SortOldest
	SortMostVisited
	SortLeastVisited
)

var postOrder = map[PostSort]string{
	SortNewest:       "p.created_at DESC, p.rowid DESC",
	SortOldest:       "p.created_at ASC, p.rowid ASC",
	SortMostVisited:  "p.visits DESC, p.created_at DESC, p.rowid DESC",
	SortLeastVisited: "p.visits ASC, p.created_at DESC, p.rowid DESC",
}

// PostFilter selects posts. Zero values mean "no constraint"; Limit 0 means
// unlimited.
type PostFilter struct {
	AuthorID string
	Hashtag  string
	Since    time.Time
	Archived *bool
	Search   string
	Sort     PostSort
	Skip     int
	Limit    int
}

func (f PostFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.AuthorID != "" {
		conds = append(conds, "p.author_id = ?")
		args = append(args, f.AuthorID)
	}
	if f.Hashtag != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM post_hashtags h WHERE h.post_id = p.id AND h.tag = ?)")
		args = append(args, f.Hashtag)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "p.created_at >= ?")
		args = append(args, nanos(f.Since))
	}
	if f.Archived != nil {
		conds = append(conds, "p.archived = ?")
		args = append(args, *f.Archived)
	}
	if f.Search != "" {
		pat := containsPattern(f.Search)
		conds = append(conds, `(unicode_lower(p.title) LIKE ? ESCAPE '\' OR unicode_lower(p.content) LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM post_hashtags h WHERE h.post_id = p.id AND unicode_lower(h.tag) LIKE ? ESCAPE '\'))`)
		args = append(args, pat, pat, pat)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const postSelect = `SELECT p.id, p.author_id, u.username, p.title, p.content, p.image, p.visits, p.archived, p.created_at, p.updated_at
	FROM posts p JOIN users u ON u.id = p.author_id`

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	var image sql.NullString
	var created, updated int64
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Author, &p.Title, &p.Content, &image, &p.Visits, &p.Archived, &created, &updated); err != nil {
		return nil, err
	}
	p.Image = image.String
	p.CreatedAt = fromNanos(created)
	p.UpdatedAt = fromNanos(updated)
	return &p, nil
}

// CreatePost inserts p and its hashtags, assigning ID and timestamps.
func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	p.ID = uuid.New().String()
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	p.Visits = 0
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO posts(id,author_id,title,content,image,visits,archived,created_at,updated_at)
			VALUES(?,?,?,?,?,0,?,?,?)`,
			p.ID, p.AuthorID, p.Title, p.Content, nullString(p.Image), p.Archived, nanos(p.CreatedAt), nanos(p.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert post: %w", err)
		}
		return replaceHashtags(ctx, tx, p.ID, p.Hashtags)
	})
}

func replaceHashtags(ctx context.Context, tx *sql.Tx, postID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_hashtags WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("clear hashtags: %w", err)
	}
	for i, tag := range tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO post_hashtags(post_id,position,tag) VALUES(?,?,?)`, postID, i, tag); err != nil {
			return fmt.Errorf("insert hashtag: %w", err)
		}
	}
	return nil
}

func (s *Store) PostByID(ctx context.Context, id string) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select post: %w", err)
	}
	posts := []models.Post{*p}
	if err := s.loadHashtags(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// ListPosts returns the posts matching f, hashtags included.
func (s *Store) ListPosts(ctx context.Context, f PostFilter) ([]models.Post, error) {
	where, args := f.where()
	order, ok := postOrder[f.Sort]
	if !ok {
		order = postOrder[SortNewest]
	}
	q := postSelect + where + " ORDER BY " + order
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Skip)
	} else if f.Skip > 0 {
		q += " LIMIT -1 OFFSET ?"
		args = append(args, f.Skip)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	defer rows.Close()
	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadHashtags(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Store) CountPosts(ctx context.Context, f PostFilter) (int, error) {
	where, args := f.where()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

func (s *Store) PostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	return s.ListPosts(ctx, PostFilter{AuthorID: authorID})
}

func (s *Store) loadHashtags(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	index := make(map[string]int, len(posts))
	ids := make([]string, len(posts))
	for i := range posts {
		index[posts[i].ID] = i
		ids[i] = posts[i].ID
		posts[i].Hashtags = []string{}
	}
	rows, err := s.db.QueryContext(ctx, `SELECT post_id, tag FROM post_hashtags WHERE post_id IN (`+placeholders(len(ids))+`) ORDER BY post_id, position`, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("select hashtags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var postID, tag string
		if err := rows.Scan(&postID, &tag); err != nil {
			return err
		}
		i := index[postID]
		posts[i].Hashtags = append(posts[i].Hashtags, tag)
	}
	return rows.Err()
}

// UpdatePost rewrites title, content, hashtags and image and bumps updated_at.
func (s *Store) UpdatePost(ctx context.Context, p *models.Post) error {
	p.UpdatedAt = s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE posts SET title = ?, content = ?, image = ?, updated_at = ? WHERE id = ?`,
			p.Title, p.Content, nullString(p.Image), nanos(p.UpdatedAt), p.ID)
		if err != nil {
			return fmt.Errorf("update post: %w", err)
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		return replaceHashtags(ctx, tx, p.ID, p.Hashtags)
	})
}

func (s *Store) SetArchived(ctx context.Context, id string, archived bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET archived = ?, updated_at = ? WHERE id = ?`, archived, nanos(s.now()), id)
	if err != nil {
		return fmt.Errorf("archive post: %w", err)
	}
	return expectAffected(res)
}

// IncrementVisits atomically bumps the visit counter and returns the new value.
func (s *Store) IncrementVisits(ctx context.Context, id string) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET visits = visits + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("increment visits: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return 0, err
	}
	var visits int
	if err := s.db.QueryRowContext(ctx, `SELECT visits FROM posts WHERE id = ?`, id).Scan(&visits); err != nil {
		return 0, fmt.Errorf("read visits: %w", err)
	}
	return visits, nil
}

// DeletePost removes the post together with its comments, ratings and hashtags.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM comments WHERE post_id = ?`,
			`DELETE FROM ratings WHERE post_id = ?`,
			`DELETE FROM post_hashtags WHERE post_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete post dependents: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		return expectAffected(res)
	})
}
