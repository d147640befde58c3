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

const userColumns = `id, email, username, bio, avatar, password_hash, mojo, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var bio, avatar sql.NullString
	var created, updated int64
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &bio, &avatar, &u.PasswordHash, &u.Mojo, &created, &updated); err != nil {
		return nil, err
	}
	u.Bio = bio.String
	u.Avatar = avatar.String
	u.CreatedAt = fromNanos(created)
	u.UpdatedAt = fromNanos(updated)
	return &u, nil
}

// CreateUser inserts u, assigning its ID and timestamps. A taken email or
// username yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.ID = uuid.New().String()
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	_, err := s.db.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES(?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.Username, nullString(u.Bio), nullString(u.Avatar), u.PasswordHash, u.Mojo,
		nanos(u.CreatedAt), nanos(u.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) userBy(ctx context.Context, column, value string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user by %s: %w", column, err)
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	return s.userBy(ctx, "id", id)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userBy(ctx, "username", username)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.userBy(ctx, "email", email)
}

// UsernameTaken reports whether a user other than exceptID holds username.
func (s *Store) UsernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ? AND id <> ?`, username, exceptID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count username: %w", err)
	}
	return n > 0, nil
}

// ProfileUpdate carries the profile fields to change; nil fields are left alone.
// A non-nil empty Bio clears it.
type ProfileUpdate struct {
	Username *string
	Bio      *string
	Avatar   *string
}

func (s *Store) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) error {
	sets := []string{}
	args := []any{}
	if p.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *p.Username)
	}
	if p.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, nullString(*p.Bio))
	}
	if p.Avatar != nil {
		sets = append(sets, "avatar = ?")
		args = append(args, nullString(*p.Avatar))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, nanos(s.now()), id)

	q := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, args...)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return expectAffected(res)
}

// SetMojo overwrites the stored Mojo. Concurrent recomputations race and
// the last write wins.
func (s *Store) SetMojo(ctx context.Context, id string, mojo float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET mojo = ? WHERE id = ?`, mojo, id)
	if err != nil {
		return fmt.Errorf("set mojo: %w", err)
	}
	return nil
}

// UserIDs lists every user id in creation order.
func (s *Store) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("select user ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
