package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"modernc.org/sqlite"
)

// SQLite's lower() only folds ASCII. unicode_lower folds like strings.ToLower
// so searches match accented capitals too.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("unicode_lower", 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Open opens the SQLite database at path. Foreign keys are enabled on the
// connection through the DSN so ON DELETE CASCADE holds for every statement.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Timestamps are stored as unix nanoseconds so range filters compare numerically.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users(
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			username TEXT UNIQUE NOT NULL,
			bio TEXT,
			avatar TEXT,
			password_hash TEXT NOT NULL,
			mojo REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS posts(
			id TEXT PRIMARY KEY,
			author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			image TEXT,
			visits INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);`,
		`CREATE TABLE IF NOT EXISTS post_hashtags(
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY(post_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_post_hashtags_tag ON post_hashtags(tag);`,
		`CREATE TABLE IF NOT EXISTS comments(
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_author ON comments(author_id);`,
		`CREATE TABLE IF NOT EXISTS ratings(
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			value INTEGER NOT NULL CHECK(value BETWEEN 1 AND 5),
			created_at INTEGER NOT NULL,
			updated_at INTEGER,
			UNIQUE(post_id, user_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_user ON ratings(user_id);`,
		`CREATE TABLE IF NOT EXISTS follows(
			id TEXT PRIMARY KEY,
			follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			following_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			CHECK(follower_id <> following_id),
			UNIQUE(follower_id, following_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_follows_following ON follows(following_id);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
