// Package postgres indexes saved posts in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "tuoitre_posts"

// PostStoreConfig controls the Postgres connection pool used for the post index.
type PostStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostStore upserts one row per saved post, keyed by post id.
type PostStore struct {
	pool  execCloser
	table string
}

// NewPostStore connects a pool using the provided config.
func NewPostStore(ctx context.Context, cfg PostStoreConfig) (*PostStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostStore{pool: pool, table: table}, nil
}

// NewPostStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPostStoreWithPool(pool execCloser, table string) (*PostStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &PostStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *PostStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the index table if it does not exist.
func (s *PostStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	post_id       TEXT PRIMARY KEY,
	article_id    TEXT NOT NULL,
	run_id        TEXT NOT NULL,
	url           TEXT NOT NULL,
	category      TEXT NOT NULL,
	title         TEXT NOT NULL,
	comment_count INTEGER NOT NULL,
	audio_count   INTEGER NOT NULL,
	record_uri    TEXT NOT NULL,
	content_sha256 TEXT NOT NULL DEFAULT '',
	saved_at      TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create post table: %w", err)
	}
	return nil
}

// IndexPost inserts or refreshes the row for summary.PostID. Re-parsing a
// post replaces its row, matching the overwrite of its JSON record.
func (s *PostStore) IndexPost(ctx context.Context, summary crawler.PostSummary) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("post store is not configured")
	}
	if summary.PostID == "" {
		return fmt.Errorf("post id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	post_id,
	article_id,
	run_id,
	url,
	category,
	title,
	comment_count,
	audio_count,
	record_uri,
	content_sha256,
	saved_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (post_id) DO UPDATE SET
	article_id = EXCLUDED.article_id,
	run_id = EXCLUDED.run_id,
	url = EXCLUDED.url,
	category = EXCLUDED.category,
	title = EXCLUDED.title,
	comment_count = EXCLUDED.comment_count,
	audio_count = EXCLUDED.audio_count,
	record_uri = EXCLUDED.record_uri,
	content_sha256 = EXCLUDED.content_sha256,
	saved_at = EXCLUDED.saved_at`, s.table)

	args := []any{
		summary.PostID,
		summary.ArticleID,
		summary.RunID,
		summary.URL,
		summary.Category,
		summary.Title,
		summary.CommentCount,
		summary.AudioCount,
		summary.RecordURI,
		summary.ContentHash,
		summary.SavedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}
	return nil
}
