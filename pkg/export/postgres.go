package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tagfinder/pkg/logger"
	"tagfinder/pkg/models"
	"tagfinder/pkg/retry"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tumblr_profiles (
	blog_name             TEXT PRIMARY KEY,
	blog_url              TEXT NOT NULL,
	title                 TEXT,
	description           TEXT,
	follower_count        INTEGER NOT NULL DEFAULT 0,
	total_posts           INTEGER NOT NULL DEFAULT 0,
	last_post_date        DATE,
	location_match_term   TEXT,
	location_match_source TEXT,
	blog_tags             TEXT[],
	theme_matched         TEXT,
	exported_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const postgresUpsert = `
INSERT INTO tumblr_profiles (blog_name, blog_url, title, description, follower_count, total_posts,
	last_post_date, location_match_term, location_match_source, blog_tags, theme_matched)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::date, $8, $9, $10, $11)
ON CONFLICT (blog_name) DO UPDATE SET
	blog_url = EXCLUDED.blog_url, title = EXCLUDED.title, description = EXCLUDED.description,
	follower_count = EXCLUDED.follower_count, total_posts = EXCLUDED.total_posts,
	last_post_date = EXCLUDED.last_post_date,
	location_match_term = EXCLUDED.location_match_term,
	location_match_source = EXCLUDED.location_match_source,
	blog_tags = EXCLUDED.blog_tags, theme_matched = EXCLUDED.theme_matched,
	exported_at = NOW()`

// PostgresExporter upserts profiles into tumblr_profiles in one transaction
type PostgresExporter struct {
	dsn     string
	log     logger.Logger
	connect *retry.Config
}

// NewPostgresExporter retries the initial connection with backoff; a server
// that answers with an error (bad password, missing database) is not retried.
func NewPostgresExporter(dsn string, log logger.Logger) *PostgresExporter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	cfg := retry.DefaultConfig()
	cfg.Logger = log
	return &PostgresExporter{dsn: dsn, log: log, connect: cfg}
}

// Destination hides credentials and reports only the table
func (e *PostgresExporter) Destination() string { return "postgres:tumblr_profiles" }

func (e *PostgresExporter) Export(ctx context.Context, profiles []models.Profile) error {
	pool, err := pgxpool.New(ctx, e.dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	defer pool.Close()

	err = retry.Do(ctx, func(ctx context.Context) error {
		return serverRejected(pool.Ping(ctx))
	}, e.connect)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return storeBatch(ctx, pool, profiles)
}

// serverRejected marks errors the server itself returned as permanent
func serverRejected(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retry.Permanent(err)
	}
	return err
}

func storeBatch(ctx context.Context, pool *pgxpool.Pool, profiles []models.Profile) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range profiles {
		tags := p.BlogTags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(postgresUpsert, p.BlogName, p.BlogURL, p.Title, p.Description,
			p.FollowerCount, p.TotalPosts, p.LastPostDate, p.LocationMatchTerm,
			p.LocationMatchSource, tags, p.ThemeMatched)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch exec %d (%s): %w", i, profiles[i].BlogName, err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
