package export

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"tagfinder/pkg/logger"
	"tagfinder/pkg/models"
	"tagfinder/pkg/storage"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	blog_name             TEXT PRIMARY KEY,
	blog_url              TEXT NOT NULL,
	title                 TEXT,
	description           TEXT,
	follower_count        INTEGER NOT NULL DEFAULT 0,
	total_posts           INTEGER NOT NULL DEFAULT 0,
	last_post_date        TEXT,
	location_match_term   TEXT,
	location_match_source TEXT,
	blog_tags             TEXT,
	theme_matched         TEXT,
	exported_at           TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const sqliteUpsert = `
INSERT INTO profiles (blog_name, blog_url, title, description, follower_count, total_posts,
	last_post_date, location_match_term, location_match_source, blog_tags, theme_matched)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(blog_name) DO UPDATE SET
	blog_url = excluded.blog_url,
	title = excluded.title,
	description = excluded.description,
	follower_count = excluded.follower_count,
	total_posts = excluded.total_posts,
	last_post_date = excluded.last_post_date,
	location_match_term = excluded.location_match_term,
	location_match_source = excluded.location_match_source,
	blog_tags = excluded.blog_tags,
	theme_matched = excluded.theme_matched,
	exported_at = CURRENT_TIMESTAMP`

// SQLiteExporter upserts profiles into a local database file, so repeated
// runs accumulate into one table
type SQLiteExporter struct {
	path string
	log  logger.Logger
}

func NewSQLiteExporter(path string, log logger.Logger) *SQLiteExporter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SQLiteExporter{path: path, log: log}
}

func (e *SQLiteExporter) Destination() string { return e.path }

func (e *SQLiteExporter) Export(ctx context.Context, profiles []models.Profile) error {
	db, err := openSQLite(e.path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range profiles {
		if _, err := stmt.ExecContext(ctx, p.BlogName, p.BlogURL, p.Title, p.Description,
			p.FollowerCount, p.TotalPosts, p.LastPostDate, p.LocationMatchTerm,
			p.LocationMatchSource, JoinTags(p.BlogTags), p.ThemeMatched); err != nil {
			return fmt.Errorf("upsert %s: %w", p.BlogName, err)
		}
	}
	return tx.Commit()
}

func openSQLite(path string) (*sql.DB, error) {
	if err := storage.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	return db, nil
}
