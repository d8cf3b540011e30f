// Package export writes qualified profiles to files and databases.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tagfinder/pkg/logger"
	"tagfinder/pkg/models"
)

// Exporter writes a complete result set to one destination
type Exporter interface {
	Export(ctx context.Context, profiles []models.Profile) error
	// Destination names where the profiles went, for logs and the final summary.
	Destination() string
}

// Format names accepted by Run
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrNoDSN         = errors.New("postgres export needs a DSN (output.postgres_dsn or TAGFINDER_POSTGRES_DSN)")
)

// DefaultFormats is used when none are configured
var DefaultFormats = []string{FormatJSON, FormatCSV}

// Options carries per-sink settings
type Options struct {
	// SQLitePath defaults to <base>.db.
	SQLitePath  string
	PostgresDSN string
}

// Columns is the fixed field order shared by the CSV and database sinks
var Columns = []string{
	"blog_name",
	"blog_url",
	"title",
	"description",
	"follower_count",
	"total_posts",
	"last_post_date",
	"location_match_term",
	"location_match_source",
	"blog_tags",
	"theme_matched",
}

// JoinTags renders blog tags the way flat sinks store them
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// New builds the exporter for one format name
func New(format, base string, opts Options, log logger.Logger) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return NewJSONExporter(base+".json", log), nil
	case FormatCSV:
		return NewCSVExporter(base+".csv", log), nil
	case FormatSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = base + ".db"
		}
		return NewSQLiteExporter(path, log), nil
	case FormatPostgres:
		if opts.PostgresDSN == "" {
			return nil, ErrNoDSN
		}
		return NewPostgresExporter(opts.PostgresDSN, log), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

// Run exports profiles in every requested format and returns the
// destinations written. An empty result set writes nothing. Every format is
// attempted; failures are joined into one error.
func Run(ctx context.Context, formats []string, base string, profiles []models.Profile, opts Options, log logger.Logger) ([]string, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("component", "export")

	if len(profiles) == 0 {
		log.Warn("No blogs to export")
		return nil, nil
	}
	if len(formats) == 0 {
		formats = DefaultFormats
	}

	var (
		written []string
		errs    []error
	)
	for _, format := range formats {
		exp, err := New(format, base, opts, log)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := exp.Export(ctx, profiles); err != nil {
			log.WithError(err).WithField("format", format).Error("Export failed")
			errs = append(errs, fmt.Errorf("%s: %w", format, err))
			continue
		}
		log.WithFields(map[string]interface{}{
			"format":      format,
			"destination": exp.Destination(),
			"profiles":    len(profiles),
		}).Info("Exported profiles")
		written = append(written, exp.Destination())
	}

	if err := errors.Join(errs...); err != nil {
		return written, fmt.Errorf("export failed: %w", err)
	}
	return written, nil
}
