package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"tagfinder/pkg/logger"
	"tagfinder/pkg/models"
	"tagfinder/pkg/storage"
)

// CSVExporter writes one row per profile in Columns order
type CSVExporter struct {
	path string
	log  logger.Logger
}

func NewCSVExporter(path string, log logger.Logger) *CSVExporter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &CSVExporter{path: path, log: log}
}

func (e *CSVExporter) Destination() string { return e.path }

func (e *CSVExporter) Export(ctx context.Context, profiles []models.Profile) error {
	return storage.WriteFile(e.path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(Columns); err != nil {
			return err
		}
		for _, p := range profiles {
			if err := w.Write(row(p)); err != nil {
				return fmt.Errorf("failed to write row for %s: %w", p.BlogName, err)
			}
		}
		w.Flush()
		return w.Error()
	})
}

func row(p models.Profile) []string {
	return []string{
		p.BlogName,
		p.BlogURL,
		p.Title,
		p.Description,
		strconv.Itoa(p.FollowerCount),
		strconv.Itoa(p.TotalPosts),
		p.LastPostDate,
		p.LocationMatchTerm,
		p.LocationMatchSource,
		JoinTags(p.BlogTags),
		p.ThemeMatched,
	}
}
