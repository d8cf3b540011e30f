package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"tagfinder/pkg/logger"
	"tagfinder/pkg/models"
	"tagfinder/pkg/storage"
)

// JSONExporter writes an indented array of profiles
type JSONExporter struct {
	path string
	log  logger.Logger
}

func NewJSONExporter(path string, log logger.Logger) *JSONExporter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &JSONExporter{path: path, log: log}
}

func (e *JSONExporter) Destination() string { return e.path }

func (e *JSONExporter) Export(ctx context.Context, profiles []models.Profile) error {
	return storage.WriteFile(e.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		// keep non-ASCII and markup characters readable
		enc.SetEscapeHTML(false)
		if err := enc.Encode(profiles); err != nil {
			return fmt.Errorf("failed to encode profiles: %w", err)
		}
		return nil
	})
}
