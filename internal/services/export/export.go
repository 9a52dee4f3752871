// Package export writes the filtered patient view to files and databases.
package export

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"healthdash/internal/models"
	"healthdash/internal/services/storage"
)

// View is one year selection of the cleaned table plus what was computed on it
type View struct {
	Label    string
	Patients *models.PatientSet
	Metrics  *models.DashboardMetrics
	Report   *models.AnalysisReport
}

// Exporter saves export files into a directory through the storage layer
type Exporter struct {
	store  *storage.Storage
	dir    string
	logger zerolog.Logger
}

// New creates an Exporter writing into dir
func New(store *storage.Storage, dir string, logger zerolog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		dir:    dir,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// Dir returns the export directory
func (e *Exporter) Dir() string {
	return e.dir
}

// Save renders through write and stores the result as dir/name. Data files
// are sealed when the data directory is encrypted.
func (e *Exporter) Save(name string, write func(io.Writer) error) (string, error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}

	path := filepath.Join(e.dir, name)
	if err := e.store.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}

	e.logger.Info().Str("file", path).Int("bytes", buf.Len()).Msg("export written")
	return path, nil
}

// FileName builds a unique export file name such as
// healthdash-2023-1a2b3c4d.xlsx
func FileName(label, ext string) string {
	return fmt.Sprintf("healthdash-%s-%s.%s", slug(label), uuid.NewString()[:8], ext)
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "-")
	if s == "" {
		return "all-years"
	}
	return s
}

func optionalFloat(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
