package download

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"healthdash/internal/config"
	"healthdash/internal/httpx"
	"healthdash/internal/services/analysis"
	"healthdash/internal/services/charts"
	"healthdash/internal/services/dataloader"
	"healthdash/internal/services/export"
	"healthdash/internal/services/metrics"
	"healthdash/internal/services/storage"
	"healthdash/internal/version"
)

const plotlyURL = "https://cdn.plot.ly/plotly-2.35.2.min.js"

var (
	cfg             *config.Config
	store           *storage.Storage
	loader          *dataloader.DataLoader
	analysisService *analysis.Service
	exporter        *export.Exporter
	metricsService  = metrics.New()
)

// Initialize sets up the download package with required dependencies
func Initialize(c *config.Config, s *storage.Storage, l *dataloader.DataLoader, a *analysis.Service, e *export.Exporter) {
	cfg = c
	store = s
	loader = l
	analysisService = a
	exporter = e
}

// RegisterRoutes registers the export and maintenance routes
func RegisterRoutes(r chi.Router) {
	r.Get("/api/health", HandleHealth)
	r.Get("/export/xlsx", HandleXLSX)
	r.Get("/export/parquet", HandleParquet)
	r.Get("/export/chart/{chartType}.png", HandleChartPNG)
	r.Post("/export/save/{format}", HandleSave)
	r.Get("/export/backup", HandleBackup)
	r.Get("/static/plotly.min.js", HandlePlotly)
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, r, map[string]interface{}{
		"status":  "ok",
		"version": version.Get(),
	})
}

// exportView builds the export view of the request's year selection
func exportView(r *http.Request) (*export.View, error) {
	view, err := httpx.LoadView(r, loader)
	if err != nil {
		return nil, err
	}
	return &export.View{
		Label:    view.Year.Label(),
		Patients: view.Patients,
		Metrics:  metricsService.CalculateMetrics(view.Patients),
		Report:   analysisService.Report(view.Load.Patients),
	}, nil
}

func HandleXLSX(w http.ResponseWriter, r *http.Request) {
	v, err := exportView(r)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	sendFile(w, r, export.FileName(v.Label, "xlsx"),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		func(out io.Writer) error { return export.WriteXLSX(out, v) })
}

func HandleParquet(w http.ResponseWriter, r *http.Request) {
	v, err := exportView(r)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	sendFile(w, r, export.FileName(v.Label, "parquet"), "application/vnd.apache.parquet",
		func(out io.Writer) error { return export.WriteParquet(out, v.Patients) })
}

func HandleChartPNG(w http.ResponseWriter, r *http.Request) {
	chartType := chi.URLParam(r, "chartType")

	view, err := httpx.LoadView(r, loader)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	fig, err := charts.Build(chartType, view.Patients)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	name := export.FileName(chartType+"-"+view.Year.Label(), "png")
	sendFile(w, r, name, "image/png", func(out io.Writer) error {
		return export.WriteChartPNG(out, fig)
	})
}

// HandleSave writes an export into the export directory instead of
// streaming it back
func HandleSave(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")

	v, err := exportView(r)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	var write func(io.Writer) error
	switch format {
	case "xlsx":
		write = func(out io.Writer) error { return export.WriteXLSX(out, v) }
	case "parquet":
		write = func(out io.Writer) error { return export.WriteParquet(out, v.Patients) }
	default:
		httpx.Fail(w, r, fmt.Errorf("%w: unknown export format %q", httpx.ErrBadRequest, format))
		return
	}

	path, err := exporter.Save(export.FileName(v.Label, format), write)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}

	httpx.JSONStatus(w, r, http.StatusCreated, map[string]interface{}{
		"file":    filepath.Base(path),
		"records": v.Patients.Len(),
	})
}

// sendFile renders into memory first so a failed export still gets an
// error status
func sendFile(w http.ResponseWriter, r *http.Request, name, contentType string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		httpx.Fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.Write(buf.Bytes())
}

// HandleBackup streams the data directory as a zip. Files are decrypted so
// the archive is portable.
func HandleBackup(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	// Generate filename with timestamp
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("healthdash_backup_%s.zip", timestamp)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	zw := zip.NewWriter(w)
	defer zw.Close()

	dataDir := store.BaseDir()
	err := filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dataDir && info.Name() == "cache" {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip encryption marker and verify files
		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}

		relPath, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}

		f, err := zw.Create(filepath.ToSlash(relPath))
		if err != nil {
			return err
		}

		file, err := store.OpenFile(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(f, file)
		return err
	})

	if err != nil {
		// Headers are already out; the archive is truncated
		logger.Error().Err(err).Msg("creating backup")
	}
}

// HandlePlotly serves plotly.js from the data directory cache, fetching it
// from the CDN on first use
func HandlePlotly(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	cachePath := filepath.Join(cfg.DataDirectory, "cache", "plotly.min.js")

	if data, err := os.ReadFile(cachePath); err == nil {
		writeScript(w, data)
		return
	}

	logger.Info().Str("url", plotlyURL).Msg("fetching plotly.min.js")
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, plotlyURL, nil)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	req.Header.Set("User-Agent", version.Get().UserAgent())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		httpx.ErrorResponse(w, r, fmt.Errorf("fetch plotly: %w", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpx.ErrorResponse(w, r, fmt.Errorf("CDN returned status: %s", resp.Status), http.StatusBadGateway)
		return
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		httpx.ErrorResponse(w, r, fmt.Errorf("read plotly response: %w", err), http.StatusBadGateway)
		return
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		logger.Warn().Err(err).Msg("could not create cache directory")
	} else if err := os.WriteFile(cachePath, data, 0644); err != nil {
		logger.Warn().Err(err).Msg("could not cache plotly.min.js")
	}

	writeScript(w, data)
}

func writeScript(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Write(data)
}
