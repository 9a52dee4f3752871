package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"healthdash/internal/config"
	"healthdash/internal/handlers/api"
	"healthdash/internal/handlers/dashboard"
	"healthdash/internal/handlers/download"
	"healthdash/internal/handlers/explorer"
	"healthdash/internal/handlers/insights"
	"healthdash/internal/httpx"
	"healthdash/internal/logging"
	"healthdash/internal/services/analysis"
	"healthdash/internal/services/dataloader"
	"healthdash/internal/services/export"
	"healthdash/internal/services/storage"
	"healthdash/internal/templates"
	"healthdash/internal/version"
)

var (
	store           *storage.Storage
	loader          *dataloader.DataLoader
	renderer        *templates.Renderer
	analysisService *analysis.Service
	exporter        *export.Exporter
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("listen") {
			c.ListenAddr = flagListen
		}
		logger = logging.New(c.LogLevel, c.LogFormat)

		if err := openStorage(c); err != nil {
			return err
		}
		if err := SetupDependencies(c); err != nil {
			return err
		}

		// The dashboard cannot render without the table
		result, err := loader.Load()
		if err != nil {
			return err
		}
		rep := analysisService.Report(result.Patients)
		logReport(rep)

		info := version.Get()
		if warning := info.Check(); warning != "" {
			logger.Warn().Msg(warning)
		}
		logger.Info().
			Str("addr", c.ListenAddr).
			Str("data_file", loader.Path()).
			Str("version", info.Version).
			Msg("starting healthdash")

		return listen(cmd.Context(), c.ListenAddr, SetupRouter())
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen address (overrides config)")
}

// openStorage opens the data directory and unlocks it when encrypted
func openStorage(c *config.Config) error {
	var err error
	store, err = storage.New(c.DataDirectory, logger)
	if err != nil {
		return err
	}
	if !store.IsEncrypted() {
		return nil
	}

	password, err := readPassword("Data directory password: ")
	if err != nil {
		return err
	}
	return store.Unlock(password)
}

// SetupDependencies builds the services and hands them to the handler
// packages. store must already be open.
func SetupDependencies(c *config.Config) error {
	cfg = c
	if store == nil {
		var err error
		if store, err = storage.New(c.DataDirectory, logger); err != nil {
			return err
		}
	}

	loader = dataloader.New(c.DataPath(), store, logger)

	var err error
	renderer, err = templates.New(c.TemplatesDirectory, c.Debug, logger)
	if err != nil {
		logger.Warn().Err(err).Str("dir", c.TemplatesDirectory).Msg("could not load templates")
		renderer = nil
	}

	analysisService = analysis.New(analysis.Options{
		Alpha:        c.Alpha,
		MinGroupSize: c.MinGroupSize,
	}, logger)
	exporter = export.New(store, c.ExportDirectory, logger)

	dashboard.Initialize(loader, renderer)
	explorer.Initialize(loader, renderer)
	insights.Initialize(loader, renderer, analysisService)
	api.Initialize(loader)
	download.Initialize(c, store, loader, analysisService, exporter)
	return nil
}

// SetupRouter wires middleware and every handler package onto a chi router
func SetupRouter() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httpx.RequestLogger(logger))
	r.Use(httpx.Recoverer)
	r.Use(middleware.Compress(5))

	// Static files
	fileServer := http.FileServer(http.Dir(cfg.StaticDirectory))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
	})

	dashboard.RegisterRoutes(r)
	explorer.RegisterRoutes(r)
	insights.RegisterRoutes(r)
	api.RegisterRoutes(r)
	download.RegisterRoutes(r)

	return r
}

// listen serves until SIGINT/SIGTERM, then drains open requests
func listen(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
