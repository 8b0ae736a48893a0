// Package app wires config, store, service and HTTP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"limstreat/internal/api"
	"limstreat/internal/config"
	"limstreat/internal/geocode"
	"limstreat/internal/logger"
	"limstreat/internal/mcp"
	"limstreat/internal/models"
	"limstreat/internal/service"
	"limstreat/internal/session"
	"limstreat/internal/store/sqlstore"
)

type App struct {
	cfg     *config.Config
	logger  logger.Logger
	store   *sqlstore.SQLStore
	handler http.Handler
	server  *http.Server
}

// OpenStore creates the data directories and opens (and migrates) the store.
func OpenStore(cfg *config.Config) (*sqlstore.SQLStore, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	st, err := sqlstore.New(cfg.DB.Driver, cfg.DB.Conn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return st, nil
}

func New(cfg *config.Config, loggerClient logger.Logger, version string) (*App, error) {
	st, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	loggerClient.Info("store ready",
		logger.String("driver", cfg.DB.Driver),
		logger.String("data_dir", cfg.DataDir))

	geo := geocode.New(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout)
	svc := service.New(st, geo, service.Options{
		ImagesDir:   cfg.ImagesDir,
		PhotosDir:   cfg.PhotosDir,
		ImageMaxDim: cfg.Image.MaxDim,
		PhotoMaxDim: cfg.Photo.MaxDim,
	}, loggerClient)

	h, err := api.NewHandler(svc, session.NewManager(), api.Options{
		ImagesDir:      cfg.ImagesDir,
		PhotosDir:      cfg.PhotosDir,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		MapCenter:      models.Coordinates{Lat: cfg.Map.CenterLat, Lon: cfg.Map.CenterLon},
		MapZoom:        cfg.Map.Zoom,
	}, loggerClient)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to build handlers: %w", err)
	}

	mcpServer := mcp.NewMCPServer(svc).NewServer(version)
	router := api.NewRouter(h, mcpServer, loggerClient)

	return &App{
		cfg:     cfg,
		logger:  loggerClient,
		store:   st,
		handler: router,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down gracefully")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	a.logger.Info("limstreat stopped cleanly")
	return nil
}

func (a *App) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warnf("failed to close store: %v", err)
	}
}
