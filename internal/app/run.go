package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"plantsense-server/internal/config"
	"plantsense-server/internal/db"
	"plantsense-server/internal/httpapi"
	plants "plantsense-server/internal/modules/plants"
	plantviews "plantsense-server/internal/modules/plants/views"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"staticDir", cfg.StaticDir,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"rawDataDir", cfg.RawDataDir,
		"canonicalDir", cfg.CanonicalDir,
		"plants", cfg.Plants,
		"streamChunkSize", cfg.StreamChunkSize,
	)
	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := db.EnsureSchema(dbConn); err != nil {
		return err
	}

	if err := plantviews.LoadTemplates(); err != nil {
		return err
	}

	svc := plants.NewService(dbConn, cfg)

	// Ingestion must finish (or fail fatally) before the port is bound so
	// no reader ever observes a partially populated store.
	if err := svc.IngestIfAbsent(ctx); err != nil {
		return err
	}

	mux := httpapi.NewMux(dbConn, cfg.StaticDir)
	plants.RegisterFeature(mux, svc)

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
