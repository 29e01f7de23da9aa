package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"jamesfarrell.me/vidextract/internal/api"
	"jamesfarrell.me/vidextract/internal/app"
	"jamesfarrell.me/vidextract/internal/config"
	"jamesfarrell.me/vidextract/internal/logging"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load(os.Getenv("VIDEXTRACT_CONFIG"))
	if err != nil {
		l := logging.New("info", "console", os.Stderr)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file loaded")
	}

	if profile := os.Getenv("DB_PROFILE"); profile != "" {
		if cfg.DatabaseURL, err = config.DatabaseURL(profile); err != nil {
			logger.Fatal().Err(err).Msg("failed to resolve database profile")
		}
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to release resources")
		}
	}()

	pipe, err := a.Pipeline(ctx)
	if err != nil {
		return err
	}

	if cfg.ServiceAPIKey == "" {
		logger.Warn().Msg("SERVICE_API_KEY not set, API routes are unauthenticated")
	}

	router := api.NewRouter(pipe, a.Events, api.Options{
		APIKey:         cfg.ServiceAPIKey,
		UploadDir:      cfg.OutputDir,
		MaxUploadBytes: cfg.MaxUploadMB << 20,
	}, logger)

	// Uploads are processed synchronously, so there is no write timeout.
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
