package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"plate-dashboard/internal/config"
	httphandler "plate-dashboard/internal/http"
	"plate-dashboard/internal/repository"
	"plate-dashboard/internal/service"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a config file (yaml, json or toml)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg.Log)

	repo, err := repository.NewAPIRepository(cfg.API.BaseURL, cfg.API.Timeout, log.With().Str("component", "api").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create api client")
	}

	sessions := service.NewSessions(
		repo,
		service.NewMetrics(),
		cfg.Dashboard,
		log.With().Str("component", "dashboard").Logger(),
		time.Now,
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httphandler.RequestLogger(log))
	router.Use(httphandler.CORS(cfg.HTTP.CORSAllowOrigins))

	handler := httphandler.NewHandler(sessions, cfg, log)
	handler.Register(router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessions.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.HTTP.Addr).
			Str("api", cfg.API.BaseURL).
			Msg("plate dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// Open event streams only end once their session is closed.
	sessions.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
