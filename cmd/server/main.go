package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/obiente/translate/gocheetah/internal/config"
	serverhttp "github.com/obiente/translate/gocheetah/internal/http"
	"github.com/obiente/translate/gocheetah/internal/ws"
	"github.com/obiente/translate/gocheetah/pkg/cheetah"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	lvl := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		lvl = l
	}
	log.Logger = log.Level(lvl)

	if !cheetah.NativeAvailable() {
		log.Fatal().Msg("built without cgo; rebuild with CGO_ENABLED=1")
	}
	// Fail at startup rather than on the first connection.
	if _, err := cfg.Builder().Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid engine configuration")
	}

	newEngine := func() (ws.Engine, error) {
		c, err := cfg.Builder().
			Logger(log.With().Str("component", "cheetah").Logger()).
			Build()
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	wss := ws.NewServer(newEngine, cfg.MaxSessions, ws.WithFlushOnEndpoint(cfg.FlushOnEndpoint))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           serverhttp.NewRouter(wss),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(wss.CloseAll)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Int("max_sessions", cfg.MaxSessions).Msg("cheetah server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("cheetah server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
