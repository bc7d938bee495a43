package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gitaditya567/itskillhub/internal/bootstrap"
	"github.com/gitaditya567/itskillhub/internal/config"
	"github.com/gitaditya567/itskillhub/internal/ratelimit"
	"github.com/gitaditya567/itskillhub/internal/server"
	"github.com/gitaditya567/itskillhub/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("storefront stopped", "err", err)
		stop()
		os.Exit(1)
	}
}

// run owns every backend it opens; they are closed before it returns.
func run(ctx context.Context, cfg config.FileConfig, logger *slog.Logger) error {
	rt, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("shutdown backends", "err", err)
		}
	}()

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}
	loginLimiter, err := newLimiter(rt, "login", cfg.LoginRateLimitPerMinute)
	if err != nil {
		return fmt.Errorf("init login limiter: %w", err)
	}
	registerLimiter, err := newLimiter(rt, "register", cfg.RegisterRateLimitPerMinute)
	if err != nil {
		return fmt.Errorf("init register limiter: %w", err)
	}

	httpServer, err := server.New(server.Config{
		App:                rt.App,
		LoginLimiter:       loginLimiter,
		RegisterLimiter:    registerLimiter,
		TrustedProxies:     trusted,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", "err", err)
		}
	}()

	logger.Info("storefront listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	<-drained
	return nil
}

// newLimiter returns nil when the limit is disabled.
func newLimiter(rt *bootstrap.Runtime, name string, perMinute int) (*ratelimit.FixedWindowLimiter, error) {
	if perMinute <= 0 {
		return nil, nil
	}
	return ratelimit.NewFixedWindowLimiter(rt.Redis, "storefront:ratelimit:"+name, perMinute, time.Minute)
}
