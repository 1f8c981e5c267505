// Package main запускает HTTP-сервер сервиса Nexoria.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/nexoria-ledger/internal/actor"
	"github.com/mmeshcher/nexoria-ledger/internal/bus"
	"github.com/mmeshcher/nexoria-ledger/internal/config"
	"github.com/mmeshcher/nexoria-ledger/internal/feed"
	"github.com/mmeshcher/nexoria-ledger/internal/handler"
	"github.com/mmeshcher/nexoria-ledger/internal/middleware"
	"github.com/mmeshcher/nexoria-ledger/internal/repository"
	"github.com/mmeshcher/nexoria-ledger/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := config.LoadDotEnv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		sugar.Warnw("dotenv ignored", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	seed, err := cfg.SeedBalanceMinor()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var store service.Store
	if cfg.DatabaseURI != "" {
		store, err = repository.NewPostgresStore(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		sugar.Info("using postgres state store")
	} else {
		store = repository.NewMemoryStore()
		sugar.Info("using in-memory state store")
	}

	b := bus.New(logger.Named("bus"))
	defer b.Close()

	svc := service.NewService(store, b, logger.Named("ledger"),
		service.WithSeedBalance(seed),
	)
	defer svc.Close()

	liveFeed := feed.New(b, logger.Named("feed"),
		feed.WithInterval(cfg.FeedInterval),
		feed.WithProbability(cfg.FeedProbability),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	view := actor.New(ctx, svc, b, feed.NewTray(feed.DefaultTrayCapacity, feed.DefaultTrayTTL), logger.Named("actor"))
	defer view.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, liveFeed, view, b, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Живая лента фоновых уведомлений
	g.Go(func() error {
		liveFeed.Run(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting nexoria server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
