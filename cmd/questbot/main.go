// Package main запускает HTTP-сервер бота квест-платформы.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/questbot-system/internal/authn"
	"github.com/mmeshcher/questbot-system/internal/config"
	"github.com/mmeshcher/questbot-system/internal/handler"
	"github.com/mmeshcher/questbot-system/internal/repository"
	"github.com/mmeshcher/questbot-system/internal/scheduler"
	"github.com/mmeshcher/questbot-system/internal/service"
	"github.com/mmeshcher/questbot-system/internal/transport"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var store repository.SessionStore
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresStore(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		store = pg
	} else {
		sugar.Info("no database configured, using in-memory session store")
		store = repository.NewMemoryStore()
	}
	defer store.Close()

	plain := transport.NewPlain()
	var primary transport.Doer = plain
	var browser *transport.Browser
	if !cfg.DisableBrowser {
		browser, err = transport.NewBrowser(cfg.PlatformBaseURL)
		if err != nil {
			sugar.Warnw("browser transport unavailable, falling back to plain HTTP", "error", err.Error())
		} else {
			primary = browser
			defer browser.Close()
		}
	}

	auth := authn.New(cfg.IdentityBaseURL, cfg.AuthAppID, cfg.PlatformBaseURL, cfg.ChainID, cfg.WalletName, logger)

	svc := service.NewService(cfg, auth, primary, plain, logger)

	h := handler.NewHandler(svc, store, logger)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	sched := scheduler.New(svc, store, cfg.CheckinInterval, cfg.TasksInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фоновых прогонов автоматического режима
	g.Go(func() error {
		sched.Start(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting questbot server", "addr", cfg.RunAddress)
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
