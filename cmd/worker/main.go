// Package main はジョブを処理するワーカーのエントリーポイントです。
// API サーバーを RUN_WORKERS=false で動かす場合に、別プロセスとして起動します。
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/async-resource/internal/config"
	"github.com/yourusername/async-resource/internal/examples"
	"github.com/yourusername/async-resource/internal/jobs"
	"github.com/yourusername/async-resource/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel).With("component", "worker")
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := jobs.Open(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Warn("failed to close job manager", "error", err)
		}
	}()
	if err := manager.Ping(ctx); err != nil {
		return err
	}
	examples.RegisterTasks(manager, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.RunWorkers(gctx)
	})
	return g.Wait()
}
