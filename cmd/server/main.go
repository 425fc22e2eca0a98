package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/sketchhub/internal/chat"
	"github.com/Tyrowin/sketchhub/internal/logging"
	"github.com/Tyrowin/sketchhub/internal/server"
	"github.com/Tyrowin/sketchhub/internal/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	log, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, "sketchhub")
	if err != nil {
		return fmt.Errorf("logger setup failed: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store, store.WithLogger(log.Named("store")))
	if err != nil {
		return fmt.Errorf("store setup failed: %w", err)
	}
	defer func() {
		log.Info("closing store")
		if err := st.Close(); err != nil {
			log.Warn("store close failed", zap.Error(err))
		}
	}()
	log.Info("store ready", zap.String("backend", cfg.Store.Backend))

	svc := chat.NewService(st, log.Named("chat"), chat.Options{
		DefaultRoom:       cfg.DefaultRoom,
		StoreTimeout:      cfg.Store.Timeout,
		GatherConcurrency: cfg.GatherConcurrency,
	})
	if err := svc.Rooms.EnsureDefaultRoom(ctx); err != nil {
		return fmt.Errorf("default room setup failed: %w", err)
	}

	srv := server.New(*cfg, svc, log.Named("server"))
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("program stopped cleanly")
	return nil
}
