package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"veiled-verse/internal/config"
	"veiled-verse/internal/db"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/worker"
	"veiled-verse/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logger.NewLogger()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	database, err := db.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	w := worker.NewWorker(docstore.NewPostgres(database), cfg.ReconcileSchedule, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down worker...")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			logger.Fatal("worker failed", zap.Error(err))
		}
	}
}
