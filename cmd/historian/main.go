// cmd/historian/main.go runs the lobby historian on its own: it pops closed
// lobby records from Redis and persists them to PostgreSQL.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/KilianB/LeagueMultiChat/internal/cache"
	"github.com/KilianB/LeagueMultiChat/internal/config"
	"github.com/KilianB/LeagueMultiChat/internal/database"
	"github.com/KilianB/LeagueMultiChat/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("Historian exited")
	}
	logger.Info("Historian shutdown complete")
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.Level())
	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		return errors.New("historian needs REDIS_ADDR and DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisDB); err != nil {
		return err
	}
	defer cache.Rdb.Close()
	if err := database.ConnectDB(cfg.DatabaseURL); err != nil {
		return err
	}
	defer database.DB.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	hs := historian.New(logger, cache.Rdb, database.InsertLobbyRecords, historian.Config{
		Queue:      cache.LobbyHistoryQueue,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlushDelay,
	})
	return hs.Run(ctx)
}
