// README: Standalone reconciler; retries pending driver payouts from the Redis queue.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"freightly/internal/config"
	"freightly/internal/infra"
	"freightly/internal/modules/booking"
	"freightly/internal/modules/driver"
	"freightly/internal/modules/payments"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger(cfg.AppEnv)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.RedisAddr, cfg.RedisPassword)

	bookingStore := booking.NewStore(dbPool)
	driverSvc := driver.NewService(driver.NewStore(dbPool), nil)

	transferClient := payments.NewTransferClient(
		cfg.Provider.BaseURL,
		cfg.Provider.SecretKey,
		time.Duration(cfg.Provider.TransferTimeoutSec)*time.Second,
	)
	retryQueue := payments.NewRetryQueue(redisClient)
	payouts := payments.NewPayouts(bookingStore, driverSvc, transferClient, retryQueue,
		time.Duration(cfg.Reconciler.RetryDelay)*time.Second, logger)

	reconciler := payments.NewReconciler(payouts, retryQueue,
		time.Duration(cfg.Reconciler.TickSeconds)*time.Second, cfg.Reconciler.Batch, logger)

	logger.Info("reconciler running",
		zap.Int("tick_seconds", cfg.Reconciler.TickSeconds),
		zap.Int64("batch", cfg.Reconciler.Batch))
	reconciler.Run(ctx)
}
