// README: Entry point; loads config, wires services, starts the HTTP server and background loops.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"freightly/internal/config"
	httptransport "freightly/internal/http"
	"freightly/internal/infra"
	"freightly/internal/modules/booking"
	"freightly/internal/modules/dispute"
	"freightly/internal/modules/driver"
	"freightly/internal/modules/payments"
	"freightly/internal/modules/subscription"
	"freightly/internal/notify"
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

	var publisher *notify.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = notify.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal("connect rabbitmq", zap.Error(err))
		}
		defer func() { _ = publisher.Close() }()
	}
	var notifier booking.Notifier
	var driverNotifier driver.Notifier
	var disputeNotifier dispute.Notifier
	if publisher != nil {
		notifier = publisher
		driverNotifier = publisher
		disputeNotifier = publisher
	}

	driverStore := driver.NewStore(dbPool)
	driverSvc := driver.NewService(driverStore, driverNotifier)

	subStore := subscription.NewStore(dbPool)
	subSvc := subscription.NewService(subStore)

	bookingStore := booking.NewStore(dbPool)

	transferClient := payments.NewTransferClient(
		cfg.Provider.BaseURL,
		cfg.Provider.SecretKey,
		time.Duration(cfg.Provider.TransferTimeoutSec)*time.Second,
	)
	retryQueue := payments.NewRetryQueue(redisClient)
	payouts := payments.NewPayouts(bookingStore, driverSvc, transferClient, retryQueue,
		time.Duration(cfg.Reconciler.RetryDelay)*time.Second, logger)

	bookingSvc := booking.NewService(bookingStore, subSvc, driverSvc, driverSvc, payouts, notifier)
	disputeSvc := dispute.NewService(bookingStore, payouts, transferClient, disputeNotifier, logger)

	webhookStore := payments.NewStore(dbPool)
	processor := payments.NewProcessor(webhookStore, bookingStore, driverSvc, cfg.Provider.WebhookSecret, logger)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Bookings:      bookingSvc,
		Disputes:      disputeSvc,
		Processor:     processor,
		Subscriptions: subSvc,
		Logger:        logger,
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("api listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("serve", zap.Error(err))
	}
}
