package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tazhibayda/expired-service/internal/config"
	"github.com/tazhibayda/expired-service/internal/log"
	"github.com/tazhibayda/expired-service/internal/mail"
	"github.com/tazhibayda/expired-service/internal/queue"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := log.Init(cfg.LogProduction)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cons, err := queue.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange, cfg.RabbitQueue, cfg.RabbitBindKey)
	if err != nil {
		logger.Fatal("rabbit consumer init failed", zap.Error(err))
	}
	defer cons.Close()
	cons.Log = logger

	sender := mail.NewSender(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("notifier up",
		zap.String("exchange", cfg.RabbitExchange),
		zap.String("queue", cfg.RabbitQueue),
		zap.String("key", cfg.RabbitBindKey),
		zap.Int("workers", cfg.RabbitConcurrency),
	)
	if err := cons.Consume(ctx, cfg.RabbitConcurrency, sender.HandleNotification); err != nil {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
}
