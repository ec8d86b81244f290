package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/shopworks/commerce-core/internal/clock"
	"github.com/shopworks/commerce-core/internal/config"
	kafkax "github.com/shopworks/commerce-core/internal/kafka"
	"github.com/shopworks/commerce-core/internal/orders"
	"github.com/shopworks/commerce-core/internal/payments"
	"github.com/shopworks/commerce-core/internal/postgres"
	"github.com/shopworks/commerce-core/internal/stock"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderExpired, 1024)
	pExpired.Start(ctx)

	events := &orders.EventPublisher{
		Expired: pExpired,
		Service: cfg.ServiceName + "-reconciler",
	}

	clk := clock.NewSystem()
	stockSvc := stock.NewService(stock.NewPostgresStore(db))
	paySvc := payments.NewService(payments.NewPostgresStore(db), payments.TestGateway())
	store := orders.NewPostgresStore(db)
	lifecycle := orders.NewLifecycle(store, stockSvc, paySvc, clk, events)
	reconciler := orders.NewReconciler(store, lifecycle, clk, cfg.SweepInterval)

	go func() {
		log.Info().Dur("interval", cfg.SweepInterval).Msg("reconciler started")
		reconciler.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down reconciler...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pExpired.Close()
	pExpired.WaitClosed()
}
