package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/shopworks/commerce-core/internal/clock"
	"github.com/shopworks/commerce-core/internal/config"
	kafkax "github.com/shopworks/commerce-core/internal/kafka"
	"github.com/shopworks/commerce-core/internal/orders"
	"github.com/shopworks/commerce-core/internal/payments"
	"github.com/shopworks/commerce-core/internal/postgres"
	"github.com/shopworks/commerce-core/internal/redisx"
	"github.com/shopworks/commerce-core/internal/stock"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pConfirmed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentConfirmed, 1024)
	pConfirmed.Start(ctx)

	svcName := cfg.ServiceName + "-payments"
	events := &orders.EventPublisher{Confirmed: pConfirmed, Service: svcName}

	stockSvc := stock.NewService(stock.NewPostgresStore(db))
	paySvc := payments.NewService(payments.NewPostgresStore(db), payments.TestGateway())
	lifecycle := orders.NewLifecycle(orders.NewPostgresStore(db), stockSvc, paySvc, clock.NewSystem(), events)

	handler := func(ctx context.Context, m kafkago.Message) error {
		var env orders.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			log.Error().Err(err).Msg("bad envelope, skipping")
			return nil
		}

		// Exactly-once effect per callback event.
		dedupKey := fmt.Sprintf(redisx.KeyDedup, svcName, env.EventID)
		ok, err := rdb.SetNX(ctx, dedupKey, "1", redisx.TTLDedup).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if !ok {
			return nil // already processed
		}

		cb, err := kafkax.UnwrapPayload[orders.GatewayCallbackPayload](env.Payload)
		if err != nil {
			log.Error().Err(err).Str("event_id", env.EventID).Msg("bad callback payload, skipping")
			return nil
		}

		if !strings.EqualFold(cb.GatewayStatus, "completed") {
			log.Warn().
				Str("payment_hash", cb.PaymentHash).
				Str("gateway_status", cb.GatewayStatus).
				Msg("non-completed gateway callback, ignoring")
			return nil
		}

		_, err = lifecycle.ConfirmPayment(ctx, cb.PaymentHash, cb.PaymentKey)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, orders.ErrPaymentExpired),
			errors.Is(err, orders.ErrInvalidPaymentCredentials),
			errors.Is(err, orders.ErrOrderNotFound):
			// Terminal for this event; retrying cannot succeed.
			log.Warn().Err(err).Str("payment_hash", cb.PaymentHash).Msg("callback rejected")
			return nil
		default:
			// Transient (DB down, lock timeout). Drop the dedup mark so the
			// redelivery is processed.
			_ = rdb.Del(ctx, dedupKey).Err()
			return err
		}
	}

	group := getenv("PAYMENTS_GROUP", "payments-svc")
	workers := mustAtoi(os.Getenv("PAYMENTS_WORKERS"), "8")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicGatewayCallback, workers)

	go func() {
		log.Info().
			Str("group", group).
			Str("topic", orders.TopicGatewayCallback).
			Int("workers", workers).
			Msg("payments consumer started")
		if err := cons.Start(ctx, handler); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pConfirmed.Close()
	pConfirmed.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
