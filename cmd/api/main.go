package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shopworks/commerce-core/internal/cart"
	"github.com/shopworks/commerce-core/internal/catalog"
	"github.com/shopworks/commerce-core/internal/clock"
	"github.com/shopworks/commerce-core/internal/config"
	"github.com/shopworks/commerce-core/internal/httpx"
	kafkax "github.com/shopworks/commerce-core/internal/kafka"
	"github.com/shopworks/commerce-core/internal/orders"
	"github.com/shopworks/commerce-core/internal/payments"
	"github.com/shopworks/commerce-core/internal/postgres"
	"github.com/shopworks/commerce-core/internal/redisx"
	"github.com/shopworks/commerce-core/internal/stock"
	"github.com/shopworks/commerce-core/migrations"
)

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

	if err := migrations.Apply(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pConfirmed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentConfirmed, 1024)
	pConfirmed.Start(ctx)
	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderExpired, 1024)
	pExpired.Start(ctx)

	events := &orders.EventPublisher{
		Created:   pCreated,
		Confirmed: pConfirmed,
		Expired:   pExpired,
		Service:   cfg.ServiceName,
	}

	// Stores & services
	clk := clock.NewSystem()
	stockSvc := stock.NewService(stock.NewPostgresStore(db))
	lookup := catalog.NewPostgresLookup(db)
	cartSvc := cart.NewService(cart.NewPostgresStore(db), stockSvc, lookup)

	gw := payments.Gateway{
		Name:          cfg.GatewayName,
		FixedFee:      mustDecimal(cfg.GatewayFixedFee),
		PercentageFee: mustDecimal(cfg.GatewayPercentFee),
	}
	paySvc := payments.NewService(payments.NewPostgresStore(db), gw)

	orderStore := orders.NewPostgresStore(db)
	checkoutSvc := orders.NewCheckoutService(orderStore, cartSvc, stockSvc, paySvc, lookup, clk,
		orders.WithPaymentTimeout(cfg.PaymentTimeout),
		orders.WithEventPublisher(events),
	)
	lifecycle := orders.NewLifecycle(orderStore, stockSvc, paySvc, clk, events)
	reconciler := orders.NewReconciler(orderStore, lifecycle, clk, cfg.SweepInterval)

	// HTTP
	router := httpx.NewRouter()
	(&httpx.StockHandler{Stock: stockSvc}).Register(router)
	(&httpx.CartHandler{Carts: cartSvc}).Register(router)
	(&httpx.CheckoutHandler{Checkout: checkoutSvc, Redis: rdb}).Register(router)
	(&httpx.OrdersHandler{Lifecycle: lifecycle, Redis: rdb}).Register(router)
	(&httpx.AdminHandler{Reconciler: reconciler}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pCreated.Close()
	pConfirmed.Close()
	pExpired.Close()
	cancel()
	pCreated.WaitClosed()
	pConfirmed.WaitClosed()
	pExpired.WaitClosed()
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatal().Str("value", s).Msg("invalid decimal in config")
	}
	return d
}
