package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vissharm/ecommerce-app-order-service/internal/config"
	"github.com/vissharm/ecommerce-app-order-service/internal/httpx"
	kafkax "github.com/vissharm/ecommerce-app-order-service/internal/kafka"
	"github.com/vissharm/ecommerce-app-order-service/internal/orders"
	"github.com/vissharm/ecommerce-app-order-service/internal/postgres"
	"github.com/vissharm/ecommerce-app-order-service/internal/redisx"
	"github.com/vissharm/ecommerce-app-order-service/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer: connects in the background; publishes fail fast with
	// ErrNotReady until a broker answers, and the sweep covers the gap.
	prod := kafkax.NewProducer(cfg.KafkaBrokers, kafkax.WithLogger(logger))
	prod.Start(ctx)

	repo := &orders.Repo{DB: db}
	coord := orders.NewCoordinator(repo, prod, orders.WithLogger(logger))

	sweep := worker.NewPeriodic("outbox-sweep", cfg.SweepInterval, logger, coord.Sweep)
	go sweep.Start(ctx)

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Coordinator: coord,
		Store:       repo,
		Lifecycle:   orders.NewLifecycle(),
		Redis:       rdb,
		Logger:      logger,
	}
	oh.Register(router, httpx.Auth([]byte(cfg.JWTSecret)))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	// Drain HTTP first so no new orders land, then let the sweep finish its
	// pass, then release the producer.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	sweep.Stop()
	cancel()
	_ = prod.Close()
}
