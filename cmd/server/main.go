package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"storefront/cmd/server/config"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	cartdb "storefront/internal/db/cart"
	catalogdb "storefront/internal/db/catalog"
	ordersdb "storefront/internal/db/orders"
	tasksdb "storefront/internal/db/tasks"
	"storefront/internal/events"
	"storefront/internal/httpx"
	"storefront/internal/observability"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/redisx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const producerName = "storefront-api"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	productStore, err := catalogdb.NewProductStoreWithSchema(ctx, db)
	if err != nil {
		return err
	}
	cartStore, err := cartdb.NewCartStoreWithSchema(ctx, db)
	if err != nil {
		return err
	}
	orderStore, err := ordersdb.NewOrderStoreWithSchema(ctx, db)
	if err != nil {
		return err
	}
	taskStore, err := tasksdb.NewTaskStoreWithSchema(ctx, db)
	if err != nil {
		return err
	}

	var cache *redisx.Cache
	if cfg.Redis.URL != "" {
		client, err := redisx.NewClient(ctx, redisx.Options{
			URL:                cfg.Redis.URL,
			DialTimeout:        cfg.Redis.DialTimeout,
			ReadTimeout:        cfg.Redis.ReadTimeout,
			WriteTimeout:       cfg.Redis.WriteTimeout,
			PoolSize:           cfg.Redis.PoolSize,
			MinIdleConns:       cfg.Redis.MinIdleConns,
			MaxRetries:         cfg.Redis.MaxRetries,
			HealthcheckTimeout: cfg.Redis.HealthcheckTimeout,
			EnableOTel:         cfg.Redis.EnableOTel,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		cache = redisx.NewCache(client)
		log.Println("redis cache enabled")
	}

	hub := events.NewHub()
	go hub.Run(ctx)

	publisher, closePublisher := buildPublisher(cfg.Kafka, hub)
	defer closePublisher()

	catalogSvc := catalog.NewService(productStore, cache, log.Printf)
	cartSvc := cart.NewService(cartStore, productStore, cache, log.Printf)
	orderSvc := orders.NewService(orderStore, cartStore, publisher, cache, producerName, log.Printf)
	paymentSvc := payments.NewService(orderStore, payments.NopGateway{}, publisher, producerName, log.Printf)

	registry := prometheus.NewRegistry()
	metrics := observability.NewServerMetrics(registry)

	router := httpx.NewRouter(httpx.Options{
		Catalog:    catalogSvc,
		Cart:       cartSvc,
		Orders:     orderSvc,
		Payments:   paymentSvc,
		Tasks:      taskStore,
		Hub:        hub,
		JWTSecret:  cfg.Auth.JWTSecret,
		Middleware: []func(http.Handler) http.Handler{metrics.Middleware},
		Logf:       log.Printf,
	})

	apiSrv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	metricsSrv := startMetricsServer(cfg.Observability.Addr, registry)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("API listening on %s", cfg.HTTP.Addr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("api shutdown: %v", err)
		}
		_ = metricsSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func openDB(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns != nil {
		db.SetMaxOpenConns(*cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != nil {
		db.SetMaxIdleConns(*cfg.MaxIdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// buildPublisher fans order events out to Kafka and the WebSocket hub.
// Without brokers only the hub receives them.
func buildPublisher(cfg config.KafkaConfig, hub *events.Hub) (events.Publisher, func()) {
	hubPub := events.NewHubPublisher(hub)
	if len(cfg.Brokers) == 0 {
		log.Println("kafka publishing disabled")
		return events.NewFanoutPublisher(events.NopPublisher{}, log.Printf, hubPub), func() {}
	}
	kafka := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	fanout := events.NewFanoutPublisher(kafka, log.Printf, hubPub)
	return fanout, func() {
		if err := kafka.Close(); err != nil {
			log.Printf("close kafka writer: %v", err)
		}
	}
}

func startMetricsServer(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(registry))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()
	return srv
}
