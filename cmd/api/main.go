package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-checkout/internal/api"
	"github.com/example/ec-checkout/internal/auth"
	"github.com/example/ec-checkout/internal/backend"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/domain/checkout"
	"github.com/example/ec-checkout/internal/infrastructure/kafka"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[API] %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] EC Shop - Checkout Service")
	log.Println("[API] ========================================")
	log.Printf("[API] Backend: %s", cfg.BackendURL)
	log.Printf("[API] Currency: %s", cfg.Gateway.Currency)
	if cfg.Gateway.KeyID == "" {
		log.Println("[API] Payment gateway: disabled (no GATEWAY_KEY_ID)")
	}

	// Journal publication is optional
	var publisher store.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
		log.Printf("[API] Kafka: %v (topic %s)", cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	var journal store.Journal
	if cfg.DatabaseURL != "" {
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
		}
		defer closeDB(db)
		pg := store.NewPostgresJournal(db, publisher)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("[API] Failed to prepare journal schema: %v", err)
		}
		journal = pg
		log.Println("[API] Journal: PostgreSQL")
	} else {
		journal = store.NewMemoryJournal(publisher)
		log.Println("[API] Journal: in-memory")
	}

	var orders store.OrderCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("[API] Failed to connect to Redis: %v", err)
		}
		orders = store.NewRedisOrderCache(rdb, cfg.LastOrderTTL)
		log.Printf("[API] Last-order cache: Redis %s", cfg.Redis.Addr)
	} else {
		orders = store.NewMemoryOrderCache()
		log.Println("[API] Last-order cache: in-memory")
	}

	m := metrics.New("checkout")
	client := backend.NewClient(backend.Config{
		BaseURL:         cfg.BackendURL,
		Timeout:         cfg.BackendTimeout,
		BreakerFailures: uint32(cfg.BreakerFailures),
		BreakerCooldown: cfg.BreakerCooldown,
	})

	widget := payment.NewHostedWidget(cfg.Gateway.Secret)
	gateway := payment.NewAdapter(widget, payment.Config{
		KeyID:       cfg.Gateway.KeyID,
		DisplayName: cfg.Gateway.DisplayName,
		Description: cfg.Gateway.Description,
		ThemeColor:  cfg.Gateway.ThemeColor,
	})

	sessions := checkout.NewManager(checkout.Deps{
		Carts:     client,
		Addresses: client,
		Gateway:   gateway,
		Submitter: backend.NewOrderSubmitter(client, backend.CartOrdersPath),
		Users:     client,
		Orders:    orders,
		Journal:   journal,
		Metrics:   m,
		Currency:  cfg.Gateway.Currency,
	}, backend.NewOrderSubmitter(client, backend.BuyNowOrdersPath))

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, 24*time.Hour)
	handlers := api.NewHandlers(api.Deps{
		Sessions: sessions,
		Payments: widget,
		History:  client,
		Users:    client,
		Orders:   orders,
	})
	router := api.NewRouter(handlers, api.RouterConfig{
		Verifier:       tokens,
		Observer:       m,
		MetricsHandler: m.Handler(),
	})

	// Idle sessions are abandoned so their pending attempts are released.
	// Sessions in the payment widget get PaymentTTL.
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(sessionTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions.Sweep(sessionTTL, cfg.PaymentTTL)
			}
		}
	}()

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Println("[API] ========================================")
		log.Printf("[API] Server started on :%s", cfg.HTTPPort)
		log.Println("[API] ========================================")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Forced shutdown: %v", err)
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Printf("[API] Failed to close database: %v", err)
	}
}
