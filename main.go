package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travel-marketplace/config"
	"travel-marketplace/database"
	routes "travel-marketplace/internal/app/http"
	"travel-marketplace/internal/auth/tokens"
	"travel-marketplace/internal/domain/access"
	"travel-marketplace/internal/events"
	"travel-marketplace/internal/handoff"
	"travel-marketplace/internal/infra/kafka"
	"travel-marketplace/internal/infra/stripegateway"
	"travel-marketplace/internal/ledger"
	"travel-marketplace/internal/reconcile"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	config.LoadEnv()
	db := database.InitDB()

	var store handoff.Store
	switch config.HANDOFF_BACKEND {
	case config.HandoffBackendRedis:
		rdb := rd.NewClient(&rd.Options{Addr: config.REDIS_ADDR, DB: config.REDIS_DB})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("❌ redis unreachable", "addr", config.REDIS_ADDR, "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		store = handoff.NewRedisStore(rdb, config.HANDOFF_TTL, config.HANDOFF_RETENTION)
	default:
		store = handoff.NewDBStore(db, config.HANDOFF_TTL)
	}

	var publisher events.Publisher = events.Nop{}
	if len(config.KAFKA_BROKERS) > 0 {
		publisher = kafka.NewPublisher(config.KAFKA_BROKERS, config.KAFKA_TOPIC)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("event publisher close failed", "error", err)
		}
	}()

	gate := access.NewGate(db)
	l := ledger.New(db)
	rec := reconcile.New(reconcile.Deps{
		DB:       db,
		Ledger:   l,
		Handoffs: store,
		Gateway:  stripegateway.New(config.STRIPE_SECRET_KEY),
		Gate:     gate,
		Events:   publisher,
		Logger:   logger,
	}, reconcile.Config{
		ReturnBase: config.APP_URL,
		HandoffTTL: config.HANDOFF_TTL,
		Retention:  config.HANDOFF_RETENTION,
		Gateway: reconcile.RetryPolicy{
			Attempts: config.GATEWAY_ATTEMPTS,
			Timeout:  config.GATEWAY_TIMEOUT,
			Backoff:  200 * time.Millisecond,
		},
	})

	r := gin.Default()

	// ✅ Add CORS middleware BEFORE registering routes
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.CORS_ORIGIN},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:            db,
		Tokens:        tokens.NewIssuer(config.JWT_SECRET, config.ACCESS_TOKEN_TTL, config.REFRESH_TOKEN_TTL),
		Ledger:        l,
		Reconciler:    rec,
		Gate:          gate,
		WebhookSecret: config.STRIPE_WEBHOOK_SECRET,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepDone := make(chan struct{})
	go func() {
		reconcile.NewSweeper(rec, config.SWEEP_INTERVAL).Run(ctx)
		close(sweepDone)
	}()

	srv := &http.Server{
		Addr:              ":" + config.PORT,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("🚀 server listening", "port", config.PORT, "handoff_backend", config.HANDOFF_BACKEND)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	<-sweepDone
}
