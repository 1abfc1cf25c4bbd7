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

	"booking-platform/internal/audit"
	"booking-platform/internal/auth"
	"booking-platform/internal/booking"
	"booking-platform/internal/config"
	"booking-platform/internal/discount"
	"booking-platform/internal/httpapi"
	"booking-platform/internal/payment"
	"booking-platform/internal/payout"
	"booking-platform/internal/wallet"
	"booking-platform/internal/workflow"
	"booking-platform/pkg/logger"
	"booking-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Service wiring. Every multi-write unit shares the same tx runner so
	// booking, wallet and transfer writes commit together.
	runner := utils.PgRunner{Pool: db}

	bookings := booking.NewPostgresStore(db)
	wallets := wallet.NewService(wallet.NewPostgresRepo(db), runner)
	discountRepo := discount.NewPostgresRepo(db)
	discounts := discount.NewEngine(discountRepo, discountRepo)
	audits := audit.NewService(audit.NewPostgresRepo(db))

	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey)
	intents := payment.NewRedisIntentStore(rdb)
	reconciler := payment.NewReconciler(bookings, wallets, audits, intents, gateway, runner, cfg.Payment.IntentTTL)

	payouts := payout.NewDispatcher(wallets, payout.NewPostgresStore(db), payout.NewPostgresDirectory(db), audits, runner)

	wf := workflow.NewService(
		bookings,
		workflow.NewPostgresListings(db),
		discounts,
		reconciler,
		payouts,
		workflow.NopNotifier{},
		runner,
	)

	handlers := httpapi.Handlers{
		Auth:                authManager,
		Workflow:            wf,
		Wallet:              wallets,
		Discounts:           discounts,
		Payouts:             payouts,
		Audit:               audits,
		StripeWebhookSecret: cfg.Stripe.WebhookSecret,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, handlers, auth.RequireAccessToken(authManager), db, rdb)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
