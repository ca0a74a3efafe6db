// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tappay-gateway/internal/config"
	"tappay-gateway/internal/domain/ports/adapter"
	"tappay-gateway/internal/domain/ports/repository"
	payAdapters "tappay-gateway/internal/infra/adapters/payment"
	"tappay-gateway/internal/infra/api"
	pg "tappay-gateway/internal/infra/db/postgres"
	"tappay-gateway/internal/infra/logging"
	"tappay-gateway/internal/infra/metrics"
	red "tappay-gateway/internal/infra/redis"
	"tappay-gateway/internal/usecase"
)

// set via -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted secrets)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Payment lease (Redis, or in-process without it) ----
	var locker repository.PaymentLocker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewPaymentLease(red.NewLocker(redisClient), cfg.Redis.LeaseTTL)
	} else {
		logger.Warn().Msg("redis.url not set; payment leases are local to this process")
		locker = red.NewLocalLease()
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	transactionRepo := pg.NewTransactionRepo(pool)
	checkoutRepo := pg.NewCheckoutRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)

	// ---- Vendor client ----
	gwCfg := cfg.Plugin.GatewayConfig(usecase.PluginName)
	var tapClient adapter.TapClient
	if gwCfg.ConnectionParams.APIKey != "" {
		c, err := payAdapters.NewTapPayClient(gwCfg.ConnectionParams.APIKey, cfg.TapPay.BaseURL, cfg.TapPay.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("tappay client")
		}
		tapClient = c
	} else if cfg.Plugin.Active {
		logger.Fatal().Msg("plugin is active but api-key is not configured")
	}
	logger.Info().
		Bool("active", cfg.Plugin.Active).
		Bool("auto_capture", gwCfg.AutoCapture).
		Str("api_key", logging.Redact(gwCfg.ConnectionParams.APIKey, cfg.Runtime.Dev)).
		Str("base_url", cfg.TapPay.BaseURL).
		Msg("tappay gateway configured")

	// ---- Use cases ----
	checkoutUC := usecase.NewCheckoutUseCase(checkoutRepo, orderRepo, paymentRepo, logger)
	plugin := usecase.NewGatewayPlugin(usecase.GatewayPluginDeps{
		Active:       cfg.Plugin.Active,
		Config:       gwCfg,
		PublicURL:    cfg.Server.PublicURL,
		Client:       tapClient,
		Payments:     paymentRepo,
		Transactions: transactionRepo,
		Checkouts:    checkoutRepo,
		TxManager:    tm,
		Locker:       locker,
		Completer:    checkoutUC,
		Logger:       logger,
	})
	gatewayUC := usecase.NewPaymentGatewayUseCase(plugin, paymentRepo, transactionRepo, tm, locker, logger)

	// ---- HTTP server ----
	auth := api.NewAuthManager(cfg.Auth.HMACSecret, cfg.Auth.TokenTTL)
	srv := api.NewServer(gatewayUC, plugin, auth, cfg.Server.RequestTimeout, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("public_url", cfg.Server.PublicURL).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
