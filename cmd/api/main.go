package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/auth"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/config"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/contract"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/http/handlers"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/lifecycle"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/observability"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/server"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/settlement"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/storage"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/store"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/tracker"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/wallet"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/ws"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := storage.NewKVFromConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to open storage", "err", err)
		os.Exit(1)
	}

	loanStore, err := store.New(ctx, kv, logger)
	if err != nil {
		logger.Error("failed to load loan store", "err", err)
		os.Exit(1)
	}

	provider, err := wallet.NewProviderFromConfig(cfg)
	if err != nil {
		logger.Error("failed to create wallet provider", "err", err)
		os.Exit(1)
	}
	gateway := settlement.NewGateway(provider, logger, settlement.Options{
		DisbursementPremiumPct: cfg.DisbursementPremiumPct,
		RepaymentPremiumPct:    cfg.RepaymentPremiumPct,
	})

	hub := ws.NewHub()
	supervisor, err := tracker.NewSupervisor(gateway, loanStore, ws.NewSettlementNotifier(hub), logger, tracker.Config{
		FastInterval:     cfg.FastPollInterval,
		FastAttempts:     cfg.FastPollAttempts,
		ExtendedInterval: cfg.ExtendedPollInterval,
		ExtendedAttempts: cfg.ExtendedPollAttempts,
		PoolSize:         cfg.TrackerPoolSize,
	})
	if err != nil {
		logger.Error("failed to create confirmation tracker", "err", err)
		os.Exit(1)
	}
	defer supervisor.Release()

	policy := lifecycle.NewAuthorizationPolicy(cfg.AdminAllowlist, cfg.DefaultAdminAddress)
	engine := lifecycle.NewEngine(loanStore, gateway, supervisor, contract.NewTextGenerator(kv), ws.NewBorrowerNotifier(hub), policy, logger)

	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)

	r := server.NewRouter(cfg, logger, server.Dependencies{
		HealthHandler: handlers.NewHealthHandler(kv, loanStore),
		AuthHandler:   handlers.NewAuthHandler(jwtManager, cfg.JWTSessionTTL),
		LoanHandler:   handlers.NewLoanHandler(engine),
		WSHandler:     ws.NewHandler(hub),
		JWTManager:    jwtManager,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}
