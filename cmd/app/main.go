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

	"telegram-max-bridge/internal/config"
	maxgw "telegram-max-bridge/internal/infra/adapters/max"
	tele "telegram-max-bridge/internal/infra/adapters/telegram"
	pg "telegram-max-bridge/internal/infra/db/postgres"
	"telegram-max-bridge/internal/infra/logging"
	"telegram-max-bridge/internal/infra/metrics"
	red "telegram-max-bridge/internal/infra/redis"
	"telegram-max-bridge/internal/infra/sched"
	"telegram-max-bridge/internal/infra/security"
	"telegram-max-bridge/internal/infra/web"
	"telegram-max-bridge/internal/usecase"
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
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Credential vault ----
	vault, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Repositories ----
	userRepo := pg.NewUserRepoCacheDecorator(pg.NewUserRepo(pool), redisClient, cfg.Redis.TTL)
	connRepo := pg.NewSourceConnectionRepo(pool)
	chanRepo := pg.NewDestinationChannelRepo(pool)
	linkRepo := pg.NewLinkRepo(pool)
	postRepo := pg.NewPostRecordRepo(pool)
	quotaRepo := pg.NewQuotaRepo(pool)

	// ---- Provider adapters ----
	sourceAPI := tele.NewClient(cfg.Providers.TelegramAPIBase, cfg.Providers.SendTimeout, logger)
	gateway := maxgw.NewClient(cfg.Providers.MaxAPIBase, &http.Client{Timeout: cfg.Providers.SendTimeout}, logger)

	// ---- Use cases ----
	limiterUC := usecase.NewRateLimiterUseCase(userRepo, linkRepo, quotaRepo, cfg.Limits, logger)
	ledgerUC := usecase.NewPostLedgerUseCase(postRepo, quotaRepo, cfg.Limits, logger)
	dispatchUC := usecase.NewDispatchUseCase(connRepo, chanRepo, linkRepo, limiterUC, ledgerUC, gateway, sourceAPI, vault, locker, cfg.Providers.SendTimeout, logger)
	userUC := usecase.NewUserUseCase(userRepo, tm, logger)
	connUC := usecase.NewSourceConnectionUseCase(connRepo, sourceAPI, vault, cfg.Providers.WebhookBaseURL, logger)
	chanUC := usecase.NewDestinationChannelUseCase(chanRepo, gateway, vault, cfg.Providers.SendTimeout, logger)
	linkUC := usecase.NewLinkUseCase(linkRepo, connRepo, chanRepo, limiterUC, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Security.JWTSecret, !cfg.Runtime.Dev, "", 24*time.Hour)
	srv := web.NewServer(dispatchUC, ledgerUC, limiterUC, userUC, connUC, chanUC, linkUC, auth, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Retention worker ----
	worker := sched.NewRetentionWorker(time.Duration(cfg.Limits.RetentionIntervalHours)*time.Hour, ledgerUC, locker, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
}
