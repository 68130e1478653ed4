package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/infra/api"
	"dealflow-billing/internal/infra/archive"
	pg "dealflow-billing/internal/infra/db/postgres"
	"dealflow-billing/internal/infra/logging"
	"dealflow-billing/internal/infra/metrics"
	"dealflow-billing/internal/infra/notify"
	"dealflow-billing/internal/infra/payment"
	red "dealflow-billing/internal/infra/redis"
	"dealflow-billing/internal/infra/render"
	"dealflow-billing/internal/infra/sched"
	"dealflow-billing/internal/infra/web"
	"dealflow-billing/internal/infra/worker"
	"dealflow-billing/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (test signatures accepted)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool := pg.MustConnect(cfg.Database.URL)
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	alertThrottle := red.NewAlertThrottle(redisClient, 24*time.Hour)

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	invoiceRepo := pg.NewInvoiceRepo(pool)
	jobRepo := pg.NewInvoiceJobRepo(pool, tm)
	planRepo := pg.NewPlanRepo(pool)
	membershipRepo := pg.NewMembershipRepo(pool)
	discountRepo := pg.NewDiscountRepo(pool)

	// ---- Adapters ----
	gateway, err := payment.NewGateway(model.GatewayKind(cfg.Payment.Provider), &cfg.Payment, cfg.Runtime.Dev)
	if err != nil {
		log.Fatalf("payment gateway: %v", err)
	}
	renderer, err := render.NewHTMLRenderer(cfg.Invoice.DocumentDir, logger)
	if err != nil {
		log.Fatalf("renderer: %v", err)
	}
	archiver, err := archive.NewTarGzArchiver(cfg.Retention.ArchiveDir, logger)
	if err != nil {
		log.Fatalf("archiver: %v", err)
	}
	notifier := notify.NewHTTPSink(&cfg.Notify, logger)

	// ---- Queue + use cases ----
	queue := worker.NewInvoiceQueue(jobRepo, paymentRepo, &cfg.Queue, cfg.Invoice.SellerState, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, gateway, queue, notifier, &cfg.Payment, logger)
	invoiceUC := usecase.NewInvoiceUseCase(invoiceRepo, paymentRepo, renderer, &cfg.Invoice, logger)
	discountUC := usecase.NewDiscountUseCase(discountRepo)
	membershipUC := usecase.NewMembershipUseCase(planRepo, membershipRepo, discountUC, tm, logger)

	// ---- Background workers ----
	workerPool := worker.NewPool(cfg.Queue.Workers, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	processor := worker.NewInvoiceJobProcessor(jobRepo, paymentRepo, invoiceUC, &cfg.Queue, logger)
	go processor.Start(ctx, workerPool)

	reconciler := sched.NewPaymentReconciler(paymentRepo, gateway, &cfg.Payment, logger)
	go func() { _ = reconciler.Run(ctx) }()

	retention := sched.NewRetentionWorker(invoiceRepo, archiver, &cfg.Retention, logger)
	go func() { _ = retention.Run(ctx) }()

	diskMonitor := sched.NewDiskMonitor(&cfg.Retention, alertThrottle, notifier, cfg.Admin.Email, logger)
	go func() { _ = diskMonitor.Run(ctx) }()

	digest := sched.NewDigestWorker(jobRepo, notifier, cfg.Admin.Email, cfg.Retention.DigestInterval, logger)
	go func() { _ = digest.Run(ctx) }()

	// ---- Public API ----
	apiSrv := api.NewServer(paymentUC, membershipUC, discountUC, planRepo, rateLimiter, &cfg.Payment, logger)
	public := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiSrv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", public.Addr).Msg("public API listening")
		if err := public.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("public server stopped")
		}
	}()

	// ---- Admin API + metrics ----
	adminMux := http.NewServeMux()
	web.NewServer(queue, paymentUC, &cfg.Admin, logger).RegisterRoutes(adminMux)
	admin := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.AdminPort),
		Handler:           adminMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", admin.Addr).Msg("admin API listening")
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := public.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("public server shutdown")
	}
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin server shutdown")
	}
	cancel()
}
