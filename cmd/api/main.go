package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/opd-frontdesk/cmd/mainconfig"
	"github.com/wolfman30/opd-frontdesk/internal/api/router"
	"github.com/wolfman30/opd-frontdesk/internal/app/bootstrap"
	appconfig "github.com/wolfman30/opd-frontdesk/internal/config"
	"github.com/wolfman30/opd-frontdesk/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/opd-frontdesk/internal/http/middleware"
	"github.com/wolfman30/opd-frontdesk/internal/observability/metrics"
	"github.com/wolfman30/opd-frontdesk/internal/opd"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

func main() {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting opd-frontdesk API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"voice_mode", cfg.VoiceMode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	loadAWS := mainconfig.Loader(cfg)

	store, closeStore, err := bootstrap.BuildStore(ctx, cfg, loadAWS, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	email, err := bootstrap.BuildEmailSender(ctx, cfg, loadAWS, logger)
	if err != nil {
		return err
	}

	metricsHandler, deskMetrics := setupMetrics()
	frontDesk, err := bootstrap.BuildFrontDesk(ctx, cfg, store, email, deskMetrics, logger)
	if err != nil {
		return err
	}
	defer frontDesk.Stop()

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Close()

	if cfg.OperatorJWTSecret == "" {
		logger.Warn("OPERATOR_JWT_SECRET not set; desk endpoints are unauthenticated")
	}
	r := router.New(&router.Config{
		Logger:             logger,
		DoctorsHandler:     handlers.NewDoctorsHandler(frontDesk.Doctors, frontDesk.Desk, logger),
		PatientsHandler:    handlers.NewPatientsHandler(frontDesk.Desk),
		OPDHandler:         handlers.NewOPDHandler(frontDesk.Desk, logger),
		MetricsHandler:     metricsHandler,
		RateLimiter:        limiter,
		OperatorJWTSecret:  cfg.OperatorJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	go sweepIdleSessions(ctx, frontDesk.Desk, cfg.SessionIdleTimeout, logger)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Voice streams are long-lived, so no WriteTimeout.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupMetrics registers the desk metrics on a private registry alongside the
// Go runtime collectors.
func setupMetrics() (http.Handler, *metrics.FrontdeskMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewFrontdeskMetrics(reg)
}

// sweepIdleSessions closes abandoned form sessions until ctx ends.
func sweepIdleSessions(ctx context.Context, desk *opd.Desk, maxIdle time.Duration, logger *logging.Logger) {
	if maxIdle <= 0 {
		return
	}
	interval := maxIdle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := desk.SweepIdle(maxIdle); n > 0 {
				logger.Info("closed idle form sessions", "count", n)
			}
		}
	}
}
