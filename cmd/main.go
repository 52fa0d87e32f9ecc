package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/meradin/internal/adapters/http/api"
	"github.com/okian/meradin/internal/adapters/http/site"
	"github.com/okian/meradin/internal/adapters/http/swagger"
	"github.com/okian/meradin/internal/adapters/upstream"
	app "github.com/okian/meradin/internal/app"
	"github.com/okian/meradin/internal/config"
	"github.com/okian/meradin/internal/domain/content"
	"github.com/okian/meradin/internal/opsauth"
	"github.com/okian/meradin/pkg/logger"
	"github.com/okian/meradin/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := newService(cfg, loggerInstance)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	handler, err := newHandler(ctx, cfg, svc)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build handlers", logger.Error(err))
		os.Exit(1)
	}

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("site_url", cfg.SiteURL),
			logger.Bool("upstream_configured", svc.Configured()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// newService wires the scoring API client behind the reading cache.
func newService(cfg *config.Config, log logger.Logger) *app.Service {
	client := upstream.New(cfg.APIBaseURL,
		upstream.WithTimeout(cfg.APITimeout()),
		upstream.WithLogger(log.Named("upstream")),
	)
	return app.New(
		app.WithLogger(log),
		app.WithScorer(client),
		app.WithCacheSize(cfg.CacheSize),
	)
}

// newHandler registers the site, the JSON API, the ops endpoints and the
// API docs on one mux wrapped in request logging.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service) (http.Handler, error) {
	catalog, err := content.Load()
	if err != nil {
		return nil, err
	}
	creds, err := opsauth.Load(cfg.OpsAuthFile)
	if err != nil {
		return nil, err
	}
	limiter := api.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	opsLimiter := api.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	pages, err := site.New(svc, catalog,
		site.WithSiteURL(cfg.SiteURL),
		site.WithShareHost(cfg.ShareHost),
		site.WithLimiter(limiter),
	)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// API docs under /api-docs
	swagger.Register(ctx, mux)

	// The JSON API shares the form limiter with the site; ops routes get
	// their own bucket so scrapes do not spend form budget.
	apiServer := api.NewServer(svc, svc,
		api.WithLimiter(limiter),
		api.WithAuthenticator(creds),
		api.WithOpsLimiter(opsLimiter),
	)
	apiServer.Register(ctx, mux)

	pages.Register(ctx, mux)

	logger.Get().Info(ctx, "handlers registered",
		logger.Int("ops_users", creds.Len()),
		logger.Bool("rate_limited", limiter.Enabled()))

	return api.RequestLogger(mux), nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
