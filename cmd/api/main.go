// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/marketrank/internal/api"
	"github.com/onnwee/marketrank/internal/cache"
	"github.com/onnwee/marketrank/internal/config"
	"github.com/onnwee/marketrank/internal/health"
	"github.com/onnwee/marketrank/internal/middleware"
	"github.com/onnwee/marketrank/internal/ranking"
	"github.com/onnwee/marketrank/internal/tracing"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// cleanupInterval is how often in-process caches and rate limit buckets are swept.
const cleanupInterval = time.Minute

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Marketrank API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			slog.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName:    tracing.DefaultServiceName,
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serveErr := serve(server, logger, quit)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.close()
	if err := provider.Shutdown(ctx); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}

	if serveErr != nil {
		logger.Error("server error", "error", serveErr)
		os.Exit(1)
	}
}

// serve runs server until a signal arrives on quit, then shuts it down
// gracefully, letting in-flight requests finish.
func serve(server *http.Server, logger *slog.Logger, quit <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down server...", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// app holds the wired handler and the resources it owns.
type app struct {
	handler  http.Handler
	registry *prometheus.Registry
	close    func()
}

// newApp wires every component from cfg. The returned app's close must be
// called to stop background sweepers and release the Redis client.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	defaults, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		// Calibration degrades to the built-in defaults.
		logger.Warn("using default ranking calibration", "error", err)
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	closers := []func(){cancel}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mwMetrics := middleware.NewMetrics()
	if err := mwMetrics.Register(registry); err != nil {
		closeAll()
		return nil, fmt.Errorf("register middleware metrics: %w", err)
	}
	rankingMetrics := api.NewMetrics()
	if err := rankingMetrics.Register(registry); err != nil {
		closeAll()
		return nil, fmt.Errorf("register ranking metrics: %w", err)
	}

	var (
		store        cache.Store
		cacheBackend string
		limitStore   middleware.RateLimitStore
		checkers     = map[string]api.HealthChecker{}
	)

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		})

		store = cache.NewBreakerStore(cache.NewRedisStore(client), cache.DefaultBreakerConfig())
		cacheBackend = "redis"
		limitStore = middleware.NewRedisRateLimitStore(client).WithMetrics(mwMetrics)
		checkers["redis"] = health.NewRedisChecker(client)
		logger.Info("using redis for ranked output cache and rate limiting")
	} else {
		mem := cache.NewMemoryStore()
		memLimits := middleware.NewInMemoryRateLimitStore()
		go sweep(sweepCtx, cleanupInterval, mem.Cleanup, memLimits.Cleanup)

		store = mem
		cacheBackend = "memory"
		limitStore = memLimits
		logger.Info("redis not configured, using in-process cache and rate limiting")
	}
	checkers["cache"] = health.NewCacheChecker(store)

	trending := api.NewTrendingHandlers(api.TrendingHandlersConfig{
		Defaults:      defaults,
		DefaultPreset: cfg.RankingDefaultPreset,
		MaxRecords:    cfg.MaxRecords,
		Cache:         store,
		CacheBackend:  cacheBackend,
		CacheTTL:      time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Metrics:       rankingMetrics,
	})
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{Checkers: checkers})

	globalLimit := middleware.DefaultGlobalLimit()
	globalLimit.RequestsPerWindow = cfg.RateLimitPerMinute
	rankingLimit := middleware.DefaultRankingLimit()
	if cfg.RateLimitPerMinute < rankingLimit.RequestsPerWindow {
		rankingLimit.RequestsPerWindow = cfg.RateLimitPerMinute
	}
	ipKey := middleware.IPKeyFunc()

	mux := http.NewServeMux()
	mux.Handle("/trending", middleware.RateLimiter(limitStore, rankingLimit, ipKey, mwMetrics)(
		http.HandlerFunc(trending.Rank)))
	mux.HandleFunc("/trending/presets", trending.ListPresets)
	mux.HandleFunc("/trending/presets/", trending.GetPreset)
	mux.HandleFunc("/trending/defaults", trending.Defaults)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, `{"service":%q,"version":%q}`, tracing.DefaultServiceName, version); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> Profiling -> RateLimiter -> mux
	var handler http.Handler = mux
	handler = middleware.RateLimiter(limitStore, globalLimit, ipKey, mwMetrics)(handler)
	handler = middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Env,
	})(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(middleware.ParseOrigins(cfg.CORSAllowedOrigins)))(handler)
	handler = middleware.HTTPMetrics(mwMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(tracing.DefaultServiceName)(handler)
	handler = middleware.RequestID(handler)

	return &app{handler: handler, registry: registry, close: closeAll}, nil
}

// sweep runs fns every interval until ctx is done.
func sweep(ctx context.Context, interval time.Duration, fns ...func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, fn := range fns {
				fn()
			}
		}
	}
}
