package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/loka/internal/adapters/http/api"
	"github.com/okian/loka/internal/adapters/http/swagger"
	"github.com/okian/loka/internal/adapters/repository"
	app "github.com/okian/loka/internal/app"
	"github.com/okian/loka/internal/config"
	"github.com/okian/loka/internal/domain/radar"
	"github.com/okian/loka/pkg/logger"
	"github.com/okian/loka/pkg/metrics"
	"github.com/okian/loka/pkg/schedule"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := initLogging(cfg); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server exited with error", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) error {
	opts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if cfg.LogFile != "" {
		opts = append(opts, logger.WithFile(cfg.LogFile))
	}
	if err := logger.Init(opts...); err != nil {
		return err
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

// run serves the API until ctx is cancelled, then shuts everything down.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Named("server")

	opts, err := metricsOptions(cfg)
	if err != nil {
		return err
	}
	metrics.Init(opts...)

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	handler, err := newHandler(ctx, svc)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := schedule.Every(gctx, schedule.RealClock{}, metrics.RefreshInterval(), func(context.Context) error {
			metrics.CollectRuntime()
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		// Wait for shutdown signal or a failed server
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
			return err
		}
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// metricsOptions maps the metrics keys of cfg onto manager options.
func metricsOptions(cfg *config.Config) ([]metrics.Option, error) {
	labels, err := cfg.MetricsLabelMap()
	if err != nil {
		return nil, err
	}
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithMetricPrefix(cfg.MetricsPrefix),
		metrics.WithCustomLabels(labels),
		metrics.WithHistogramBuckets(cfg.MetricsLatencyBucketsMS),
		metrics.WithRefreshInterval(cfg.MetricsInterval()),
	}, nil
}

// newService opens the configured store and builds the location service.
func newService(ctx context.Context, cfg *config.Config) (*app.Service, error) {
	store, err := repository.Open(ctx, repository.Settings{
		Backend:      cfg.StoreBackend,
		DataFile:     cfg.DataFile,
		Codec:        cfg.DataCodec,
		WriteThrough: cfg.DataWriteThrough,
		DatabaseURL:  cfg.DatabaseURL,
		CacheSize:    cfg.ProfileCacheSize,
	}, logger.Named("repository"))
	if err != nil {
		return nil, err
	}

	radarCfg := radar.Config{
		MaxRangeMeters:        cfg.RadarMaxRangeM,
		MinMarkerRadiusPixels: cfg.RadarMinMarkerPx,
		MarkerSizePixels:      cfg.RadarMarkerSizePx,
	}
	return app.New(
		app.WithLogger(logger.Named("service")),
		app.WithStore(store, cfg.StoreBackend),
		app.WithDefaultRadius(cfg.DefaultRadiusM),
		app.WithMaxRadius(cfg.MaxRadiusM),
		app.WithRadarConfig(radarCfg),
		app.WithDisplayRatio(cfg.RadarDisplayRatio),
		app.WithViewportWidth(cfg.RadarViewportWidth),
		app.WithFlushInterval(cfg.FlushInterval()),
		app.WithStatsInterval(metrics.RefreshInterval()),
	), nil
}

// newHandler registers the docs and API routes behind the shared middleware.
func newHandler(ctx context.Context, svc *app.Service) (http.Handler, error) {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	apiServer, err := api.NewServer(svc, svc, api.WithLogger(logger.Named("api")))
	if err != nil {
		return nil, err
	}
	apiServer.Register(ctx, mux)
	return apiServer.Handler(mux), nil
}
