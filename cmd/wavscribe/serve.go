package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/wavscribe/internal/api"
	"github.com/MrWong99/wavscribe/internal/config"
	"github.com/MrWong99/wavscribe/internal/health"
	"github.com/MrWong99/wavscribe/internal/jobs"
	"github.com/MrWong99/wavscribe/internal/observe"
	"github.com/MrWong99/wavscribe/internal/resilience"
	"github.com/MrWong99/wavscribe/internal/transcribe"
)

func newServeCmd(c *cli) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP transcription service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.setup()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.ListenAddr = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address; overrides server.listen_addr")
	return cmd
}

// serve runs the API until ctx is cancelled, then drains requests and jobs
// within the configured shutdown timeout.
func (c *cli) serve(ctx context.Context, cfg *config.Config) error {
	log := c.log
	log.Info("wavscribe starting",
		"version", version,
		"config", c.configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"max_concurrent_runs", cfg.Server.MaxConcurrentRuns,
	)

	tel, err := observe.Setup(observe.TelemetryConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		DisableMetrics: !cfg.Telemetry.MetricsEnabled,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			log.Warn("telemetry shutdown error", "err", err)
		}
	}()
	met, err := observe.NewMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	var current atomic.Pointer[config.Config]
	current.Store(cfg)
	var watcher *config.Watcher
	if c.configPath != "" {
		watcher, err = config.NewWatcher(c.configPath, c.onConfigChange(&current),
			config.WithWatcherLogger(log),
		)
		if err != nil {
			return err
		}
	}

	store, checkers, closeStore, err := openStore(ctx, cfg.Jobs, log)
	if err != nil {
		return err
	}
	defer closeStore()
	checkers = append(checkers, health.ModelFile(func() string {
		return current.Load().Transcribe.Model
	}))

	runner := transcribe.New(c.engineLoader(),
		transcribe.WithLogger(log),
		transcribe.WithMetrics(met),
	)
	mgr := jobs.NewManager(store, runner,
		jobs.WithMaxConcurrent(cfg.Server.MaxConcurrentRuns),
		jobs.WithLogger(log),
		jobs.WithMetrics(met),
	)

	apiOpts := []api.Option{
		api.WithLogger(log),
		api.WithMetrics(met),
		api.WithHealth(health.New(checkers...)),
		api.WithHistoryLimit(cfg.Jobs.HistoryLimit),
		api.WithInputDir(cfg.Server.InputDir),
		api.WithModelDir(cfg.Server.ModelDir),
	}
	if !cfg.Telemetry.MetricsEnabled {
		apiOpts = append(apiOpts, api.WithMetricsHandler(nil))
	}
	srv := api.New(mgr, func() transcribe.Params { return current.Load().Transcribe }, apiOpts...)

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server ready", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if watcher != nil {
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
		g.Go(func() error {
			reloadOnHangup(gctx, watcher, log)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, stopping")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(httpSrv.Shutdown(sctx), mgr.Shutdown(sctx))
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("goodbye")
	return nil
}

// reloadOnHangup checks the config file whenever the process gets SIGHUP
// instead of waiting for the next poll.
func reloadOnHangup(ctx context.Context, w *config.Watcher, log *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			changed, err := w.Reload()
			if err != nil {
				log.Warn("config reload on SIGHUP failed", "err", err)
				continue
			}
			log.Debug("config reload on SIGHUP", "changed", changed)
		}
	}
}

// onConfigChange applies hot-reloadable settings and stores the new config.
func (c *cli) onConfigChange(current *atomic.Pointer[config.Config]) config.ChangeFunc {
	return func(_, new *config.Config, d config.ConfigDiff) {
		if d.LogLevelChanged && !c.levelPinned() {
			c.level.Set(slogLevel(d.NewLogLevel))
			c.log.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.TranscribeChanged {
			c.log.Info("default transcription parameters reloaded", "model", new.Transcribe.Model, "language", new.Transcribe.Language)
		}
		for _, key := range d.RestartRequired {
			c.log.Warn("config change takes effect after restart", "key", key)
		}
		current.Store(new)
	}
}

// openStore returns the configured job store, the health checks for its
// backing service and a function releasing it.
func openStore(ctx context.Context, cfg config.JobsConfig, log *slog.Logger) (jobs.Store, []health.Checker, func(), error) {
	if cfg.PostgresDSN == "" {
		log.Info("job store: in memory")
		return jobs.NewMemStore(), nil, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect job store: %w", err)
	}
	pg := jobs.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	breaker := resilience.New(resilience.Config{
		Name:      "job_store",
		IsFailure: jobs.IsStoreFailure,
		Logger:    log,
	})
	checks := []health.Checker{
		health.Ping("job_store", pool),
		{Name: "job_store_circuit", Check: func(context.Context) error {
			if breaker.State() == resilience.StateOpen {
				return resilience.ErrOpen
			}
			return nil
		}},
	}
	log.Info("job store: postgres")
	return jobs.Guard(pg, breaker), checks, pool.Close, nil
}
