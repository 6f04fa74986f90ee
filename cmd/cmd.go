package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/counter-dashboard/internal/pkg/auth"
	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/contxt"
	"github.com/anicoll/counter-dashboard/internal/pkg/database"
	"github.com/anicoll/counter-dashboard/internal/pkg/device"
	"github.com/anicoll/counter-dashboard/internal/pkg/mqtt"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime/memory"
	"github.com/anicoll/counter-dashboard/internal/pkg/server"
)

const (
	shutdownTimeout = 10 * time.Second
	jobTimeout      = time.Minute
)

var errUnknownRepository = errors.New("unknown auth repository")

var registerOnce sync.Once

func registerBackends() error {
	var err error
	registerOnce.Do(func() {
		err = errors.Join(
			realtime.RegisterBackend("memory", memory.Open),
			realtime.RegisterBackend("mqtt", mqtt.Open),
			realtime.RegisterBackend("postgres", database.Open),
		)
	})
	return err
}

// setup loads configuration and installs the global logger.
func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

func newLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	var err error
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

// ServeCommand runs the dashboard.
func ServeCommand(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()

	if err := registerBackends(); err != nil {
		return err
	}
	store, err := realtime.Open(c.Context, cfg.Backend)
	if err != nil {
		return err
	}
	defer store.Close()

	repo, closeRepo, err := authRepository(c.Context, cfg, store)
	if err != nil {
		return err
	}
	defer closeRepo()

	manager := auth.NewManager(repo, cfg.Auth)
	if cfg.Auth.SeedEmail != "" {
		ctx, cancel := contxt.NewContext(c.Context, jobTimeout)
		defer cancel()
		if err := manager.EnsureUser(ctx, cfg.Auth.SeedEmail, cfg.Auth.SeedPassword); err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
	}

	return run(c.Context, cfg, store, manager, logger)
}

// authRepository picks the user/session store. A postgres realtime backend
// is reused rather than opening a second pool.
func authRepository(ctx context.Context, cfg *config.Config, store realtime.Store) (auth.Repository, func(), error) {
	switch cfg.Auth.Repository {
	case "memory":
		return auth.NewMemoryRepository(), func() {}, nil
	case "postgres":
		if db, ok := store.(*database.Database); ok {
			return db, func() {}, nil
		}
		db, err := database.Connect(ctx, cfg.Backend.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownRepository, cfg.Auth.Repository)
	}
}

func run(ctx context.Context, cfg *config.Config, store realtime.Store, manager *auth.Manager, logger *zap.Logger) error {
	eg, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:      server.New(store, manager, cfg.HTTP, cfg.Auth).Router(),
		Addr:         cfg.HTTP.Addr,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
	}

	eg.Go(func() error {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("context done, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		return cronSessionCleanup(ctx, manager, cfg.Auth.CleanupSchedule)
	})

	if cfg.Device.Enabled {
		eg.Go(func() error {
			logger.Info("running in-process device simulator")
			return device.New(store, cfg.Device).Run(ctx)
		})
	}

	return eg.Wait()
}

type sessionCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

func cleanupSessions(ctx context.Context, sessions sessionCleaner) error {
	ctx, cancel := contxt.NewContext(ctx, jobTimeout)
	defer cancel()
	removed, err := sessions.Cleanup(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("expired sessions removed", zap.Int64("count", removed))
	return nil
}

func cronSessionCleanup(ctx context.Context, sessions sessionCleaner, schedule string) error {
	if err := cleanupSessions(ctx, sessions); err != nil {
		zap.L().Error("error cleaning up sessions", zap.Error(err))
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := cleanupSessions(ctx, sessions); err != nil {
			zap.L().Error("error cleaning up sessions", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule session cleanup: %w", err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
