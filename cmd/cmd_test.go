package cmd

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/counter-dashboard/internal/pkg/auth"
	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime/memory"
)

func testConfig(addr string) *config.Config {
	return &config.Config{
		LogLevel: "DEBUG",
		HTTP: &config.HTTPConfig{
			Addr:                 addr,
			ReadTimeout:          time.Second,
			WriteTimeout:         time.Second,
			SessionCheckInterval: time.Second,
			PingInterval:         time.Second,
			LoginRateLimit:       10,
		},
		Backend: &config.BackendConfig{Kind: "memory", ProjectID: "test"},
		Auth: &config.AuthConfig{
			SigningKey:      "test-secret",
			Issuer:          "test",
			SessionTTL:      time.Hour,
			CookieName:      "session",
			Repository:      "memory",
			CleanupSchedule: "@every 1h",
		},
		Device: &config.DeviceConfig{Interval: time.Millisecond, Step: 1},
	}
}

// TestRun_ContextCancellation tests that run() shuts down cleanly when the context is cancelled.
func TestRun_ContextCancellation(t *testing.T) {
	t.Parallel()
	logger := zaptest.NewLogger(t)
	cfg := testConfig("127.0.0.1:0")
	cfg.Device.Enabled = true
	store := memory.New()
	manager := auth.NewManager(auth.NewMemoryRepository(), cfg.Auth)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- run(ctx, cfg, store, manager, logger) }()

	// the in-process simulator is running
	require.Eventually(t, func() bool {
		_, ok := store.Get("products/count")
		return ok
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

// TestRun_ListenError tests that a server that cannot bind stops everything else.
func TestRun_ListenError(t *testing.T) {
	t.Parallel()
	cfg := testConfig("127.0.0.1:-1")
	manager := auth.NewManager(auth.NewMemoryRepository(), cfg.Auth)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := run(ctx, cfg, memory.New(), manager, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.NoError(t, ctx.Err())
}

func TestRun_BadCleanupSchedule(t *testing.T) {
	t.Parallel()
	cfg := testConfig("127.0.0.1:0")
	cfg.Auth.CleanupSchedule = "not a schedule"
	manager := auth.NewManager(auth.NewMemoryRepository(), cfg.Auth)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := run(ctx, cfg, memory.New(), manager, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "schedule session cleanup")
}

type fakeCleaner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCleaner) Cleanup(context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

func TestCleanupSessions(t *testing.T) {
	t.Parallel()
	assert.NoError(t, cleanupSessions(context.Background(), &fakeCleaner{}))

	boom := errors.New("boom")
	assert.ErrorIs(t, cleanupSessions(context.Background(), &fakeCleaner{err: boom}), boom)
}

func TestCronSessionCleanup_RunsOnStartAndStops(t *testing.T) {
	t.Parallel()
	cleaner := &fakeCleaner{err: errors.New("database unavailable")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- cronSessionCleanup(ctx, cleaner, "@every 1h") }()
	require.Eventually(t, func() bool { return cleaner.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cron did not stop")
	}
}

func TestAuthRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := testConfig("")
	repo, closeRepo, err := authRepository(ctx, cfg, memory.New())
	require.NoError(t, err)
	closeRepo()
	assert.IsType(t, &auth.MemoryRepository{}, repo)

	cfg.Auth.Repository = "postgres"
	_, _, err = authRepository(ctx, cfg, memory.New())
	assert.ErrorIs(t, err, config.ErrMissingValue)

	cfg.Auth.Repository = "ldap"
	_, _, err = authRepository(ctx, cfg, memory.New())
	assert.ErrorIs(t, err, errUnknownRepository)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	logger, err := newLogger("DEBUG")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger("LOUD")
	assert.Error(t, err)
}

func TestRegisterBackends(t *testing.T) {
	require.NoError(t, registerBackends())
	require.NoError(t, registerBackends())
}
