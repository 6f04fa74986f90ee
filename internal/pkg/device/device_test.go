package device

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/counter"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime/memory"
)

func count(t *testing.T, store *memory.Store) int64 {
	t.Helper()
	v, ok := store.Get(counter.CountPath)
	if !ok {
		return -1
	}
	var n int64
	require.NoError(t, json.Unmarshal(v, &n))
	return n
}

func start(t *testing.T, store realtime.Store) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sim := New(store, &config.DeviceConfig{Interval: 5 * time.Millisecond, Step: 1})
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestSimulator_Counts(t *testing.T) {
	store := memory.New()
	cancel, done := start(t, store)

	require.Eventually(t, func() bool { return count(t, store) >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestSimulator_ResetsOnCommand(t *testing.T) {
	store := memory.New()
	start(t, store)
	require.Eventually(t, func() bool { return count(t, store) >= 20 }, 2*time.Second, time.Millisecond)

	require.NoError(t, counter.SendReset(context.Background(), store))
	require.Eventually(t, func() bool { return count(t, store) < 20 }, time.Second, time.Millisecond)
}

func TestSimulator_StaleCommandIsHarmless(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Set(context.Background(), counter.ResetCommandPath, 1))
	start(t, store)

	require.Eventually(t, func() bool { return count(t, store) >= 5 }, time.Second, time.Millisecond)
}

func TestSimulator_IgnoresRepeatedCommand(t *testing.T) {
	sim := New(memory.New(), &config.DeviceConfig{Interval: time.Second, Step: 1})
	assert.True(t, sim.isNewReset(json.RawMessage("10")))
	assert.False(t, sim.isNewReset(json.RawMessage("10")))
	assert.False(t, sim.isNewReset(json.RawMessage("null")))
	assert.True(t, sim.isNewReset(json.RawMessage("11")))
}

func TestSimulator_KeepsCountingThroughWatchErrors(t *testing.T) {
	store := memory.New()
	_, done := start(t, store)

	require.Eventually(t, func() bool { return count(t, store) >= 1 }, time.Second, time.Millisecond)
	store.FailSubscription(counter.ResetCommandPath, errors.New("connection lost"))
	before := count(t, store)

	require.Eventually(t, func() bool { return count(t, store) >= before+3 }, time.Second, time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("simulator stopped: %v", err)
	default:
	}

	require.NoError(t, counter.SendReset(context.Background(), store))
	require.Eventually(t, func() bool { return count(t, store) < before+3 }, time.Second, time.Millisecond)
}

func TestSimulator_StopsWhenStoreCloses(t *testing.T) {
	store := memory.New()
	_, done := start(t, store)

	require.Eventually(t, func() bool { return count(t, store) >= 1 }, time.Second, time.Millisecond)
	require.NoError(t, store.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, realtime.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop")
	}
}
