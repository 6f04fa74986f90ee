package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next(t *testing.T, sub Subscription) Update {
	t.Helper()
	select {
	case u, ok := <-sub.Updates():
		require.True(t, ok, "updates channel closed")
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

func TestHub_LateSubscriberGetsLastValue(t *testing.T) {
	h := NewHub()
	first, err := h.Subscribe("products/count")
	require.NoError(t, err)
	defer first.Close()

	h.Publish(Update{Path: "products/count", Value: json.RawMessage("41")})
	h.Publish(Update{Path: "products/count", Value: json.RawMessage("42")})

	assert.Equal(t, json.RawMessage("41"), next(t, first).Value)
	assert.Equal(t, json.RawMessage("42"), next(t, first).Value)

	late, err := h.Subscribe("products/count")
	require.NoError(t, err)
	defer late.Close()
	assert.Equal(t, json.RawMessage("42"), next(t, late).Value)
}

func TestHub_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	h := NewHub()
	sub, err := h.Subscribe("p")
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(Update{Path: "p", Value: json.RawMessage("1")})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked by unread subscriber")
	}
}

func TestHub_CloseStopsDelivery(t *testing.T) {
	var released []string
	h := NewHub()
	h.OnLast = func(path string) { released = append(released, path) }

	sub, err := h.Subscribe("p")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	h.Publish(Update{Path: "p", Value: json.RawMessage("1")})
	_, ok := <-sub.Updates()
	assert.False(t, ok)
	assert.Equal(t, []string{"p"}, released)
	assert.Empty(t, h.Paths())
}

func TestHub_ResubscribeWhileLastLeaves(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	releasing := make(chan struct{})
	unblock := make(chan struct{})

	h := NewHub()
	h.OnFirst = func(string) error {
		record("subscribe")
		return nil
	}
	h.OnLast = func(string) {
		record("unsubscribe")
		close(releasing)
		<-unblock
	}

	a, err := h.Subscribe("p")
	require.NoError(t, err)
	closed := make(chan struct{})
	go func() {
		_ = a.Close()
		close(closed)
	}()
	<-releasing

	subscribed := make(chan Subscription, 1)
	go func() {
		b, err := h.Subscribe("p")
		assert.NoError(t, err)
		subscribed <- b
	}()

	select {
	case <-subscribed:
		t.Fatal("subscribe ran while the previous subscriber was still being released")
	case <-time.After(50 * time.Millisecond):
	}
	close(unblock)
	<-closed

	var b Subscription
	select {
	case b = <-subscribed:
	case <-time.After(time.Second):
		t.Fatal("subscribe did not complete")
	}
	defer b.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"subscribe", "unsubscribe", "subscribe"}, events)
	assert.Equal(t, []string{"p"}, h.Paths())

	h.Publish(Update{Path: "p", Value: json.RawMessage("3")})
	assert.Equal(t, json.RawMessage("3"), next(t, b).Value)
}

func TestHub_OnFirstError(t *testing.T) {
	h := NewHub()
	h.OnFirst = func(string) error { return errors.New("broker down") }
	_, err := h.Subscribe("p")
	assert.EqualError(t, err, "broker down")
}

func TestHub_ErrorsAreNotRemembered(t *testing.T) {
	h := NewHub()
	sub, err := h.Subscribe("p")
	require.NoError(t, err)
	defer sub.Close()

	h.Broadcast(errors.New("connection lost"))
	assert.EqualError(t, next(t, sub).Err, "connection lost")

	late, err := h.Subscribe("p")
	require.NoError(t, err)
	defer late.Close()
	select {
	case u := <-late.Updates():
		t.Fatalf("unexpected update %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(json.RawMessage("null")))
	assert.False(t, IsNull(json.RawMessage("0")))
}
