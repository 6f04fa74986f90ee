// Package memory is an in-process realtime store used for local development
// and tests.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

type Store struct {
	hub      *realtime.Hub
	mu       sync.Mutex
	values   map[string]json.RawMessage
	writeErr error
	writes   []Write
	closed   bool
	now      func() time.Time
}

// Write records a Set call.
type Write struct {
	Path  string
	Value json.RawMessage
}

func New() *Store {
	s := &Store{
		hub:    realtime.NewHub(),
		values: make(map[string]json.RawMessage),
		now:    time.Now,
	}
	s.hub.OnFirst = func(path string) error {
		s.mu.Lock()
		v, ok := s.values[path]
		s.mu.Unlock()
		if ok {
			s.hub.Publish(realtime.Update{Path: path, Value: v})
		}
		return nil
	}
	return s
}

// Open satisfies realtime.Opener.
func Open(_ context.Context, _ *config.BackendConfig) (realtime.Store, error) {
	return New(), nil
}

func (s *Store) Subscribe(_ context.Context, path string) (realtime.Subscription, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, realtime.ErrClosed
	}
	return s.hub.Subscribe(path)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if realtime.IsServerTimestamp(value) {
		s.mu.Lock()
		value = s.now().UnixMilli()
		s.mu.Unlock()
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return realtime.ErrClosed
	}
	if s.writeErr != nil {
		err := s.writeErr
		s.writeErr = nil
		s.mu.Unlock()
		return err
	}
	s.values[path] = data
	s.writes = append(s.writes, Write{Path: path, Value: data})
	s.mu.Unlock()

	s.hub.Publish(realtime.Update{Path: path, Value: data})
	return nil
}

// Get returns the stored value at path.
func (s *Store) Get(path string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[path]
	return v, ok
}

// Writes returns every successful Set in order.
func (s *Store) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// FailNextWrite makes the next Set return err.
func (s *Store) FailNextWrite(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// FailSubscription pushes err to every subscriber of path.
func (s *Store) FailSubscription(path string, err error) {
	s.hub.Publish(realtime.Update{Path: path, Err: err})
}

// SetClock overrides the clock used for server timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}
