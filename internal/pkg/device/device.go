// Package device simulates the counting device: it pushes an increasing
// product count and starts over when a reset command arrives.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/counter"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

type Simulator struct {
	store    realtime.Store
	interval time.Duration
	step     int64
	logger   *zap.Logger

	count     int64
	lastReset json.RawMessage
}

func New(store realtime.Store, cfg *config.DeviceConfig) *Simulator {
	return &Simulator{
		store:    store,
		interval: cfg.Interval,
		step:     cfg.Step,
		logger:   zap.L(),
	}
}

// Run publishes the count until ctx is cancelled or the store is closed.
// Errors on the reset command watch are logged, not returned. The count
// starts at zero, so a reset command already stored at startup changes
// nothing.
func (s *Simulator) Run(ctx context.Context) error {
	sub, err := s.store.Subscribe(ctx, counter.ResetCommandPath)
	if err != nil {
		return fmt.Errorf("watch reset command: %w", err)
	}
	defer sub.Close()

	if err := s.publish(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	updates := sub.Updates()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.count += s.step
			if err := s.publish(ctx); err != nil {
				s.logger.Warn("failed to publish count", zap.Int64("count", s.count), zap.Error(err))
			}
		case u, ok := <-updates:
			if !ok {
				return realtime.ErrClosed
			}
			if u.Err != nil {
				// the transport reconnects on its own; keep counting meanwhile
				s.logger.Warn("reset command watch interrupted", zap.Error(u.Err))
				continue
			}
			if !s.isNewReset(u.Value) {
				continue
			}
			s.logger.Info("reset command received", zap.ByteString("issued_at", u.Value), zap.Int64("count", s.count))
			s.count = 0
			if err := s.publish(ctx); err != nil {
				s.logger.Warn("failed to publish count", zap.Int64("count", s.count), zap.Error(err))
			}
		}
	}
}

func (s *Simulator) isNewReset(v json.RawMessage) bool {
	if realtime.IsNull(v) || bytes.Equal(v, s.lastReset) {
		return false
	}
	s.lastReset = append(s.lastReset[:0], v...)
	return true
}

func (s *Simulator) publish(ctx context.Context) error {
	if err := s.store.Set(ctx, counter.CountPath, s.count); err != nil {
		return fmt.Errorf("publish count: %w", err)
	}
	s.logger.Debug("published count", zap.Int64("count", s.count))
	return nil
}
