package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

const (
	notifyChannel  = "realtime_value"
	reconnectDelay = 5 * time.Second
)

func (db *Database) Subscribe(_ context.Context, path string) (realtime.Subscription, error) {
	return db.hub.Subscribe(path)
}

// onFirstSubscriber makes sure the listener is running before the current
// value is read, so no write between the read and LISTEN is lost.
func (db *Database) onFirstSubscriber(path string) error {
	if err := db.ensureListening(); err != nil {
		return fmt.Errorf("%w: %w", realtime.ErrSubscription, err)
	}
	if err := db.refresh(context.Background(), path); err != nil {
		return fmt.Errorf("%w: %w", realtime.ErrSubscription, err)
	}
	return nil
}

func (db *Database) ensureListening() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.listening {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		db.listen(ctx, ready)
	}()
	if err := <-ready; err != nil {
		cancel()
		<-done
		return err
	}
	db.listening = true
	db.cancel = cancel
	db.done = done
	return nil
}

// listen holds one connection in LISTEN. After the first connection the
// loop re-establishes it and resynchronises every subscribed path.
func (db *Database) listen(ctx context.Context, ready chan<- error) {
	first := true
	for {
		err := db.listenConn(ctx, func() {
			if first {
				ready <- nil
				return
			}
			for _, path := range db.hub.Paths() {
				if err := db.refresh(ctx, path); err != nil {
					db.logger.Error("failed to resync path", zap.String("path", path), zap.Error(err))
				}
			}
		})
		if first && err != nil {
			ready <- err
			return
		}
		first = false
		if ctx.Err() != nil {
			return
		}
		db.logger.Error("listener connection lost", zap.Error(err))
		db.hub.Broadcast(fmt.Errorf("%w: %w", realtime.ErrSubscription, err))

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (db *Database) listenConn(ctx context.Context, onListening func()) error {
	pooled, err := db.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	onListening()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if err := db.refresh(ctx, n.Payload); err != nil {
			db.logger.Error("failed to read notified path", zap.String("path", n.Payload), zap.Error(err))
			db.hub.Publish(realtime.Update{Path: n.Payload, Err: fmt.Errorf("%w: %w", realtime.ErrSubscription, err)})
		}
	}
}
