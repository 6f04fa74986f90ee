package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

var (
	ErrClosed         = errors.New("realtime store closed")
	ErrSubscription   = errors.New("subscription failed")
	ErrUnknownBackend = errors.New("unknown realtime backend")
)

// Update is one push for a path. Value is nil when the path holds no value.
type Update struct {
	Path  string
	Value json.RawMessage
	Err   error
}

// Subscription is an ordered sequence of updates for one path. Updates is
// closed once Close has been called.
type Subscription interface {
	Updates() <-chan Update
	io.Closer
}

type Store interface {
	Subscribe(ctx context.Context, path string) (Subscription, error)
	// Set writes value at path. Passing ServerTimestamp stores the backend's
	// clock in milliseconds since the epoch.
	Set(ctx context.Context, path string, value any) error
	io.Closer
}

type serverTimestamp struct{}

// ServerTimestamp is a placeholder value resolved by the backend on write.
var ServerTimestamp = serverTimestamp{}

func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// IsNull reports whether a raw value is absent or JSON null.
func IsNull(v json.RawMessage) bool {
	return len(v) == 0 || string(v) == "null"
}
