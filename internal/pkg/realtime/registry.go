package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/config"
)

var errAlreadyRegistered = errors.New("backend already registered")

// Opener builds a store from configuration. It must fail when a value the
// backend needs is missing.
type Opener func(ctx context.Context, cfg *config.BackendConfig) (Store, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

func RegisterBackend(name string, open Opener) error {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, ok := backends[name]; ok {
		return fmt.Errorf("%w: %s", errAlreadyRegistered, name)
	}
	backends[name] = open
	return nil
}

// Open initialises the store selected by cfg.Kind.
func Open(ctx context.Context, cfg *config.BackendConfig) (Store, error) {
	if err := config.Require("PROJECT_ID", cfg.ProjectID); err != nil {
		return nil, err
	}
	backendsMu.RLock()
	open, ok := backends[cfg.Kind]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Kind)
	}
	store, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Kind, err)
	}
	zap.L().Info("realtime store ready", zap.String("backend", cfg.Kind), zap.String("project", cfg.ProjectID))
	return store, nil
}
