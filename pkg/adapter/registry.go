package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Factory builds an unconnected adapter.
type Factory func(*slog.Logger) Adapter

var (
	engineMu sync.RWMutex
	engines  = make(map[string]Factory)
)

// Register makes an engine available under name. Engines call it from
// init. Names are case-insensitive. Registering a name twice or a nil
// factory panics.
func Register(name string, factory Factory) {
	engineMu.Lock()
	defer engineMu.Unlock()

	key := strings.ToLower(name)
	if factory == nil {
		panic("adapter: Register factory is nil for " + key)
	}
	if _, dup := engines[key]; dup {
		panic("adapter: Register called twice for " + key)
	}
	engines[key] = factory
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	engineMu.RLock()
	defer engineMu.RUnlock()
	f, ok := engines[strings.ToLower(name)]
	return f, ok
}

// NewAdapter creates an unconnected adapter for cfg.Type.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return factory(logger), nil
}

// Open creates the adapter for cfg.Type and connects it. The adapter is
// closed again when the connection fails.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Adapter, error) {
	a, err := NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Type, err)
	}
	return a, nil
}

// ListAdapters returns the registered engine names, sorted.
func ListAdapters() []string {
	engineMu.RLock()
	defer engineMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether an engine is registered under name.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownAdapterError is returned for an engine name nobody registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown engine %q\nAvailable engines: memory, %s\nHint: Check --engine or target.type in leapdc.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
