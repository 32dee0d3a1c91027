package ephemeral

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/mongofixtures/errors"
	"github.com/kbukum/mongofixtures/logger"
)

// Instance is a running server.
type Instance interface {
	// ConnectionString returns the mongodb:// URI of the server.
	ConnectionString() string
	// Stop shuts the server down and releases its resources.
	Stop(ctx context.Context) error
}

// Checker is implemented by instances that can tell when their server died.
// Check returns nil while the server is alive.
type Checker interface {
	Check() error
}

// Provider starts server instances.
type Provider interface {
	Name() string
	Start(ctx context.Context) (Instance, error)
}

// Factory creates a Provider from configuration.
type Factory func(cfg Config, log *logger.Logger) (Provider, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{
		ProviderExternal: func(cfg Config, _ *logger.Logger) (Provider, error) {
			return NewExternal(cfg.URI)
		},
	}
)

// Register registers a provider factory under name, replacing any previous one.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Registered returns the sorted names of registered providers.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the configured provider.
func New(cfg Config, log *logger.Logger) (Provider, error) {
	cfg.ApplyDefaults()

	mu.RLock()
	f, ok := factories[cfg.Provider]
	mu.RUnlock()
	if !ok {
		return nil, errors.InvalidConfig(fmt.Sprintf("unsupported server provider %q (not registered)", cfg.Provider)).
			WithDetail("registered", Registered())
	}

	l := log.WithComponent("ephemeral")
	l.Debug("creating server provider", logger.Fields(logger.FieldProvider, cfg.Provider))
	return f(cfg, l)
}

// Alive reports the error of a dead instance, or nil when it is alive or
// cannot tell.
func Alive(inst Instance) error {
	if c, ok := inst.(Checker); ok {
		return c.Check()
	}
	return nil
}
