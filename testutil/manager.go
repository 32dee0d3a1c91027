package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Manager drives the lifecycle of several test components together.
type Manager struct {
	ctx        context.Context
	components []TestComponent
	started    int
	mu         sync.Mutex
}

// NewManager creates a new test component manager.
func NewManager(ctx context.Context) *Manager {
	return &Manager{ctx: ctx}
}

// Add registers a test component with the manager.
func (m *Manager) Add(c TestComponent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, c)
}

// Get retrieves a component by name, or nil.
func (m *Manager) Get(name string) TestComponent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// StartAll starts all registered components in order. When one fails, the
// components already started are stopped again before the error is returned.
func (m *Manager) StartAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := m.started; i < len(m.components); i++ {
		c := m.components[i]
		if err := c.Start(m.ctx); err != nil {
			startErr := fmt.Errorf("failed to start component %s: %w", c.Name(), err)
			return errors.Join(startErr, m.stopLocked())
		}
		m.started = i + 1
	}
	return nil
}

// StopAll stops started components in reverse order and joins every failure.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *Manager) stopLocked() error {
	var errs []error
	for i := m.started - 1; i >= 0; i-- {
		c := m.components[i]
		if err := c.Stop(m.ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop component %s: %w", c.Name(), err))
		}
	}
	m.started = 0
	return errors.Join(errs...)
}

// ResetAll resets every component, continuing past failures.
func (m *Manager) ResetAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, c := range m.components {
		if err := c.Reset(m.ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to reset component %s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
