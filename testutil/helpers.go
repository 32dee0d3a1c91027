package testutil

import (
	"context"
	"testing"
)

// CleanupFunc is a function that performs cleanup, typically stopping a component.
type CleanupFunc func() error

// Setup starts a test component and returns a cleanup function that stops it.
func Setup(ctx context.Context, c TestComponent) (CleanupFunc, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return func() error { return c.Stop(ctx) }, nil
}

// THelper provides testing.TB integration for easier test setup.
type THelper struct {
	tb  testing.TB
	ctx context.Context
}

// T wraps a testing.TB to provide helper methods that fail the test on error.
func T(tb testing.TB) *THelper {
	return &THelper{tb: tb, ctx: context.Background()}
}

// WithContext sets a custom context for the helper.
func (h *THelper) WithContext(ctx context.Context) *THelper {
	h.ctx = ctx
	return h
}

// Setup starts a component and stops it when the test ends.
func (h *THelper) Setup(c TestComponent) {
	h.tb.Helper()
	if err := c.Start(h.ctx); err != nil {
		h.tb.Fatalf("failed to start component %s: %v", c.Name(), err)
	}
	h.tb.Cleanup(func() {
		if err := c.Stop(context.Background()); err != nil {
			h.tb.Errorf("failed to stop component %s: %v", c.Name(), err)
		}
	})
}

// Reset wipes a component's state.
func (h *THelper) Reset(c TestComponent) {
	h.tb.Helper()
	if err := c.Reset(h.ctx); err != nil {
		h.tb.Fatalf("failed to reset component %s: %v", c.Name(), err)
	}
}

// ResetOnCleanup wipes a component's state when the test ends.
func (h *THelper) ResetOnCleanup(c TestComponent) {
	h.tb.Cleanup(func() {
		if err := c.Reset(context.Background()); err != nil {
			h.tb.Errorf("failed to reset component %s: %v", c.Name(), err)
		}
	})
}

// Snapshot captures the current state of a component.
func (h *THelper) Snapshot(c TestComponent) interface{} {
	h.tb.Helper()
	snapshot, err := c.Snapshot(h.ctx)
	if err != nil {
		h.tb.Fatalf("failed to snapshot component %s: %v", c.Name(), err)
	}
	return snapshot
}

// Restore replaces a component's state with snapshot.
func (h *THelper) Restore(c TestComponent, snapshot interface{}) {
	h.tb.Helper()
	if err := c.Restore(h.ctx, snapshot); err != nil {
		h.tb.Fatalf("failed to restore component %s: %v", c.Name(), err)
	}
}

// Preserve snapshots a component now and restores it when the test ends,
// so a test may mutate shared state freely.
func (h *THelper) Preserve(c TestComponent) {
	h.tb.Helper()
	snapshot := h.Snapshot(c)
	h.tb.Cleanup(func() {
		if err := c.Restore(context.Background(), snapshot); err != nil {
			h.tb.Errorf("failed to restore component %s: %v", c.Name(), err)
		}
	})
}
