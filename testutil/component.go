package testutil

import (
	"context"

	"github.com/kbukum/mongofixtures/component"
)

// TestComponent extends component.Component with test state management.
type TestComponent interface {
	component.Component

	// Reset wipes all state the component holds.
	Reset(ctx context.Context) error

	// Snapshot captures the current state. The value can be passed to Restore.
	Snapshot(ctx context.Context) (interface{}, error)

	// Restore replaces the current state with a value returned by Snapshot.
	Restore(ctx context.Context, snapshot interface{}) error
}
