// Package testutil wires lifecycle-managed test components into Go tests.
//
// A TestComponent is a component.Component that can also be wiped between
// tests (Reset) and captured and replayed (Snapshot and Restore). The fixture
// facade is one; an application can add its own fakes next to it.
//
// Basic usage with automatic cleanup:
//
//	func TestUsers(t *testing.T) {
//	    fx := fixtures.New(cfg)
//	    testutil.T(t).Setup(fx)
//	    testutil.T(t).Restore(fx, seed)
//	}
//
// Managing several components together:
//
//	m := testutil.NewManager(ctx)
//	m.Add(fx)
//	m.Add(cache)
//	if err := m.StartAll(); err != nil { ... }
//	defer m.StopAll()
package testutil
