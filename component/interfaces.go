package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component represents a lifecycle-managed piece of test infrastructure.
type Component interface {
	// Name returns the unique name of the component.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description is a one-line self-report of what a component is and where it points.
type Description struct {
	// Name is the display name. If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "database", "server".
	Type string
	// Details is a human-readable one-liner, e.g. "localhost:27017/fixtures bucket=fs".
	Details string
}

// Describable is optionally implemented by Components to describe themselves in logs.
type Describable interface {
	Describe() Description
}

// Describe returns c's Description, falling back to its Name.
func Describe(c Component) Description {
	if d, ok := c.(Describable); ok {
		desc := d.Describe()
		if desc.Name == "" {
			desc.Name = c.Name()
		}
		return desc
	}
	return Description{Name: c.Name()}
}
