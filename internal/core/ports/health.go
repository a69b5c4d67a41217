package ports

import "context"

// HealthChecker checks an external dependency.
type HealthChecker interface {
	// Ping returns nil if the dependency is reachable.
	Ping(ctx context.Context) error
	// Name returns the dependency name (e.g., "postgresql", "redis", "nats").
	Name() string
}
