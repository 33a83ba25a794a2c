package alerting

import (
	"context"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

// Store is the persistence surface the alert engine consumes. GetActiveAlert
// returns nil when no active alert exists for the pair.
type Store interface {
	GetActiveAlert(ctx context.Context, endpointID int64, alertType model.AlertType) (*model.Alert, error)
	UpsertAlert(ctx context.Context, a *model.Alert) error
	LoadRecentChecks(ctx context.Context, endpointID int64, n int) ([]model.HealthCheck, error)
}

// Notifier is the external sink alerts are published to. Delivery is
// fire-and-forget; implementations must not block the caller on failure.
type Notifier interface {
	NotifyAlertTriggered(ctx context.Context, a *model.Alert)
	NotifyAlertResolved(ctx context.Context, a *model.Alert)
}

// ConfigSource reads raw tunable values; found is false for absent keys.
type ConfigSource interface {
	GetConfig(ctx context.Context, key string) (value string, found bool, err error)
}

// endpointState is the running per-endpoint counter state; all fields are
// guarded by Engine.mu. It is re-derived
// from stored history whenever seeded is false, so a crash between a check
// write and its alert evaluation cannot leave the counters diverged.
type endpointState struct {
	consecutiveFailures int
	slowStreak          int
	seeded              bool
}
