package scheduler

import (
	"context"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

// Repository is the persistence surface the scheduler needs.
type Repository interface {
	ListActiveEndpoints(ctx context.Context) ([]model.Endpoint, error)
	SaveCheckResult(ctx context.Context, hc *model.HealthCheck) error
}

// Prober executes one probe. Probe failures are data on the returned check,
// never an error.
type Prober interface {
	Check(ctx context.Context, ep model.Endpoint) model.HealthCheck
}

// ResultSink consumes persisted check results. Sinks run inline on the worker
// goroutine after the result is durably saved.
type ResultSink interface {
	HandleResult(ctx context.Context, ep model.Endpoint, hc *model.HealthCheck)
}

// EndpointForgetter is implemented by sinks that hold per-endpoint state and
// want to drop it when an endpoint leaves the active set.
type EndpointForgetter interface {
	Forget(endpointID int64)
}

// Metrics receives scheduler instrumentation events.
type Metrics interface {
	ProbeCompleted(ep model.Endpoint, hc *model.HealthCheck)
	ProbeSkipped(endpointID int64)
}

type nopMetrics struct{}

func (nopMetrics) ProbeCompleted(model.Endpoint, *model.HealthCheck) {}
func (nopMetrics) ProbeSkipped(int64)                                {}

// Config are the scheduler loop tunables.
type Config struct {
	TickInterval    time.Duration
	RefreshInterval time.Duration
	Workers         int
	ShutdownGrace   time.Duration
}

// Deps wires the scheduler's collaborators.
type Deps struct {
	Repo    Repository
	Prober  Prober
	Sinks   []ResultSink
	Metrics Metrics
	Config  Config
}
