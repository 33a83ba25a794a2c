package status

import (
	"context"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/rs/zerolog/log"
)

// EndpointSource reads endpoint rows.
type EndpointSource interface {
	GetEndpoint(ctx context.Context, id int64) (*model.Endpoint, error)
	ListActiveEndpoints(ctx context.Context) ([]model.Endpoint, error)
}

// CheckSource reads check history. LatestCheck returns nil when an endpoint
// has never been probed.
type CheckSource interface {
	LatestCheck(ctx context.Context, endpointID int64) (*model.HealthCheck, error)
}

// StatsSource computes rolling-window uptime stats.
type StatsSource interface {
	RollingStats(ctx context.Context, endpointID int64, period string) (*model.UptimeStats, error)
}

// AlertSource reads active alerts; nil result means none.
type AlertSource interface {
	GetActiveAlert(ctx context.Context, endpointID int64, alertType model.AlertType) (*model.Alert, error)
}

// FailureCounter exposes the live consecutive-failure counter.
type FailureCounter interface {
	ConsecutiveFailures(endpointID int64) int
}

// Service assembles the live status view of an endpoint from the cache, the
// repositories and the running alert engine.
type Service struct {
	endpoints EndpointSource
	checks    CheckSource
	stats     StatsSource
	alerts    AlertSource
	failures  FailureCounter
	cache     *Cache
}

func NewService(endpoints EndpointSource, checks CheckSource, stats StatsSource, alerts AlertSource, failures FailureCounter, cache *Cache) *Service {
	return &Service{
		endpoints: endpoints,
		checks:    checks,
		stats:     stats,
		alerts:    alerts,
		failures:  failures,
		cache:     cache,
	}
}

// EndpointStatus builds the status snapshot for one endpoint. Window stats
// that fail to compute are reported absent rather than failing the whole
// snapshot.
func (s *Service) EndpointStatus(ctx context.Context, id int64) (*model.EndpointStatus, error) {
	ep, err := s.endpoints.GetEndpoint(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &model.EndpointStatus{Endpoint: *ep}

	latest, ok := s.cache.LatestCheck(ctx, id)
	if !ok {
		latest, err = s.checks.LatestCheck(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	st.LatestCheck = latest

	if stats := s.rolling(ctx, id, "24h"); stats != nil {
		st.Uptime24h = stats.UptimePercentage
		st.AvgResponseTime24h = stats.AvgResponseTimeMs
	}
	if stats := s.rolling(ctx, id, "7d"); stats != nil {
		st.Uptime7d = stats.UptimePercentage
	}
	if stats := s.rolling(ctx, id, "30d"); stats != nil {
		st.Uptime30d = stats.UptimePercentage
	}

	down, err := s.alerts.GetActiveAlert(ctx, id, model.AlertDown)
	if err != nil {
		return nil, err
	}
	st.IsDown = down != nil
	// live engine counter; after a process restart it reads zero until the
	// endpoint's first result re-seeds it from history, while is_down keeps
	// reflecting the persisted alert state throughout
	st.ConsecutiveFailures = s.failures.ConsecutiveFailures(id)
	return st, nil
}

// Overview returns status snapshots for every active endpoint. Endpoints whose
// snapshot fails are skipped with a log line so one bad row cannot blank the
// dashboard.
func (s *Service) Overview(ctx context.Context) ([]model.EndpointStatus, error) {
	eps, err := s.endpoints.ListActiveEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.EndpointStatus, 0, len(eps))
	for _, ep := range eps {
		st, err := s.EndpointStatus(ctx, ep.ID)
		if err != nil {
			log.Warn().Err(err).Int64("endpoint_id", ep.ID).Msg("endpoint status assembly failed")
			continue
		}
		out = append(out, *st)
	}
	return out, nil
}

func (s *Service) rolling(ctx context.Context, id int64, period string) *model.UptimeStats {
	stats, err := s.stats.RollingStats(ctx, id, period)
	if err != nil {
		log.Warn().Err(err).Int64("endpoint_id", id).Str("period", period).Msg("rolling stats failed")
		return nil
	}
	return stats
}
