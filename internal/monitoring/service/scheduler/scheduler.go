package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/rs/zerolog/log"
)

const (
	defaultTickInterval    = time.Second
	defaultRefreshInterval = 30 * time.Second
	defaultWorkers         = 16
	defaultShutdownGrace   = 10 * time.Second
)

// Scheduler drives the probe loop: a coarse tick scans for due endpoints,
// dispatches probes onto a bounded worker pool, and fans persisted results out
// to the sinks. Each endpoint has at most one probe in flight; a probe still
// running at its next due time skips that cycle instead of queueing, and the
// endpoint is retried on the following tick.
type Scheduler struct {
	repo    Repository
	prober  Prober
	sinks   []ResultSink
	metrics Metrics

	tick    time.Duration
	refresh time.Duration
	grace   time.Duration
	sem     chan struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	endpoints map[int64]model.Endpoint
	nextDueAt map[int64]time.Time
	inFlight  map[int64]bool
}

func New(deps Deps) *Scheduler {
	cfg := deps.Config
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = defaultShutdownGrace
	}
	m := deps.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &Scheduler{
		repo:      deps.Repo,
		prober:    deps.Prober,
		sinks:     deps.Sinks,
		metrics:   m,
		tick:      cfg.TickInterval,
		refresh:   cfg.RefreshInterval,
		grace:     cfg.ShutdownGrace,
		sem:       make(chan struct{}, cfg.Workers),
		endpoints: map[int64]model.Endpoint{},
		nextDueAt: map[int64]time.Time{},
		inFlight:  map[int64]bool{},
	}
}

// Run blocks until ctx is cancelled, then waits up to the shutdown grace for
// in-flight probes to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.refreshEndpoints(ctx)
	log.Info().Dur("tick", s.tick).Dur("refresh", s.refresh).Int("workers", cap(s.sem)).Msg("scheduler started")

	tick := time.NewTicker(s.tick)
	refresh := time.NewTicker(s.refresh)
	defer tick.Stop()
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			log.Info().Msg("scheduler stopped")
			return
		case <-refresh.C:
			s.refreshEndpoints(ctx)
		case now := <-tick.C:
			s.dispatchDue(ctx, now.UTC())
		}
	}
}

// dispatchDue scans the active set and launches probes for due endpoints.
// The next slot is claimed before the probe runs, so a slow probe can never
// compress the schedule.
func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []model.Endpoint
	for id, ep := range s.endpoints {
		next, known := s.nextDueAt[id]
		if known && now.Before(next) {
			continue
		}
		if s.inFlight[id] {
			// skip, don't queue: the due time stays put, so the endpoint is
			// retried on the next tick once the running probe returns
			s.metrics.ProbeSkipped(id)
			log.Debug().Int64("endpoint_id", id).Msg("probe still in flight, skipping cycle")
			continue
		}
		s.nextDueAt[id] = now.Add(time.Duration(ep.CheckInterval) * time.Second)
		s.inFlight[id] = true
		due = append(due, ep)
	}
	s.mu.Unlock()

	for _, ep := range due {
		s.wg.Add(1)
		go s.probe(ctx, ep)
	}
}

func (s *Scheduler) probe(ctx context.Context, ep model.Endpoint) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, ep.ID)
		s.mu.Unlock()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.sem }()

	hc := s.prober.Check(ctx, ep)
	if ctx.Err() != nil {
		// shutdown mid-probe; a cancellation artifact is not a real result
		return
	}

	s.mu.Lock()
	_, active := s.endpoints[ep.ID]
	s.mu.Unlock()
	if !active {
		log.Debug().Int64("endpoint_id", ep.ID).Msg("endpoint deactivated mid-probe, discarding result")
		return
	}

	if err := s.repo.SaveCheckResult(ctx, &hc); err != nil {
		// sinks only see durable results; counters recover from history
		log.Error().Err(err).Int64("endpoint_id", ep.ID).Msg("save check result failed")
		return
	}
	s.metrics.ProbeCompleted(ep, &hc)
	for _, sink := range s.sinks {
		sink.HandleResult(ctx, ep, &hc)
	}
}

// refreshEndpoints reloads the active set. On repository error the previous
// snapshot stays in effect.
func (s *Scheduler) refreshEndpoints(ctx context.Context) {
	eps, err := s.repo.ListActiveEndpoints(ctx)
	if err != nil {
		log.Error().Err(err).Msg("refresh active endpoints failed")
		return
	}

	fresh := make(map[int64]model.Endpoint, len(eps))
	for _, ep := range eps {
		fresh[ep.ID] = ep
	}

	s.mu.Lock()
	var removed []int64
	for id := range s.endpoints {
		if _, ok := fresh[id]; !ok {
			removed = append(removed, id)
			delete(s.nextDueAt, id)
		}
	}
	s.endpoints = fresh
	s.mu.Unlock()

	for _, id := range removed {
		log.Info().Int64("endpoint_id", id).Msg("endpoint left active set")
		for _, sink := range s.sinks {
			if f, ok := sink.(EndpointForgetter); ok {
				f.Forget(id)
			}
		}
	}
}

func (s *Scheduler) drain() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.grace):
		log.Warn().Msg("shutdown grace elapsed with probes still in flight")
	}
}
