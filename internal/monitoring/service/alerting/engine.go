package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/rs/zerolog/log"
)

// Engine runs the per-endpoint alert state machines. Each endpoint has at
// most one outstanding probe (skip-don't-queue upstream), so state mutation
// per endpoint is serial; the mutex guards the state map and the counter
// fields, which are also read from the HTTP path via ConsecutiveFailures.
// Store and notifier calls happen outside the lock.
type Engine struct {
	store    Store
	notifier Notifier

	mu         sync.Mutex
	thresholds Thresholds
	states     map[int64]*endpointState
}

// counters is a point-in-time copy of an endpoint's streak state, taken
// under the lock and passed to the trigger/resolve paths.
type counters struct {
	failures int
	slow     int
}

func NewEngine(store Store, notifier Notifier, thresholds Thresholds) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		store:      store,
		notifier:   notifier,
		thresholds: thresholds,
		states:     map[int64]*endpointState{},
	}
}

// ReloadThresholds swaps in a fresh tunables snapshot.
func (e *Engine) ReloadThresholds(th Thresholds) {
	e.mu.Lock()
	e.thresholds = th
	e.mu.Unlock()
}

// ConsecutiveFailures reports the running failure counter for an endpoint.
// The counter starts at zero after process start and is seeded from stored
// history when the endpoint's first result of this process arrives.
func (e *Engine) ConsecutiveFailures(endpointID int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.states[endpointID]; ok {
		return st.consecutiveFailures
	}
	return 0
}

// Forget drops the in-memory state for an endpoint that left the active set.
func (e *Engine) Forget(endpointID int64) {
	e.mu.Lock()
	delete(e.states, endpointID)
	e.mu.Unlock()
}

// HandleResult feeds one persisted check result through the down/slow/error
// state machines for its endpoint.
func (e *Engine) HandleResult(ctx context.Context, ep model.Endpoint, hc *model.HealthCheck) {
	e.mu.Lock()
	th := e.thresholds
	st, ok := e.states[ep.ID]
	if !ok {
		st = &endpointState{}
		e.states[ep.ID] = st
	}
	seeded := st.seeded
	e.mu.Unlock()

	if !seeded {
		e.seed(ctx, ep.ID, hc.ID, st, th)
	}

	if hc.IsSuccessful {
		e.handleSuccess(ctx, ep, hc, st, th)
	} else {
		e.handleFailure(ctx, ep, hc, st, th)
	}
}

// seed re-derives the counters from stored history, walking newest-first
// until the streak breaks. The result being handled is already persisted
// (the scheduler saves before fanning out), so it appears at the head of
// the history and must be excluded here or it would be counted twice.
// Covers restart and write-failure recovery without any persisted counter
// column.
func (e *Engine) seed(ctx context.Context, endpointID int64, currentCheckID string, st *endpointState, th Thresholds) {
	recent, err := e.store.LoadRecentChecks(ctx, endpointID, th.HistoryWindow)
	if err != nil {
		log.Warn().Err(err).Int64("endpoint_id", endpointID).Msg("seeding alert state from history failed, starting fresh")
		recent = nil
	}
	if len(recent) > 0 && recent[0].ID == currentCheckID {
		recent = recent[1:]
	}

	var failures, slow int
	for _, hc := range recent {
		if hc.IsSuccessful {
			break
		}
		failures++
	}
	for _, hc := range recent {
		if !hc.IsSuccessful || hc.ResponseTimeMs == nil || *hc.ResponseTimeMs <= th.SlowThresholdMs {
			break
		}
		slow++
	}

	e.mu.Lock()
	st.consecutiveFailures = failures
	st.slowStreak = slow
	st.seeded = true
	e.mu.Unlock()
}

func (e *Engine) handleSuccess(ctx context.Context, ep model.Endpoint, hc *model.HealthCheck, st *endpointState, th Thresholds) {
	slow := hc.ResponseTimeMs != nil && *hc.ResponseTimeMs > th.SlowThresholdMs

	e.mu.Lock()
	st.consecutiveFailures = 0
	if slow {
		st.slowStreak++
	} else {
		st.slowStreak = 0
	}
	snap := counters{failures: st.consecutiveFailures, slow: st.slowStreak}
	e.mu.Unlock()

	e.resolve(ctx, ep, model.AlertDown, st)
	e.resolve(ctx, ep, model.AlertError, st)

	if slow {
		if snap.slow >= th.SlowAfter {
			e.trigger(ctx, ep, model.AlertSlow, hc, st, snap, th)
		}
	} else {
		e.resolve(ctx, ep, model.AlertSlow, st)
	}
}

func (e *Engine) handleFailure(ctx context.Context, ep model.Endpoint, hc *model.HealthCheck, st *endpointState, th Thresholds) {
	e.mu.Lock()
	st.consecutiveFailures++
	st.slowStreak = 0
	snap := counters{failures: st.consecutiveFailures}
	e.mu.Unlock()

	if th.CriticalErrorTypes[hc.ErrorType] {
		e.trigger(ctx, ep, model.AlertError, hc, st, snap, th)
	}
	if snap.failures >= th.DownAfter {
		e.trigger(ctx, ep, model.AlertDown, hc, st, snap, th)
	}
}

// markUnseeded forces the next result for this endpoint to re-derive the
// counters from stored history.
func (e *Engine) markUnseeded(st *endpointState) {
	e.mu.Lock()
	st.seeded = false
	e.mu.Unlock()
}

// trigger opens a new alert, or refreshes trigger data (and severity, which
// may escalate with magnitude) on one already active.
func (e *Engine) trigger(ctx context.Context, ep model.Endpoint, alertType model.AlertType, hc *model.HealthCheck, st *endpointState, snap counters, th Thresholds) {
	active, err := e.store.GetActiveAlert(ctx, ep.ID, alertType)
	if err != nil {
		log.Error().Err(err).Int64("endpoint_id", ep.ID).Str("alert_type", string(alertType)).Msg("active alert lookup failed")
		e.markUnseeded(st)
		return
	}

	severity := severityFor(alertType, snap.failures, hc.ErrorType, th)
	data := triggerData(alertType, hc, snap, th)

	if active != nil {
		active.TriggerData = data
		active.Severity = severity
		if err := e.store.UpsertAlert(ctx, active); err != nil {
			log.Error().Err(err).Str("alert_id", active.ID).Msg("alert update failed")
			e.markUnseeded(st)
		}
		return
	}

	now := time.Now().UTC()
	a := &model.Alert{
		ID:          uuid.NewString(),
		EndpointID:  ep.ID,
		AlertType:   alertType,
		Severity:    severity,
		Title:       alertTitle(ep, alertType),
		Message:     alertMessage(ep, alertType, hc, snap, th),
		IsActive:    true,
		TriggeredAt: now,
		TriggerData: data,
		CreatedAt:   now,
	}
	if err := e.store.UpsertAlert(ctx, a); err != nil {
		log.Error().Err(err).Int64("endpoint_id", ep.ID).Str("alert_type", string(alertType)).Msg("alert insert failed")
		e.markUnseeded(st)
		return
	}
	log.Info().Str("alert_id", a.ID).Int64("endpoint_id", ep.ID).Str("alert_type", string(alertType)).Str("severity", string(severity)).Msg("alert triggered")
	e.notifier.NotifyAlertTriggered(ctx, a)
}

func (e *Engine) resolve(ctx context.Context, ep model.Endpoint, alertType model.AlertType, st *endpointState) {
	active, err := e.store.GetActiveAlert(ctx, ep.ID, alertType)
	if err != nil {
		log.Error().Err(err).Int64("endpoint_id", ep.ID).Str("alert_type", string(alertType)).Msg("active alert lookup failed")
		e.markUnseeded(st)
		return
	}
	if active == nil {
		return
	}
	now := time.Now().UTC()
	active.IsActive = false
	active.ResolvedAt = &now
	if err := e.store.UpsertAlert(ctx, active); err != nil {
		log.Error().Err(err).Str("alert_id", active.ID).Msg("alert resolve failed")
		e.markUnseeded(st)
		return
	}
	log.Info().Str("alert_id", active.ID).Int64("endpoint_id", ep.ID).Str("alert_type", string(alertType)).Msg("alert resolved")
	e.notifier.NotifyAlertResolved(ctx, active)
}

// severityFor maps alert type and magnitude to a severity level.
func severityFor(alertType model.AlertType, consecutiveFailures int, errType model.ErrorType, th Thresholds) model.Severity {
	switch alertType {
	case model.AlertDown:
		if consecutiveFailures >= th.DownCriticalAfter {
			return model.SeverityCritical
		}
		return model.SeverityHigh
	case model.AlertSlow:
		return model.SeverityMedium
	case model.AlertError:
		if errType == model.ErrorTLS {
			return model.SeverityCritical
		}
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

func alertTitle(ep model.Endpoint, alertType model.AlertType) string {
	switch alertType {
	case model.AlertDown:
		return fmt.Sprintf("%s is down", ep.Name)
	case model.AlertSlow:
		return fmt.Sprintf("%s is responding slowly", ep.Name)
	default:
		return fmt.Sprintf("%s check error", ep.Name)
	}
}

func alertMessage(ep model.Endpoint, alertType model.AlertType, hc *model.HealthCheck, snap counters, th Thresholds) string {
	switch alertType {
	case model.AlertDown:
		return fmt.Sprintf("%d consecutive failed checks for %s (last error: %s)", snap.failures, ep.URL, hc.ErrorType)
	case model.AlertSlow:
		return fmt.Sprintf("response time above %.0fms for %d consecutive checks on %s", th.SlowThresholdMs, snap.slow, ep.URL)
	default:
		return fmt.Sprintf("%s error probing %s: %s", hc.ErrorType, ep.URL, hc.ErrorMessage)
	}
}

func triggerData(alertType model.AlertType, hc *model.HealthCheck, snap counters, th Thresholds) map[string]any {
	data := map[string]any{
		"check_id":   hc.ID,
		"checked_at": hc.CheckedAt,
		"error_type": string(hc.ErrorType),
	}
	switch alertType {
	case model.AlertDown:
		data["consecutive_failures"] = snap.failures
		data["threshold"] = th.DownAfter
	case model.AlertSlow:
		data["slow_streak"] = snap.slow
		data["threshold_ms"] = th.SlowThresholdMs
		if hc.ResponseTimeMs != nil {
			data["response_time_ms"] = *hc.ResponseTimeMs
		}
	case model.AlertError:
		data["error_message"] = hc.ErrorMessage
	}
	return data
}
