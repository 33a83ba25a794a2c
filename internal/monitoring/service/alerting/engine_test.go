package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	alerts []model.Alert
	// recent is returned newest-first, matching the repository contract.
	recent map[int64][]model.HealthCheck
}

func newMemStore() *memStore {
	return &memStore{recent: map[int64][]model.HealthCheck{}}
}

func (m *memStore) GetActiveAlert(ctx context.Context, endpointID int64, alertType model.AlertType) (*model.Alert, error) {
	for i := range m.alerts {
		a := &m.alerts[i]
		if a.EndpointID == endpointID && a.AlertType == alertType && a.IsActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpsertAlert(ctx context.Context, a *model.Alert) error {
	for i := range m.alerts {
		if m.alerts[i].ID == a.ID {
			m.alerts[i] = *a
			return nil
		}
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *memStore) LoadRecentChecks(ctx context.Context, endpointID int64, n int) ([]model.HealthCheck, error) {
	recent := m.recent[endpointID]
	if len(recent) > n {
		recent = recent[:n]
	}
	return recent, nil
}

func (m *memStore) active(endpointID int64, alertType model.AlertType) *model.Alert {
	a, _ := m.GetActiveAlert(context.Background(), endpointID, alertType)
	return a
}

type captureNotifier struct {
	triggered []model.Alert
	resolved  []model.Alert
}

func (c *captureNotifier) NotifyAlertTriggered(ctx context.Context, a *model.Alert) {
	c.triggered = append(c.triggered, *a)
}

func (c *captureNotifier) NotifyAlertResolved(ctx context.Context, a *model.Alert) {
	c.resolved = append(c.resolved, *a)
}

func fptr(v float64) *float64 { return &v }

func checkOK(responseMs float64) *model.HealthCheck {
	return &model.HealthCheck{
		ID:             uuid.NewString(),
		EndpointID:     1,
		CheckedAt:      time.Now().UTC(),
		IsSuccessful:   true,
		ResponseTimeMs: fptr(responseMs),
	}
}

func checkFail(errType model.ErrorType) *model.HealthCheck {
	return &model.HealthCheck{
		ID:           uuid.NewString(),
		EndpointID:   1,
		CheckedAt:    time.Now().UTC(),
		IsSuccessful: false,
		ErrorType:    errType,
		ErrorMessage: string(errType) + " probing endpoint",
	}
}

var testEndpoint = model.Endpoint{ID: 1, Name: "api", URL: "https://api.example.com/health"}

func TestDownTriggersAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	notif := &captureNotifier{}
	eng := NewEngine(store, notif, DefaultThresholds())

	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorTimeout))
	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorTimeout))
	assert.Nil(t, store.active(1, model.AlertDown), "two failures must not trigger")

	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorTimeout))
	a := store.active(1, model.AlertDown)
	require.NotNil(t, a)
	assert.Equal(t, model.SeverityHigh, a.Severity)
	assert.Equal(t, 3, a.TriggerData["consecutive_failures"])
	require.Len(t, notif.triggered, 1)

	eng.HandleResult(ctx, testEndpoint, checkOK(50))
	assert.Nil(t, store.active(1, model.AlertDown))
	assert.Equal(t, 0, eng.ConsecutiveFailures(1))
	require.Len(t, notif.resolved, 1)
	assert.NotNil(t, notif.resolved[0].ResolvedAt)
}

func TestDownRetriggerUpdatesWithoutDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	notif := &captureNotifier{}
	eng := NewEngine(store, notif, DefaultThresholds())

	for i := 0; i < 5; i++ {
		eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorConnection))
	}
	assert.Len(t, notif.triggered, 1, "continued failures must not re-notify")

	var downAlerts int
	for _, a := range store.alerts {
		if a.AlertType == model.AlertDown {
			downAlerts++
		}
	}
	assert.Equal(t, 1, downAlerts)
	assert.Equal(t, 5, store.active(1, model.AlertDown).TriggerData["consecutive_failures"])
}

func TestDownEscalatesToCritical(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	eng := NewEngine(store, nil, DefaultThresholds())

	for i := 0; i < 10; i++ {
		eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorTimeout))
	}
	a := store.active(1, model.AlertDown)
	require.NotNil(t, a)
	assert.Equal(t, model.SeverityCritical, a.Severity)
}

func TestUnexpectedStatusCountsTowardDownOnly(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	eng := NewEngine(store, nil, DefaultThresholds())

	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorUnexpectedStatus))
	assert.Nil(t, store.active(1, model.AlertError), "unexpected_status is not in the critical set")
	assert.Nil(t, store.active(1, model.AlertDown))

	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorUnexpectedStatus))
	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorUnexpectedStatus))
	require.NotNil(t, store.active(1, model.AlertDown))
}

func TestCriticalErrorTriggersImmediately(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	notif := &captureNotifier{}
	eng := NewEngine(store, notif, DefaultThresholds())

	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorTLS))
	a := store.active(1, model.AlertError)
	require.NotNil(t, a)
	assert.Equal(t, model.SeverityCritical, a.Severity)
	assert.Nil(t, store.active(1, model.AlertDown), "one failure is below the down threshold")

	eng.HandleResult(ctx, testEndpoint, checkOK(80))
	assert.Nil(t, store.active(1, model.AlertError))
}

func TestDNSErrorIsHighSeverity(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	eng := NewEngine(store, nil, DefaultThresholds())

	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorDNS))
	a := store.active(1, model.AlertError)
	require.NotNil(t, a)
	assert.Equal(t, model.SeverityHigh, a.Severity)
}

func TestSlowStreakTriggersAndResolves(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	notif := &captureNotifier{}
	eng := NewEngine(store, notif, DefaultThresholds())

	eng.HandleResult(ctx, testEndpoint, checkOK(2500))
	eng.HandleResult(ctx, testEndpoint, checkOK(3100))
	assert.Nil(t, store.active(1, model.AlertSlow))

	eng.HandleResult(ctx, testEndpoint, checkOK(2800))
	a := store.active(1, model.AlertSlow)
	require.NotNil(t, a)
	assert.Equal(t, model.SeverityMedium, a.Severity)
	assert.Equal(t, 3, a.TriggerData["slow_streak"])

	// one fast response resolves and resets the streak
	eng.HandleResult(ctx, testEndpoint, checkOK(120))
	assert.Nil(t, store.active(1, model.AlertSlow))
	eng.HandleResult(ctx, testEndpoint, checkOK(2600))
	eng.HandleResult(ctx, testEndpoint, checkOK(2600))
	assert.Nil(t, store.active(1, model.AlertSlow))
}

func TestFailureResetsSlowStreak(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	eng := NewEngine(store, nil, DefaultThresholds())

	eng.HandleResult(ctx, testEndpoint, checkOK(2500))
	eng.HandleResult(ctx, testEndpoint, checkOK(2500))
	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorTimeout))
	eng.HandleResult(ctx, testEndpoint, checkOK(2500))
	assert.Nil(t, store.active(1, model.AlertSlow))
}

func TestRestartSeedsCountersFromHistory(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	// the scheduler saves a result before handing it to the engine, so the
	// check being handled is already at the head of the stored history
	cur := checkFail(model.ErrorTimeout)
	store.recent[1] = []model.HealthCheck{
		*cur,
		{ID: uuid.NewString(), IsSuccessful: false, ErrorType: model.ErrorTimeout},
		{ID: uuid.NewString(), IsSuccessful: false, ErrorType: model.ErrorTimeout},
		{ID: uuid.NewString(), IsSuccessful: true, ResponseTimeMs: fptr(90)},
	}
	notif := &captureNotifier{}
	eng := NewEngine(store, notif, DefaultThresholds())

	// a fresh engine must treat the handled failure as the third in a row
	eng.HandleResult(ctx, testEndpoint, cur)
	assert.Equal(t, 3, eng.ConsecutiveFailures(1))
	require.NotNil(t, store.active(1, model.AlertDown))
	require.Len(t, notif.triggered, 1)
}

func TestSeedDoesNotDoubleCountHandledCheck(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cur := checkFail(model.ErrorTimeout)
	store.recent[1] = []model.HealthCheck{
		*cur,
		{ID: uuid.NewString(), IsSuccessful: false, ErrorType: model.ErrorTimeout},
	}
	eng := NewEngine(store, nil, DefaultThresholds())

	// one older failure plus the handled one: two in a row, not three
	eng.HandleResult(ctx, testEndpoint, cur)
	assert.Equal(t, 2, eng.ConsecutiveFailures(1))
	assert.Nil(t, store.active(1, model.AlertDown))
}

func TestSeedDoesNotDoubleCountSlowStreak(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cur := checkOK(2600)
	store.recent[1] = []model.HealthCheck{
		*cur,
		{ID: uuid.NewString(), IsSuccessful: true, ResponseTimeMs: fptr(2700)},
	}
	eng := NewEngine(store, nil, DefaultThresholds())

	// streak of two must not reach the threshold of three
	eng.HandleResult(ctx, testEndpoint, cur)
	assert.Nil(t, store.active(1, model.AlertSlow))
}

func TestConsecutiveFailuresReadableDuringResults(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	eng := NewEngine(store, nil, DefaultThresholds())

	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorTimeout))
		eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorTimeout))
	}()
	for {
		n := eng.ConsecutiveFailures(1)
		assert.LessOrEqual(t, n, 2)
		select {
		case <-done:
			assert.Equal(t, 2, eng.ConsecutiveFailures(1))
			return
		default:
		}
	}
}

func TestForgetDropsState(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	eng := NewEngine(store, nil, DefaultThresholds())

	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorTimeout))
	eng.HandleResult(ctx, testEndpoint, checkFail(model.ErrorTimeout))
	assert.Equal(t, 2, eng.ConsecutiveFailures(1))
	eng.Forget(1)
	assert.Equal(t, 0, eng.ConsecutiveFailures(1))
}
