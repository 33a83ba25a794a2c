package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSources struct {
	endpoints map[int64]model.Endpoint
	latest    map[int64]*model.HealthCheck
	stats     map[string]*model.UptimeStats
	statsErr  error
	active    map[int64]*model.Alert
	failures  map[int64]int
}

func (f *fakeSources) GetEndpoint(ctx context.Context, id int64) (*model.Endpoint, error) {
	ep, ok := f.endpoints[id]
	if !ok {
		return nil, errors.New("endpoint not found")
	}
	return &ep, nil
}

func (f *fakeSources) ListActiveEndpoints(ctx context.Context) ([]model.Endpoint, error) {
	var out []model.Endpoint
	for _, ep := range f.endpoints {
		out = append(out, ep)
	}
	return out, nil
}

func (f *fakeSources) LatestCheck(ctx context.Context, endpointID int64) (*model.HealthCheck, error) {
	return f.latest[endpointID], nil
}

func (f *fakeSources) RollingStats(ctx context.Context, endpointID int64, period string) (*model.UptimeStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	if s, ok := f.stats[period]; ok {
		return s, nil
	}
	return &model.UptimeStats{EndpointID: endpointID, Period: period}, nil
}

func (f *fakeSources) GetActiveAlert(ctx context.Context, endpointID int64, alertType model.AlertType) (*model.Alert, error) {
	return f.active[endpointID], nil
}

func (f *fakeSources) ConsecutiveFailures(endpointID int64) int {
	return f.failures[endpointID]
}

func fptr(v float64) *float64 { return &v }

func TestEndpointStatusAssembly(t *testing.T) {
	latest := &model.HealthCheck{ID: "c1", EndpointID: 1, IsSuccessful: true, CheckedAt: time.Now().UTC()}
	f := &fakeSources{
		endpoints: map[int64]model.Endpoint{1: {ID: 1, Name: "api", IsActive: true}},
		latest:    map[int64]*model.HealthCheck{1: latest},
		stats: map[string]*model.UptimeStats{
			"24h": {UptimePercentage: fptr(99.5), AvgResponseTimeMs: fptr(120), TotalChecks: 200},
			"7d":  {UptimePercentage: fptr(98.75)},
			"30d": {UptimePercentage: fptr(99.9)},
		},
		active:   map[int64]*model.Alert{},
		failures: map[int64]int{1: 0},
	}
	svc := NewService(f, f, f, f, f, nil)

	st, err := svc.EndpointStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "c1", st.LatestCheck.ID)
	assert.Equal(t, 99.5, *st.Uptime24h)
	assert.Equal(t, 120.0, *st.AvgResponseTime24h)
	assert.Equal(t, 98.75, *st.Uptime7d)
	assert.Equal(t, 99.9, *st.Uptime30d)
	assert.False(t, st.IsDown)
	assert.Equal(t, 0, st.ConsecutiveFailures)
}

func TestEndpointStatusDown(t *testing.T) {
	f := &fakeSources{
		endpoints: map[int64]model.Endpoint{1: {ID: 1, Name: "api"}},
		latest:    map[int64]*model.HealthCheck{},
		active:    map[int64]*model.Alert{1: {ID: "a1", AlertType: model.AlertDown, IsActive: true}},
		failures:  map[int64]int{1: 4},
	}
	svc := NewService(f, f, f, f, f, nil)

	st, err := svc.EndpointStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, st.IsDown)
	assert.Equal(t, 4, st.ConsecutiveFailures)
	assert.Nil(t, st.LatestCheck, "never-probed endpoint has no latest check")
}

func TestEndpointStatusDownWithUnseededCounter(t *testing.T) {
	// freshly restarted process: the down alert is persisted but the live
	// counter has not been re-seeded yet
	f := &fakeSources{
		endpoints: map[int64]model.Endpoint{1: {ID: 1, Name: "api"}},
		latest:    map[int64]*model.HealthCheck{},
		active:    map[int64]*model.Alert{1: {ID: "a1", AlertType: model.AlertDown, IsActive: true}},
		failures:  map[int64]int{},
	}
	svc := NewService(f, f, f, f, f, nil)

	st, err := svc.EndpointStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, st.IsDown, "is_down follows the persisted alert, not the counter")
	assert.Equal(t, 0, st.ConsecutiveFailures)
}

func TestEndpointStatusStatsFailureIsNotFatal(t *testing.T) {
	f := &fakeSources{
		endpoints: map[int64]model.Endpoint{1: {ID: 1}},
		latest:    map[int64]*model.HealthCheck{},
		statsErr:  errors.New("db unavailable"),
		active:    map[int64]*model.Alert{},
		failures:  map[int64]int{},
	}
	svc := NewService(f, f, f, f, f, nil)

	st, err := svc.EndpointStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, st.Uptime24h)
	assert.Nil(t, st.Uptime7d)
}

func TestOverviewListsActiveEndpoints(t *testing.T) {
	f := &fakeSources{
		endpoints: map[int64]model.Endpoint{
			1: {ID: 1, Name: "api", IsActive: true},
			2: {ID: 2, Name: "web", IsActive: true},
		},
		latest:   map[int64]*model.HealthCheck{},
		active:   map[int64]*model.Alert{},
		failures: map[int64]int{},
	}
	svc := NewService(f, f, f, f, f, nil)

	out, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
