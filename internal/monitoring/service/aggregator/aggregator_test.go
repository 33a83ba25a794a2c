package aggregator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	endpoints []model.Endpoint
	checks    map[int64][]model.HealthCheck
	metrics   map[string]*model.UptimeMetric
}

func newMemStore() *memStore {
	return &memStore{checks: map[int64][]model.HealthCheck{}, metrics: map[string]*model.UptimeMetric{}}
}

func (m *memStore) ListActiveEndpoints(ctx context.Context) ([]model.Endpoint, error) {
	return m.endpoints, nil
}

func (m *memStore) LoadChecksInRange(ctx context.Context, endpointID int64, start, end time.Time) ([]model.HealthCheck, error) {
	var out []model.HealthCheck
	for _, hc := range m.checks[endpointID] {
		if !hc.CheckedAt.Before(start) && hc.CheckedAt.Before(end) {
			out = append(out, hc)
		}
	}
	return out, nil
}

func (m *memStore) UpsertUptimeMetric(ctx context.Context, metric *model.UptimeMetric) error {
	key := fmt.Sprintf("%d|%s|%d", metric.EndpointID, metric.PeriodType, metric.PeriodStart.Unix())
	m.metrics[key] = metric
	return nil
}

func fptr(v float64) *float64 { return &v }

func addCheck(m *memStore, endpointID int64, at time.Time, ok bool, respMs *float64) {
	m.checks[endpointID] = append(m.checks[endpointID], model.HealthCheck{
		EndpointID:     endpointID,
		CheckedAt:      at,
		IsSuccessful:   ok,
		ResponseTimeMs: respMs,
	})
}

func TestPercentileNearestRank(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	// ceil(0.95*5)-1 = 4 -> 50; ceil(0.99*5)-1 = 4 -> 50
	assert.Equal(t, 50.0, Percentile(sorted, 0.95))
	assert.Equal(t, 50.0, Percentile(sorted, 0.99))
	// ceil(0.5*5)-1 = 2 -> 30
	assert.Equal(t, 30.0, Percentile(sorted, 0.5))
	assert.Equal(t, 10.0, Percentile(sorted, 0.0))
	assert.Equal(t, 0.0, Percentile(nil, 0.95))
}

func TestComputeMetric(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	addCheck(store, 1, start.Add(1*time.Minute), true, fptr(10))
	addCheck(store, 1, start.Add(2*time.Minute), true, fptr(30))
	addCheck(store, 1, start.Add(3*time.Minute), false, nil) // timeout: no latency sample
	// outside the window, must not count
	addCheck(store, 1, end.Add(time.Minute), true, fptr(99))

	agg := New(store, time.Minute)
	m, err := agg.ComputeMetric(ctx, 1, start, end, model.PeriodHour)
	require.NoError(t, err)

	assert.Equal(t, 3, m.TotalChecks)
	assert.Equal(t, 2, m.SuccessfulChecks)
	assert.LessOrEqual(t, m.SuccessfulChecks, m.TotalChecks)
	require.NotNil(t, m.UptimePercentage)
	assert.Equal(t, 66.67, *m.UptimePercentage)
	// latency stats exclude the failed check with no measured time
	require.NotNil(t, m.AvgResponseTimeMs)
	assert.Equal(t, 20.0, *m.AvgResponseTimeMs)
	assert.Equal(t, 10.0, *m.MinResponseTimeMs)
	assert.Equal(t, 30.0, *m.MaxResponseTimeMs)
	assert.Equal(t, 30.0, *m.P95ResponseTimeMs)
}

func TestComputeMetricNoData(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	agg := New(store, time.Minute)
	m, err := agg.ComputeMetric(ctx, 1, start, start.Add(time.Hour), model.PeriodHour)
	require.NoError(t, err)

	assert.Equal(t, 0, m.TotalChecks)
	// no data is reported as absent, never as 0% uptime
	assert.Nil(t, m.UptimePercentage)
	assert.Nil(t, m.AvgResponseTimeMs)
}

func TestRollupIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.endpoints = []model.Endpoint{{ID: 1, IsActive: true}}
	now := time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)
	addCheck(store, 1, now.Add(-time.Minute), true, fptr(12))

	agg := New(store, time.Minute)
	require.NoError(t, agg.runOnce(ctx, now))
	first := len(store.metrics)
	require.NoError(t, agg.runOnce(ctx, now))
	// recomputation overwrites, never duplicates
	assert.Equal(t, first, len(store.metrics))

	key := fmt.Sprintf("1|hour|%d", time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC).Unix())
	m, ok := store.metrics[key]
	require.True(t, ok)
	assert.Equal(t, 1, m.TotalChecks)
}

func TestRollingStats(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := time.Now().UTC()
	addCheck(store, 7, now.Add(-time.Hour), true, fptr(100))
	addCheck(store, 7, now.Add(-2*time.Hour), false, nil)
	addCheck(store, 7, now.Add(-48*time.Hour), true, fptr(5)) // outside 24h

	agg := New(store, time.Minute)
	stats, err := agg.RollingStats(ctx, 7, "24h")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalChecks)
	assert.Equal(t, 1, stats.SuccessfulChecks)
	require.NotNil(t, stats.UptimePercentage)
	assert.Equal(t, 50.0, *stats.UptimePercentage)
	require.NotNil(t, stats.AvgResponseTimeMs)
	assert.Equal(t, 100.0, *stats.AvgResponseTimeMs)

	_, err = agg.RollingStats(ctx, 7, "12h")
	assert.Error(t, err)
}

func TestPeriodBounds(t *testing.T) {
	ts := time.Date(2026, 8, 31, 10, 42, 13, 0, time.UTC) // a Monday

	start, end := PeriodBounds(ts, model.PeriodHour)
	assert.Equal(t, time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Hour, end.Sub(start))

	start, end = PeriodBounds(ts, model.PeriodDay)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	start, _ = PeriodBounds(ts, model.PeriodWeek)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), start)
	// a Sunday belongs to the week starting the previous Monday
	start, _ = PeriodBounds(time.Date(2026, 9, 6, 12, 0, 0, 0, time.UTC), model.PeriodWeek)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), start)

	start, end = PeriodBounds(ts, model.PeriodMonth)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), end)
}
