package aggregator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

// Store abstracts the persistence the aggregator needs: raw checks in, one
// rollup row out.
type Store interface {
	ListActiveEndpoints(ctx context.Context) ([]model.Endpoint, error)
	LoadChecksInRange(ctx context.Context, endpointID int64, start, end time.Time) ([]model.HealthCheck, error)
	UpsertUptimeMetric(ctx context.Context, m *model.UptimeMetric) error
}

// Aggregator turns raw health checks into uptime metrics, both on a periodic
// rollup cadence and on demand for rolling windows.
type Aggregator struct {
	store    Store
	interval time.Duration

	// OnRollup, when set, is called once per upserted metric row.
	OnRollup func()

	// period starts already closed out, keyed by endpoint id and period type;
	// touched only by the Start goroutine
	closed map[string]time.Time
}

func New(store Store, interval time.Duration) *Aggregator {
	return &Aggregator{store: store, interval: interval, closed: map[string]time.Time{}}
}

// ComputeMetric aggregates all checks with checked_at in [start, end) into one
// UptimeMetric. Recomputing the same period yields the same row, so callers
// may upsert repeatedly while the period is open.
func (a *Aggregator) ComputeMetric(ctx context.Context, endpointID int64, start, end time.Time, periodType model.PeriodType) (*model.UptimeMetric, error) {
	checks, err := a.store.LoadChecksInRange(ctx, endpointID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load checks for rollup: %w", err)
	}

	m := &model.UptimeMetric{
		EndpointID:  endpointID,
		PeriodStart: start,
		PeriodEnd:   end,
		PeriodType:  periodType,
		TotalChecks: len(checks),
		CreatedAt:   time.Now().UTC(),
	}

	var latencies []float64
	for _, hc := range checks {
		if hc.IsSuccessful {
			m.SuccessfulChecks++
		}
		// failed checks without a measured time count toward uptime but
		// never toward latency stats
		if hc.ResponseTimeMs != nil {
			latencies = append(latencies, *hc.ResponseTimeMs)
		}
	}

	if m.TotalChecks > 0 {
		pct := Round2(float64(m.SuccessfulChecks) / float64(m.TotalChecks) * 100)
		m.UptimePercentage = &pct
	}
	fillLatencyStats(m, latencies)
	return m, nil
}

// RollingWindows are the on-demand stat windows served by the API. They are
// always computed from raw checks, never from stored rollups, so rounding
// error does not compound.
var RollingWindows = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// RollingStats computes uptime stats over a named rolling window ending now.
func (a *Aggregator) RollingStats(ctx context.Context, endpointID int64, period string) (*model.UptimeStats, error) {
	window, ok := RollingWindows[period]
	if !ok {
		return nil, fmt.Errorf("unknown stats period %q", period)
	}
	now := time.Now().UTC()
	checks, err := a.store.LoadChecksInRange(ctx, endpointID, now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("load checks for rolling stats: %w", err)
	}

	stats := &model.UptimeStats{
		EndpointID:  endpointID,
		Period:      period,
		TotalChecks: len(checks),
	}
	var latencies []float64
	for _, hc := range checks {
		if hc.IsSuccessful {
			stats.SuccessfulChecks++
		}
		if hc.ResponseTimeMs != nil {
			latencies = append(latencies, *hc.ResponseTimeMs)
		}
	}
	if stats.TotalChecks > 0 {
		pct := Round2(float64(stats.SuccessfulChecks) / float64(stats.TotalChecks) * 100)
		stats.UptimePercentage = &pct
	}
	if len(latencies) > 0 {
		sort.Float64s(latencies)
		avg := Round2(mean(latencies))
		mn, mx := latencies[0], latencies[len(latencies)-1]
		stats.AvgResponseTimeMs = &avg
		stats.MinResponseTimeMs = &mn
		stats.MaxResponseTimeMs = &mx
	}
	return stats, nil
}

func fillLatencyStats(m *model.UptimeMetric, latencies []float64) {
	if len(latencies) == 0 {
		return
	}
	sort.Float64s(latencies)
	avg := Round2(mean(latencies))
	mn, mx := latencies[0], latencies[len(latencies)-1]
	p95 := Percentile(latencies, 0.95)
	p99 := Percentile(latencies, 0.99)
	m.AvgResponseTimeMs = &avg
	m.MinResponseTimeMs = &mn
	m.MaxResponseTimeMs = &mx
	m.P95ResponseTimeMs = &p95
	m.P99ResponseTimeMs = &p99
}

// Percentile implements the nearest-rank method on an ascending-sorted slice:
// index = ceil(p*n)-1, clamped to [0, n-1]. Deterministic by construction.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// Round2 rounds to two decimal places, the precision uptime percentages are
// reported at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
