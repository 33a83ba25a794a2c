package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/rs/zerolog/log"
)

var periodTypes = []model.PeriodType{model.PeriodHour, model.PeriodDay, model.PeriodWeek, model.PeriodMonth}

// Start runs the periodic rollup loop until ctx is cancelled. Each pass
// recomputes the open period for every active endpoint and period type, and
// closes out a period once after its boundary passes. Rollups only read
// already-persisted checks; eventual consistency with the scheduler is
// corrected on the next pass.
func (a *Aggregator) Start(ctx context.Context) {
	if a.interval <= 0 {
		a.interval = 5 * time.Minute
	}
	t := time.NewTicker(a.interval)
	defer t.Stop()

	if err := a.runOnce(ctx, time.Now().UTC()); err != nil {
		log.Error().Err(err).Msg("uptime rollup failed on startup")
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.runOnce(ctx, time.Now().UTC()); err != nil {
				log.Error().Err(err).Msg("uptime rollup failed")
			}
		}
	}
}

func (a *Aggregator) runOnce(ctx context.Context, now time.Time) error {
	endpoints, err := a.store.ListActiveEndpoints(ctx)
	if err != nil {
		return fmt.Errorf("list endpoints for rollup: %w", err)
	}
	for _, ep := range endpoints {
		for _, pt := range periodTypes {
			start, end := PeriodBounds(now, pt)
			if err := a.rollup(ctx, ep.ID, start, end, pt); err != nil {
				log.Error().Err(err).Int64("endpoint_id", ep.ID).Str("period_type", string(pt)).Msg("open period rollup failed")
				continue
			}

			prevStart, prevEnd := PeriodBounds(start.Add(-time.Second), pt)
			key := fmt.Sprintf("%d/%s", ep.ID, pt)
			if a.closed[key].Equal(prevStart) {
				continue
			}
			if err := a.rollup(ctx, ep.ID, prevStart, prevEnd, pt); err != nil {
				log.Error().Err(err).Int64("endpoint_id", ep.ID).Str("period_type", string(pt)).Msg("closing period rollup failed")
				continue
			}
			a.closed[key] = prevStart
		}
	}
	return nil
}

func (a *Aggregator) rollup(ctx context.Context, endpointID int64, start, end time.Time, pt model.PeriodType) error {
	m, err := a.ComputeMetric(ctx, endpointID, start, end, pt)
	if err != nil {
		return err
	}
	if err := a.store.UpsertUptimeMetric(ctx, m); err != nil {
		return err
	}
	if a.OnRollup != nil {
		a.OnRollup()
	}
	return nil
}

// PeriodBounds returns the [start, end) window of the period containing ts.
// Weeks start on Monday; all boundaries are UTC.
func PeriodBounds(ts time.Time, pt model.PeriodType) (time.Time, time.Time) {
	ts = ts.UTC()
	switch pt {
	case model.PeriodHour:
		start := ts.Truncate(time.Hour)
		return start, start.Add(time.Hour)
	case model.PeriodDay:
		start := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	case model.PeriodWeek:
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case model.PeriodMonth:
		start := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		start := ts.Truncate(time.Hour)
		return start, start.Add(time.Hour)
	}
}
