package alerting

import (
	"context"
	"strconv"
	"strings"
	"time"

	promodel "github.com/prometheus/common/model"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/rs/zerolog/log"
)

// System config keys for alert tunables.
const (
	KeyDownAfter          = "alert.down_after"
	KeyDownCriticalAfter  = "alert.down_critical_after"
	KeySlowAfter          = "alert.slow_after"
	KeySlowThresholdMs    = "alert.slow_threshold_ms"
	KeyCriticalErrorTypes = "alert.critical_error_types"
	KeyHistoryWindow      = "alert.history_window"
	KeyReloadInterval     = "alert.reload_interval"
)

// Thresholds are the alert trigger tunables. Defaults apply whenever a config
// value is absent or malformed; a bad value never halts the engine.
type Thresholds struct {
	DownAfter          int
	DownCriticalAfter  int
	SlowAfter          int
	SlowThresholdMs    float64
	CriticalErrorTypes map[model.ErrorType]bool
	HistoryWindow      int
	ReloadInterval     time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DownAfter:          3,
		DownCriticalAfter:  10,
		SlowAfter:          3,
		SlowThresholdMs:    2000,
		CriticalErrorTypes: map[model.ErrorType]bool{model.ErrorTLS: true, model.ErrorDNS: true},
		HistoryWindow:      50,
		ReloadInterval:     5 * time.Minute,
	}
}

// LoadThresholds reads tunables from the config source on top of defaults.
// This is the explicit reload boundary: the snapshot is taken once, not
// re-read per check.
func LoadThresholds(ctx context.Context, src ConfigSource) Thresholds {
	th := DefaultThresholds()
	if src == nil {
		return th
	}
	th.DownAfter = loadInt(ctx, src, KeyDownAfter, th.DownAfter)
	th.DownCriticalAfter = loadInt(ctx, src, KeyDownCriticalAfter, th.DownCriticalAfter)
	th.SlowAfter = loadInt(ctx, src, KeySlowAfter, th.SlowAfter)
	th.SlowThresholdMs = loadFloat(ctx, src, KeySlowThresholdMs, th.SlowThresholdMs)
	th.HistoryWindow = loadInt(ctx, src, KeyHistoryWindow, th.HistoryWindow)
	th.ReloadInterval = loadDuration(ctx, src, KeyReloadInterval, th.ReloadInterval)

	if raw, found, err := src.GetConfig(ctx, KeyCriticalErrorTypes); err != nil {
		log.Warn().Err(err).Str("key", KeyCriticalErrorTypes).Msg("config read failed, using default")
	} else if found {
		set := map[model.ErrorType]bool{}
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				set[model.ErrorType(part)] = true
			}
		}
		th.CriticalErrorTypes = set
	}
	return th
}

func loadInt(ctx context.Context, src ConfigSource, key string, def int) int {
	raw, found, err := src.GetConfig(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("config read failed, using default")
		return def
	}
	if !found {
		return def
	}
	v, perr := strconv.Atoi(strings.TrimSpace(raw))
	if perr != nil || v <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Int("default", def).Msg("malformed config value, using default")
		return def
	}
	return v
}

func loadFloat(ctx context.Context, src ConfigSource, key string, def float64) float64 {
	raw, found, err := src.GetConfig(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("config read failed, using default")
		return def
	}
	if !found {
		return def
	}
	v, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if perr != nil || v <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Float64("default", def).Msg("malformed config value, using default")
		return def
	}
	return v
}

func loadDuration(ctx context.Context, src ConfigSource, key string, def time.Duration) time.Duration {
	raw, found, err := src.GetConfig(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("config read failed, using default")
		return def
	}
	if !found {
		return def
	}
	d, perr := promodel.ParseDuration(strings.TrimSpace(raw))
	if perr != nil || time.Duration(d) <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Stringer("default", def).Msg("malformed config value, using default")
		return def
	}
	return time.Duration(d)
}
