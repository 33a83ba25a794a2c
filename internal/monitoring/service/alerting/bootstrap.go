package alerting

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	promodel "github.com/prometheus/common/model"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Seeder writes default config rows without clobbering existing ones.
type Seeder interface {
	SetConfigIfAbsent(ctx context.Context, c *model.SystemConfig) error
}

// seedFile is the operator-facing defaults file. Every field is optional;
// zero values fall back to the built-in defaults.
type seedFile struct {
	DownAfter          int               `yaml:"down_after"`
	DownCriticalAfter  int               `yaml:"down_critical_after"`
	SlowAfter          int               `yaml:"slow_after"`
	SlowThresholdMs    float64           `yaml:"slow_threshold_ms"`
	CriticalErrorTypes []string          `yaml:"critical_error_types"`
	HistoryWindow      int               `yaml:"history_window"`
	ReloadInterval     promodel.Duration `yaml:"reload_interval"`
}

// SeedDefaults writes the alert tunables into system_config, layering values
// from the YAML file at path (when given) over the built-in defaults. Rows
// already present are left untouched, so operator overrides survive restarts.
func SeedDefaults(ctx context.Context, seeder Seeder, path string) error {
	def := DefaultThresholds()
	sf := seedFile{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read thresholds file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &sf); err != nil {
			return fmt.Errorf("parse thresholds file %s: %w", path, err)
		}
		log.Info().Str("path", path).Msg("loaded alert threshold defaults")
	}

	if sf.DownAfter <= 0 {
		sf.DownAfter = def.DownAfter
	}
	if sf.DownCriticalAfter <= 0 {
		sf.DownCriticalAfter = def.DownCriticalAfter
	}
	if sf.SlowAfter <= 0 {
		sf.SlowAfter = def.SlowAfter
	}
	if sf.SlowThresholdMs <= 0 {
		sf.SlowThresholdMs = def.SlowThresholdMs
	}
	if len(sf.CriticalErrorTypes) == 0 {
		for et := range def.CriticalErrorTypes {
			sf.CriticalErrorTypes = append(sf.CriticalErrorTypes, string(et))
		}
	}
	if sf.HistoryWindow <= 0 {
		sf.HistoryWindow = def.HistoryWindow
	}
	if time.Duration(sf.ReloadInterval) <= 0 {
		sf.ReloadInterval = promodel.Duration(def.ReloadInterval)
	}

	rows := []model.SystemConfig{
		{Key: KeyDownAfter, Value: strconv.Itoa(sf.DownAfter), ValueType: "int",
			Description: "consecutive failures before a down alert triggers", IsSystem: true},
		{Key: KeyDownCriticalAfter, Value: strconv.Itoa(sf.DownCriticalAfter), ValueType: "int",
			Description: "consecutive failures before a down alert escalates to critical", IsSystem: true},
		{Key: KeySlowAfter, Value: strconv.Itoa(sf.SlowAfter), ValueType: "int",
			Description: "consecutive slow responses before a slow alert triggers", IsSystem: true},
		{Key: KeySlowThresholdMs, Value: strconv.FormatFloat(sf.SlowThresholdMs, 'f', -1, 64), ValueType: "float",
			Description: "response time in ms above which a successful check counts as slow", IsSystem: true},
		{Key: KeyCriticalErrorTypes, Value: strings.Join(sf.CriticalErrorTypes, ","), ValueType: "string",
			Description: "error types that trigger an error alert on a single failure", IsSystem: true},
		{Key: KeyHistoryWindow, Value: strconv.Itoa(sf.HistoryWindow), ValueType: "int",
			Description: "number of recent checks scanned when rebuilding counters", IsSystem: true},
		{Key: KeyReloadInterval, Value: sf.ReloadInterval.String(), ValueType: "duration",
			Description: "how often the engine re-reads these tunables", IsSystem: true},
	}
	for i := range rows {
		if err := seeder.SetConfigIfAbsent(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}
