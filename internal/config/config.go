package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Logging    LoggingConfig    `json:"logging"`
	Redis      RedisConfig      `json:"redis"`
	Monitoring MonitoringConfig `json:"monitoring"`
	Notifier   NotifierConfig   `json:"notifier"`
	Auth       AuthConfig       `json:"auth"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type MonitoringConfig struct {
	TickInterval    string `json:"tickInterval"`    // e.g. "1s"
	RefreshInterval string `json:"refreshInterval"` // endpoint set reload cadence
	Workers         int    `json:"workers"`         // probe worker pool size
	ShutdownGrace   string `json:"shutdownGrace"`   // wait for in-flight probes on stop
	RollupInterval  string `json:"rollupInterval"`  // aggregator cadence
	ThresholdsFile  string `json:"thresholdsFile"`  // YAML seed for system config
}

type NotifierConfig struct {
	WebhookURL string `json:"webhookURL"`
	Timeout    string `json:"timeout"`
}

type AuthConfig struct {
	Bearer string `json:"bearer"`
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()

	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "pulsewatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Monitoring: MonitoringConfig{
			TickInterval:    getEnv("MONITOR_TICK_INTERVAL", "1s"),
			RefreshInterval: getEnv("MONITOR_REFRESH_INTERVAL", "30s"),
			Workers:         getEnvInt("MONITOR_WORKERS", 16),
			ShutdownGrace:   getEnv("MONITOR_SHUTDOWN_GRACE", "10s"),
			RollupInterval:  getEnv("MONITOR_ROLLUP_INTERVAL", "5m"),
			ThresholdsFile:  getEnv("MONITOR_THRESHOLDS_FILE", ""),
		},
		Notifier: NotifierConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			Timeout:    getEnv("NOTIFY_WEBHOOK_TIMEOUT", "10s"),
		},
		Auth: AuthConfig{
			Bearer: getEnv("API_BEARER_TOKEN", ""),
		},
	}

	if *configFile != "" {
		if err := loadFromFile(cfg, *configFile); err != nil {
			log.Err(err)
			return nil, err
		}
	}

	// fill reasonable defaults when fields omitted in file
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Monitoring.TickInterval == "" {
		cfg.Monitoring.TickInterval = "1s"
	}
	if cfg.Monitoring.RefreshInterval == "" {
		cfg.Monitoring.RefreshInterval = "30s"
	}
	if cfg.Monitoring.Workers <= 0 {
		cfg.Monitoring.Workers = 16
	}
	if cfg.Monitoring.ShutdownGrace == "" {
		cfg.Monitoring.ShutdownGrace = "10s"
	}
	if cfg.Monitoring.RollupInterval == "" {
		cfg.Monitoring.RollupInterval = "5m"
	}
	if cfg.Notifier.Timeout == "" {
		cfg.Notifier.Timeout = "10s"
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
