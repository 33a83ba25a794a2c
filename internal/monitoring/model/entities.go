package model

import "time"

// ErrorType classifies a failed probe. Empty means the probe had no error.
type ErrorType string

const (
	ErrorTimeout          ErrorType = "timeout"
	ErrorDNS              ErrorType = "dns"
	ErrorConnection       ErrorType = "connection"
	ErrorTLS              ErrorType = "tls"
	ErrorUnexpectedStatus ErrorType = "unexpected_status"
	ErrorTooManyRedirects ErrorType = "too_many_redirects"
)

// AlertType identifies the alert state machine a result feeds.
type AlertType string

const (
	AlertDown  AlertType = "down"
	AlertSlow  AlertType = "slow"
	AlertError AlertType = "error"
)

// Severity levels, ordered low to critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// PeriodType is the granularity of a stored uptime rollup.
type PeriodType string

const (
	PeriodHour  PeriodType = "hour"
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
)

// Endpoint is a monitored URL and its schedule parameters.
type Endpoint struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	URL                string    `json:"url"`
	CheckInterval      int       `json:"check_interval"` // seconds, [60, 3600]
	IsActive           bool      `json:"is_active"`
	ExpectedStatusCode int       `json:"expected_status_code"`
	TimeoutSeconds     int       `json:"timeout_seconds"`
	Description        string    `json:"description"`
	Tags               []string  `json:"tags"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// HealthCheck is one probe attempt. Rows are immutable once written.
// Timing fields are nil when the phase did not occur; absent and zero
// are distinct on purpose.
type HealthCheck struct {
	ID                 string            `json:"id"`
	EndpointID         int64             `json:"endpoint_id"`
	CheckedAt          time.Time         `json:"checked_at"`
	StatusCode         *int              `json:"status_code,omitempty"`
	ResponseTimeMs     *float64          `json:"response_time_ms,omitempty"`
	IsSuccessful       bool              `json:"is_successful"`
	ErrorType          ErrorType         `json:"error_type,omitempty"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	DNSLookupTimeMs    *float64          `json:"dns_lookup_time_ms,omitempty"`
	TCPConnectTimeMs   *float64          `json:"tcp_connect_time_ms,omitempty"`
	TLSHandshakeTimeMs *float64          `json:"tls_handshake_time_ms,omitempty"`
	ResponseSizeBytes  *int64            `json:"response_size_bytes,omitempty"`
	ResponseHeaders    map[string]string `json:"response_headers,omitempty"`
}

// UptimeMetric is one aggregated period for an endpoint. UptimePercentage is
// nil when the period holds no checks ("no data", not 0% uptime).
type UptimeMetric struct {
	EndpointID        int64      `json:"endpoint_id"`
	PeriodStart       time.Time  `json:"period_start"`
	PeriodEnd         time.Time  `json:"period_end"`
	PeriodType        PeriodType `json:"period_type"`
	TotalChecks       int        `json:"total_checks"`
	SuccessfulChecks  int        `json:"successful_checks"`
	UptimePercentage  *float64   `json:"uptime_percentage,omitempty"`
	AvgResponseTimeMs *float64   `json:"avg_response_time_ms,omitempty"`
	MinResponseTimeMs *float64   `json:"min_response_time_ms,omitempty"`
	MaxResponseTimeMs *float64   `json:"max_response_time_ms,omitempty"`
	P95ResponseTimeMs *float64   `json:"p95_response_time_ms,omitempty"`
	P99ResponseTimeMs *float64   `json:"p99_response_time_ms,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Alert is one lifecycle of a trigger condition. At most one active alert
// exists per (endpoint, alert type); resolved rows are kept as history.
type Alert struct {
	ID          string         `json:"id"`
	EndpointID  int64          `json:"endpoint_id"`
	AlertType   AlertType      `json:"alert_type"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	IsActive    bool           `json:"is_active"`
	TriggeredAt time.Time      `json:"triggered_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SystemConfig is one tunable key/value row.
type SystemConfig struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	ValueType   string    `json:"value_type"` // string, int, float, bool, duration, json
	Description string    `json:"description"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EndpointStatus is the live dashboard snapshot for one endpoint.
type EndpointStatus struct {
	Endpoint            Endpoint     `json:"endpoint"`
	LatestCheck         *HealthCheck `json:"latest_check,omitempty"`
	Uptime24h           *float64     `json:"uptime_24h,omitempty"`
	Uptime7d            *float64     `json:"uptime_7d,omitempty"`
	Uptime30d           *float64     `json:"uptime_30d,omitempty"`
	AvgResponseTime24h  *float64     `json:"avg_response_time_24h,omitempty"`
	IsDown              bool         `json:"is_down"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
}

// UptimeStats is an on-demand rolling-window aggregate ("24h", "7d", "30d"),
// always computed from raw checks rather than stored rollups.
type UptimeStats struct {
	EndpointID        int64    `json:"endpoint_id"`
	Period            string   `json:"period"`
	UptimePercentage  *float64 `json:"uptime_percentage,omitempty"`
	TotalChecks       int      `json:"total_checks"`
	SuccessfulChecks  int      `json:"successful_checks"`
	AvgResponseTimeMs *float64 `json:"avg_response_time_ms,omitempty"`
	MinResponseTimeMs *float64 `json:"min_response_time_ms,omitempty"`
	MaxResponseTimeMs *float64 `json:"max_response_time_ms,omitempty"`
}
