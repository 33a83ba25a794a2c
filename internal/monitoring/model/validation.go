package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError reports a rejected field at an entity construction boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Field bounds carried over from the persistence schema.
const (
	MinCheckInterval  = 60
	MaxCheckInterval  = 3600
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 300
	MinStatusCode     = 100
	MaxStatusCode     = 599
	MaxNameLen        = 200
	MaxURLLen         = 1000
	MaxDescriptionLen = 500
)

// EndpointCreate is the request schema for registering an endpoint.
type EndpointCreate struct {
	Name               string   `json:"name"`
	URL                string   `json:"url"`
	CheckInterval      int      `json:"check_interval"`
	ExpectedStatusCode int      `json:"expected_status_code"`
	TimeoutSeconds     int      `json:"timeout_seconds"`
	Description        string   `json:"description"`
	Tags               []string `json:"tags"`
}

// EndpointUpdate is the partial-update schema; nil fields are left unchanged.
type EndpointUpdate struct {
	Name               *string  `json:"name,omitempty"`
	URL                *string  `json:"url,omitempty"`
	CheckInterval      *int     `json:"check_interval,omitempty"`
	ExpectedStatusCode *int     `json:"expected_status_code,omitempty"`
	TimeoutSeconds     *int     `json:"timeout_seconds,omitempty"`
	Description        *string  `json:"description,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	IsActive           *bool    `json:"is_active,omitempty"`
}

// Validate applies defaults and checks field bounds.
func (c *EndpointCreate) Validate() error {
	if c.CheckInterval == 0 {
		c.CheckInterval = 300
	}
	if c.ExpectedStatusCode == 0 {
		c.ExpectedStatusCode = 200
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(c.Name) > MaxNameLen {
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("longer than %d characters", MaxNameLen)}
	}
	if err := validateURL(c.URL); err != nil {
		return err
	}
	if err := validateCheckInterval(c.CheckInterval); err != nil {
		return err
	}
	if err := validateStatusCode(c.ExpectedStatusCode); err != nil {
		return err
	}
	if err := validateTimeout(c.TimeoutSeconds); err != nil {
		return err
	}
	if len(c.Description) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("longer than %d characters", MaxDescriptionLen)}
	}
	return nil
}

// Validate checks only the fields that are present.
func (u *EndpointUpdate) Validate() error {
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return &ValidationError{Field: "name", Reason: "must not be empty"}
		}
		if len(*u.Name) > MaxNameLen {
			return &ValidationError{Field: "name", Reason: fmt.Sprintf("longer than %d characters", MaxNameLen)}
		}
	}
	if u.URL != nil {
		if err := validateURL(*u.URL); err != nil {
			return err
		}
	}
	if u.CheckInterval != nil {
		if err := validateCheckInterval(*u.CheckInterval); err != nil {
			return err
		}
	}
	if u.ExpectedStatusCode != nil {
		if err := validateStatusCode(*u.ExpectedStatusCode); err != nil {
			return err
		}
	}
	if u.TimeoutSeconds != nil {
		if err := validateTimeout(*u.TimeoutSeconds); err != nil {
			return err
		}
	}
	if u.Description != nil && len(*u.Description) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("longer than %d characters", MaxDescriptionLen)}
	}
	return nil
}

// Apply copies the present fields onto an endpoint and bumps UpdatedAt.
func (u *EndpointUpdate) Apply(ep *Endpoint) {
	if u.Name != nil {
		ep.Name = *u.Name
	}
	if u.URL != nil {
		ep.URL = *u.URL
	}
	if u.CheckInterval != nil {
		ep.CheckInterval = *u.CheckInterval
	}
	if u.ExpectedStatusCode != nil {
		ep.ExpectedStatusCode = *u.ExpectedStatusCode
	}
	if u.TimeoutSeconds != nil {
		ep.TimeoutSeconds = *u.TimeoutSeconds
	}
	if u.Description != nil {
		ep.Description = *u.Description
	}
	if u.Tags != nil {
		ep.Tags = u.Tags
	}
	if u.IsActive != nil {
		ep.IsActive = *u.IsActive
	}
	ep.UpdatedAt = time.Now().UTC()
}

func validateURL(raw string) error {
	if raw == "" {
		return &ValidationError{Field: "url", Reason: "must not be empty"}
	}
	if len(raw) > MaxURLLen {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("longer than %d characters", MaxURLLen)}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{Field: "url", Reason: "must be an absolute http(s) URL"}
	}
	return nil
}

func validateCheckInterval(v int) error {
	if v < MinCheckInterval || v > MaxCheckInterval {
		return &ValidationError{Field: "check_interval", Reason: fmt.Sprintf("must be within [%d, %d]", MinCheckInterval, MaxCheckInterval)}
	}
	return nil
}

func validateStatusCode(v int) error {
	if v < MinStatusCode || v > MaxStatusCode {
		return &ValidationError{Field: "expected_status_code", Reason: fmt.Sprintf("must be within [%d, %d]", MinStatusCode, MaxStatusCode)}
	}
	return nil
}

func validateTimeout(v int) error {
	if v < MinTimeoutSeconds || v > MaxTimeoutSeconds {
		return &ValidationError{Field: "timeout_seconds", Reason: fmt.Sprintf("must be within [%d, %d]", MinTimeoutSeconds, MaxTimeoutSeconds)}
	}
	return nil
}
