package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration value.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors aggregates all invalid values found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid configuration:\n  " + strings.Join(msgs, "\n  ")
}

// ValidLogLevels returns the accepted logging.level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the configuration for invalid values. It returns all
// problems found rather than stopping at the first.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Status.Phase < 0 {
		errs = append(errs, ValidationError{
			Field:   "status.phase",
			Value:   c.Status.Phase,
			Message: "phase cannot be negative",
		})
	}
	for group, phase := range c.Status.GroupOverrides {
		if phase < 0 {
			errs = append(errs, ValidationError{
				Field:   "status.group_overrides." + group,
				Value:   phase,
				Message: "phase cannot be negative",
			})
		}
	}

	if c.Telemetry.TimeoutMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "telemetry.timeout_ms",
			Value:   c.Telemetry.TimeoutMs,
			Message: "timeout must be positive",
		})
	}

	if c.Logging.Level != "" {
		valid := false
		for _, lvl := range ValidLogLevels() {
			if strings.EqualFold(c.Logging.Level, lvl) {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, ValidationError{
				Field:   "logging.level",
				Value:   c.Logging.Level,
				Message: "must be one of: " + strings.Join(ValidLogLevels(), ", "),
			})
		}
	}

	return errs
}
