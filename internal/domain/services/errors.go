package services

import "fmt"

// ConfigurationError reports a problem with check registration or policy
// tables. It is the only error class that aborts a run, and it is always
// raised at startup, before any check executes.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
