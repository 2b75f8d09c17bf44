package scheduler

import (
	"errors"
	"fmt"
)

// Configuration error codes. A run that fails with one of these writes no run
// record, so the period stays eligible once the campaign is fixed.
const (
	CodeTemplateMissing     = "TEMPLATE_MISSING"
	CodeAddressPoolEmpty    = "ADDRESS_POOL_EMPTY"
	CodeScheduleUnset       = "SCHEDULE_UNSET"
	CodeSenderMissing       = "SENDER_MISSING"
	CodeAudienceEmpty       = "AUDIENCE_EMPTY"
	CodeScheduleModeInvalid = "SCHEDULE_MODE_INVALID"
	CodeTimezoneUnavailable = "TIMEZONE_UNAVAILABLE"
)

// ConfigError reports a campaign or process configuration that prevents firing
type ConfigError struct {
	Code string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func newConfigError(code, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Err: fmt.Errorf(format, args...)}
}

// IsConfigError reports whether err carries a ConfigError and returns it
func IsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ErrCampaignNotFound is returned when a trigger names an unknown campaign
var ErrCampaignNotFound = errors.New("auto campaign not found")
