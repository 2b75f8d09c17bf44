package utils

import (
	"time"
)

// Auto campaign limits
const (
	DefaultMaxPerDay = 45
	MinMaxPerDay     = 1
	MaxMaxPerDay     = 500

	DefaultSendHour   = 11
	DefaultSendMinute = 0

	DefaultStopAfterDays = 30
	MinStopAfterDays     = 1
	MaxStopAfterDays     = 365

	// MaxAddressPoolSize bounds the number of lines kept in a campaign address pool
	MaxAddressPoolSize = 5000

	// MaxSendErrorBytes caps the error text stored on a send log
	MaxSendErrorBytes = 2000

	// MaxErrorSamples caps the recipient errors echoed back to a trigger caller
	MaxErrorSamples = 25

	// DefaultFirstName is rendered when a contact has no first name
	DefaultFirstName = "there"
)

// Scheduler defaults
const (
	DefaultTimezone      = "America/New_York"
	DefaultTimeTolerance = 10 * time.Minute
	DefaultPacingMin     = 2 * time.Second
	DefaultPacingMax     = 8 * time.Second
	DefaultRunTimeout    = 10 * time.Minute
	DefaultCronSpec      = "*/5 * * * *"
)

// Request context keys
type contextKey string

const RequestIDKey contextKey = "request_id"

const (
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	SubjectKey   contextKey = "subject"
)
