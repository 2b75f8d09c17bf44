// Package businessflow contains the use cases behind the auto campaign API
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Auto campaign errors
	ErrAutoCampaignNotFound = errors.New("auto campaign not found")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrContentRequired      = errors.New("template or inline body is required")
	ErrSubjectRequired      = errors.New("email campaigns need a subject")
	ErrInvalidWindow        = errors.New("window end must be after window start")
	ErrInvalidDate          = errors.New("date must be formatted as YYYY-MM-DD")
	ErrChannelImmutable     = errors.New("channel cannot be changed once created")

	// Run errors
	ErrRunNotFound       = errors.New("run not found")
	ErrRunCampaignDiffer = errors.New("run belongs to another campaign")

	// Dispatch errors
	ErrCampaignMisconfigured = errors.New("campaign configuration prevents sending")
	ErrTransportFailed       = errors.New("transport rejected the message")

	ErrValidationFailed = errors.New("validation failed")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsAutoCampaignNotFound(err error) bool {
	return errors.Is(err, ErrAutoCampaignNotFound)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrRunCampaignDiffer)
}

func IsCampaignMisconfigured(err error) bool {
	return errors.Is(err, ErrCampaignMisconfigured)
}

func IsTransportFailed(err error) bool {
	return errors.Is(err, ErrTransportFailed)
}

func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrContentRequired) ||
		errors.Is(err, ErrSubjectRequired) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrChannelImmutable)
}

// ErrorCode extracts the code of a BusinessError
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
