package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrEnvelopeRequired         = sterrors.New("stepflow: step event envelope is required")
	ErrPublisherRequired        = sterrors.New("stepflow: publisher is required")
	ErrTopicRequired            = sterrors.New("stepflow: topic is required")
	ErrConfigRequired           = sterrors.New("stepflow: configuration is required")
	ErrLoggerRequired           = sterrors.New("stepflow: logger is required")
	ErrPublisherFactoryRequired = sterrors.New("stepflow: publisher factory is required")
	ErrUnknownPublisher         = sterrors.New("stepflow: unknown publisher")
	ErrPayloadRequired          = sterrors.New("stepflow: event payload is required")
	ErrFactoryClosed            = sterrors.New("stepflow: publisher factory is closed")
)

// ValidationError reports an envelope rejected before any publish attempt.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("stepflow: invalid step event: %v", e.Err)
	}
	return fmt.Sprintf("stepflow: invalid step event %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError returns nil when err is nil.
func NewValidationError(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Err: err}
}

// ConfigValidationError wraps every problem found by Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("stepflow: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
