package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category an error belongs to
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeAI         ErrorType = "ai"
	ErrorTypeDevice     ErrorType = "device"
	ErrorTypeWorkflow   ErrorType = "workflow"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError is the structured error carried through every layer.
// Message is safe to show to an end user; Cause holds the technical detail.
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair that is emitted when the error is logged
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error codes surfaced to callers
const (
	ErrCodeFileMissing           = "FILE_MISSING"
	ErrCodeRenderFailure         = "RENDER_FAILURE"
	ErrCodeServiceFailure        = "SERVICE_FAILURE"
	ErrCodeMalformedResponse     = "MALFORMED_RESPONSE"
	ErrCodeMicrophoneUnavailable = "MICROPHONE_UNAVAILABLE"

	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeAnswerRequired    = "ANSWER_REQUIRED"
	ErrCodeRecordingActive   = "RECORDING_ACTIVE"
	ErrCodeRequestInFlight   = "REQUEST_IN_FLIGHT"
	ErrCodeRequestCanceled   = "REQUEST_CANCELED"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"

	ErrCodeFileNotReadable = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat   = "INVALID_FORMAT"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeMissingAPIKey   = "MISSING_API_KEY"
	ErrCodeInvalidConfig   = "INVALID_CONFIG"
)

// NewFileMissingError reports that no usable resume file was supplied
func NewFileMissingError(message string) *AppError {
	return newAppError(ErrorTypeValidation, ErrCodeFileMissing, message, nil)
}

// NewRenderError reports that a PDF could not be parsed or rasterized
func NewRenderError(message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, ErrCodeRenderFailure, message, cause)
}

// NewServiceError reports a failed or unavailable analysis call
func NewServiceError(message string, cause error) *AppError {
	return newAppError(ErrorTypeAI, ErrCodeServiceFailure, message, cause)
}

// NewMalformedResponseError reports model output that could not be parsed
func NewMalformedResponseError(message string, cause error) *AppError {
	return newAppError(ErrorTypeAI, ErrCodeMalformedResponse, message, cause)
}

// NewMicrophoneError reports that speech capture could not be started
func NewMicrophoneError(message string, cause error) *AppError {
	return newAppError(ErrorTypeDevice, ErrCodeMicrophoneUnavailable, message, cause)
}

// NewWorkflowError reports an event the current workflow state does not accept
func NewWorkflowError(code, message string) *AppError {
	return newAppError(ErrorTypeWorkflow, code, message, nil)
}

func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// AsAppError finds the first AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none
func CodeOf(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries an AppError with the given code
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// UserMessage returns the text that may be displayed to an end user.
// Errors that are not AppErrors fall back to fallback.
func UserMessage(err error, fallback string) string {
	if appErr, ok := AsAppError(err); ok && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
