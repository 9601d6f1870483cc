// Package errors defines application errors and the central error handler.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error codes reported in logs and metrics.
const (
	CodeValidation  = "E100"
	CodeDatabase    = "E200"
	CodeExternalAPI = "E300"
	CodeState       = "E400"
	CodeBusy        = "E410"
	CodePanic       = "E900"
)

// AppError carries an operator-facing message and the catalog key of the user-facing one.
type AppError struct {
	Code        string
	Message     string
	UserMessage string // i18n key
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// NewValidationError rejects malformed user input such as a bad wallet or amount.
func NewValidationError(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, UserMessage: "error.validation", Severity: SeverityLow}
}

func NewDatabaseError(cause error) *AppError {
	return &AppError{
		Code:        CodeDatabase,
		Message:     "database: " + causeText(cause),
		UserMessage: "error.temporary",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewExternalAPIError wraps a failure of Telegram, Redis or another remote dependency.
func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        CodeExternalAPI,
		Message:     fmt.Sprintf("%s: %s", apiName, causeText(cause)),
		UserMessage: "error.unavailable",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewStateError reports an operation rejected by the withdrawal state machine.
func NewStateError(msg string) *AppError {
	return &AppError{Code: CodeState, Message: msg, UserMessage: "error.state", Severity: SeverityMedium}
}

// NewBusyError reports that a concurrent operation holds the per-user lock.
func NewBusyError(cause error) *AppError {
	return &AppError{
		Code:        CodeBusy,
		Message:     "user state locked",
		UserMessage: "error.busy",
		Severity:    SeverityLow,
		Retryable:   true,
		cause:       cause,
	}
}

// NewPanicError wraps a value recovered from a panicking handler.
func NewPanicError(recovered any) *AppError {
	return &AppError{
		Code:        CodePanic,
		Message:     fmt.Sprintf("panic recovered: %v", recovered),
		UserMessage: GenericMessage,
		Severity:    SeverityCritical,
	}
}

func causeText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
