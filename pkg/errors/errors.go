package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Data errors (1xxx)
	ErrCodeStructural    ErrorCode = "TSE1001"
	ErrCodeRowValidation ErrorCode = "TSE1002"
	ErrCodeJoinMismatch  ErrorCode = "TSE1003"

	// Collaborator errors (2xxx)
	ErrCodeCollaborator ErrorCode = "TSE2001"
	ErrCodeNoData       ErrorCode = "TSE2002"

	// Configuration errors (3xxx)
	ErrCodeConfigInvalid ErrorCode = "TSE3001"
	ErrCodeConfigMissing ErrorCode = "TSE3002"

	// File system errors (4xxx)
	ErrCodeFileOperation ErrorCode = "TSE4001"
	ErrCodeFileNotFound  ErrorCode = "TSE4002"

	// Warehouse errors (5xxx)
	ErrCodeSQLExecution     ErrorCode = "TSE5001"
	ErrCodeConnectionFailed ErrorCode = "TSE5002"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "TSE9001"
	ErrCodeTimeout            ErrorCode = "TSE9002"
	ErrCodeResourceExhausted  ErrorCode = "TSE9003"
	ErrCodeServiceUnavailable ErrorCode = "TSE9004"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run aborted, nothing published
	SeverityError    ErrorSeverity = "ERROR"    // One unit of work failed, run continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Recovered locally
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// Common error constructors

// StructuralError reports a source whose shape makes the run impossible.
func StructuralError(source, message string) *AppError {
	return New(ErrCodeStructural, fmt.Sprintf("%s: %s", source, message)).
		WithContext("source", source).
		WithSeverity(SeverityCritical)
}

// MissingColumnError reports a required column absent from a source header.
func MissingColumnError(source, column string) *AppError {
	return StructuralError(source, fmt.Sprintf("required column %q is missing", column)).
		WithContext("column", column).
		WithSuggestions(
			"Check the header row of the source file",
			"Verify the file is comma delimited",
		)
}

// CollaboratorError reports a failed unit of work of an external collaborator.
func CollaboratorError(unit string, cause error) *AppError {
	return Wrap(cause, ErrCodeCollaborator, fmt.Sprintf("%s failed", unit)).
		WithContext("unit", unit).
		AsRecoverable()
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'ticketstar init' to regenerate the configuration",
		)
}

// FileError wraps a file system failure.
func FileError(path string, cause error) *AppError {
	code := ErrCodeFileOperation
	if errors.Is(cause, fs.ErrNotExist) {
		code = ErrCodeFileNotFound
	}
	return Wrap(cause, code, fmt.Sprintf("file operation failed on %s", path)).
		WithContext("path", path)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	lower := strings.ToLower(message + " " + fmt.Sprint(cause))
	if strings.Contains(lower, "permission") || strings.Contains(lower, "access denied") {
		_ = err.WithSuggestions(
			"Check the warehouse role privileges",
			"Verify the target schema exists",
		)
	} else if strings.Contains(lower, "timeout") {
		err.Code = ErrCodeTimeout
		_ = err.WithSuggestions("Increase warehouse.timeout")
	}

	return err
}

// IsStructural reports whether err aborts a run.
func IsStructural(err error) bool {
	return GetErrorCode(err) == ErrCodeStructural
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
