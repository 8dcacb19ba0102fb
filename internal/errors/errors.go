package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// StaleSession indicates a session of the requested code kind is already open
	StaleSession ErrorCode = "STALE_SESSION"
	// RewriteFailed indicates a quick fix or refactoring failed while mutating a rewriter
	RewriteFailed ErrorCode = "REWRITE_FAILED"
	// CommitFailed indicates the host rejected the content of a session commit
	CommitFailed ErrorCode = "COMMIT_FAILED"
	// IneligibleFix indicates a fix is no longer applicable to a result
	IneligibleFix ErrorCode = "INELIGIBLE_FIX"
	// UnsupportedCodeKind indicates a code kind the rewriting manager cannot check out
	UnsupportedCodeKind ErrorCode = "UNSUPPORTED_CODE_KIND"
	// StaleTokenStream indicates host content changed since the token stream was produced
	StaleTokenStream ErrorCode = "STALE_TOKEN_STREAM"
	// SessionClosed indicates an operation on a session that is no longer pending
	SessionClosed ErrorCode = "SESSION_CLOSED"
	// ParserNotReady indicates the parser state is not ready
	ParserNotReady ErrorCode = "PARSER_NOT_READY"
	// TargetNotFound indicates no declaration could be resolved
	TargetNotFound ErrorCode = "TARGET_NOT_FOUND"
	// InvalidName indicates a rejected identifier
	InvalidName ErrorCode = "INVALID_NAME"
	// ModuleNotFound indicates the host has no such component
	ModuleNotFound ErrorCode = "MODULE_NOT_FOUND"
	// InvalidEdit indicates an out-of-range or overlapping token edit
	InvalidEdit ErrorCode = "INVALID_EDIT"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// DuckError represents an error with code, message, and suggestions
type DuckError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a DuckError with the default suggested fixes for its code.
func New(code ErrorCode, message string, cause error) *DuckError {
	return NewDuckError(code, message, cause, GetSuggestedFixes(code))
}

// Newf creates a DuckError with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *DuckError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// NewDuckError creates a new DuckError
func NewDuckError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *DuckError {
	return &DuckError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Error implements the error interface
func (e *DuckError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DuckError) Unwrap() error {
	return e.cause
}

// Is matches any DuckError carrying the same code, so sentinel comparisons
// work with errors.Is(err, errors.Sentinel(code)).
func (e *DuckError) Is(target error) bool {
	var other *DuckError
	if !stderrors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithDetails adds details to the error
func (e *DuckError) WithDetails(details interface{}) *DuckError {
	e.Details = details
	return e
}

// Sentinel returns a bare error for code, meant for errors.Is checks.
func Sentinel(code ErrorCode) error {
	return &DuckError{Code: code}
}

// CodeOf returns the code of the first DuckError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var de *DuckError
	if stderrors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// HasCode reports whether err's chain contains a DuckError with code.
func HasCode(err error, code ErrorCode) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	StaleSession: {
		{
			Type:        RunCommand,
			Command:     "ducklint history",
			Safe:        true,
			Description: "Inspect the last committed sessions before retrying",
		},
	},
	StaleTokenStream: {
		{
			Type:        RunCommand,
			Command:     "ducklint inspect",
			Safe:        true,
			Description: "Re-parse the project and recompute results",
		},
	},
	ParserNotReady: {
		{
			Type:        RunCommand,
			Command:     "ducklint inspect",
			Safe:        true,
			Description: "Wait for the parser to finish and retry",
		},
	},
	CommitFailed: {
		{
			Type:        RunCommand,
			Command:     "ducklint history --limit 5",
			Safe:        true,
			Description: "Check which sessions were committed",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
