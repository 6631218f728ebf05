package domain

import (
	"context"
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrCancelled    = fmt.Errorf("operation cancelled")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrNotFound     = fmt.Errorf("not found")
	ErrClosed       = fmt.Errorf("closed")
	ErrRateLimit    = fmt.Errorf("rate limit exceeded")
	ErrCircuitOpen  = fmt.Errorf("circuit breaker open")
	ErrConfigLoad   = fmt.Errorf("failed to load configuration")
	ErrTickPanic    = fmt.Errorf("timer callback panicked")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Registry.Submit")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "registry", "pages"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// IsCancelled reports whether err is a cancellation outcome. A context
// cancellation observed by an operation counts as one.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// ErrorCode is a machine-parseable error category shown in the UI and logs.
type ErrorCode string

const (
	CodeUnknown      ErrorCode = "UNKNOWN"
	CodeCancelled    ErrorCode = "CANCELLED"
	CodeSuperseded   ErrorCode = "SUPERSEDED"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeTimeout      ErrorCode = "TIMEOUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodePageNotFound ErrorCode = "PAGE_NOT_FOUND"
	CodeClosed       ErrorCode = "CLOSED"
	CodeRateLimit    ErrorCode = "RATE_LIMIT"
	CodeCircuitOpen  ErrorCode = "CIRCUIT_OPEN"
	CodeConfigLoad   ErrorCode = "CONFIG_LOAD"
	CodeTickPanic    ErrorCode = "TICK_PANIC"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrCancelled:    CodeCancelled,
	ErrInvalidInput: CodeInvalidInput,
	ErrTimeout:      CodeTimeout,
	ErrNotFound:     CodeNotFound,
	ErrClosed:       CodeClosed,
	ErrRateLimit:    CodeRateLimit,
	ErrCircuitOpen:  CodeCircuitOpen,
	ErrConfigLoad:   CodeConfigLoad,
	ErrTickPanic:    CodeTickPanic,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrCancelled: {
		"registry": CodeSuperseded,
	},
	ErrNotFound: {
		"pages": CodePageNotFound,
	},
}

// ErrorCodeOf returns the ErrorCode for err, walking wrapped errors.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		return de.Code()
	}

	if errors.Is(err, context.Canceled) {
		return CodeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(e.Err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
