package zenedge

import (
	"errors"
	"fmt"
)

// ErrorCode names the error kinds raised by the core (spec.md §7).
// Names are semantic, not Go types — callers should compare with
// errors.Is against an *Error carrying the same Code, or IsCode
// against a wrapped *Error.
type ErrorCode string

const (
	ErrCodeOutOfMemory             ErrorCode = "out of memory"
	ErrCodeBudgetExceededCPU       ErrorCode = "cpu budget exceeded"
	ErrCodeBudgetExceededMemory    ErrorCode = "memory budget exceeded"
	ErrCodeSafeModeDenied          ErrorCode = "safe mode denied"
	ErrCodeAdmissionRejectedMemory ErrorCode = "admission rejected: memory"
	ErrCodeAdmissionRejectedNoRes  ErrorCode = "admission rejected: no resources"
	ErrCodeAdmissionRejectedCPU    ErrorCode = "admission rejected: cpu"
	ErrCodeAdmissionRejectedPrio   ErrorCode = "admission rejected: priority"
	ErrCodeRingFull                ErrorCode = "ring full"
	ErrCodeRingEmpty               ErrorCode = "ring empty"
	ErrCodeTimeout                 ErrorCode = "timeout"
	ErrCodeBlobInvalid             ErrorCode = "blob invalid"
	ErrCodeDoubleFree              ErrorCode = "double free"
	ErrCodeInvalidFree             ErrorCode = "invalid free"
)

// Error is a structured ZENEDGE error carrying job/step context
// alongside its code (spec.md §7: "errors are values at every
// boundary — no unwinding").
type Error struct {
	Op     string // operation that failed (e.g. "AllocPage", "Admit")
	JobID  uint32 // 0 if not applicable
	StepID uint32 // 0 if not applicable
	Code   ErrorCode
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.JobID != 0 {
		parts = append(parts, fmt.Sprintf("job=%d", e.JobID))
	}
	if e.StepID != 0 {
		parts = append(parts, fmt.Sprintf("step=%d", e.StepID))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("zenedge: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("zenedge: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support by comparing error codes.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// NewError creates a structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewJobError creates an error scoped to a job.
func NewJobError(op string, jobID uint32, code ErrorCode, msg string) *Error {
	return &Error{Op: op, JobID: jobID, Code: code, Msg: msg}
}

// NewStepError creates an error scoped to a job's step.
func NewStepError(op string, jobID, stepID uint32, code ErrorCode, msg string) *Error {
	return &Error{Op: op, JobID: jobID, StepID: stepID, Code: code, Msg: msg}
}

// WrapError wraps an existing error with ZENEDGE op context, carrying
// the inner *Error's code forward if it is already structured.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ze, ok := inner.(*Error); ok {
		return &Error{Op: op, JobID: ze.JobID, StepID: ze.StepID, Code: ze.Code, Msg: ze.Msg, Inner: ze.Inner}
	}
	return &Error{Op: op, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ze *Error
	if errors.As(err, &ze) {
		return ze.Code == code
	}
	return false
}
