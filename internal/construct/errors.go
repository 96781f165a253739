package construct

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates an id that does not resolve in any attached
	// store, raised only by operations that require the referent.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeNotAttached indicates an operation against a store that is not
	// part of the federation.
	ErrCodeNotAttached ErrorCode = "NOT_ATTACHED"

	// ErrCodeConstraintConflict indicates functor derivation conflicts.
	ErrCodeConstraintConflict ErrorCode = "CONSTRAINT_CONFLICT"

	// ErrCodePreconditionNotMet indicates a required builder field is unset.
	ErrCodePreconditionNotMet ErrorCode = "PRECONDITION_NOT_MET"
)

// Error is a coded engine error. Details carries every individual problem when
// several were aggregated into one failure.
type Error struct {
	Code    ErrorCode
	Message string
	ID      string
	StoreID string
	Details []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.ID != "" {
		fmt.Fprintf(&b, " (id=%s)", e.ID)
	}
	if e.StoreID != "" {
		fmt.Fprintf(&b, " (store=%s)", e.StoreID)
	}
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	return b.String()
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsNotFound reports whether err carries ErrCodeNotFound.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsNotAttached reports whether err carries ErrCodeNotAttached.
func IsNotAttached(err error) bool { return hasCode(err, ErrCodeNotAttached) }

// IsConflict reports whether err carries ErrCodeConstraintConflict.
func IsConflict(err error) bool { return hasCode(err, ErrCodeConstraintConflict) }

// IsPrecondition reports whether err carries ErrCodePreconditionNotMet.
func IsPrecondition(err error) bool { return hasCode(err, ErrCodePreconditionNotMet) }

// NewNotFoundError creates an Error for an id that resolved nowhere.
func NewNotFoundError(t Type, id string) *Error {
	what := "construct"
	if t != "" {
		what = string(t)
	}
	return &Error{
		Code:    ErrCodeNotFound,
		Message: what + " not found in any attached store",
		ID:      id,
	}
}

// NewNotAttachedError creates an Error for an unregistered store.
func NewNotAttachedError(storeID string) *Error {
	return &Error{
		Code:    ErrCodeNotAttached,
		Message: "store is not attached",
		StoreID: storeID,
	}
}

// NewConflictError aggregates derivation conflicts.
func NewConflictError(conflicts []string) *Error {
	return &Error{
		Code:    ErrCodeConstraintConflict,
		Message: fmt.Sprintf("%d functor constraint conflict(s)", len(conflicts)),
		Details: conflicts,
	}
}

// NewPreconditionError aggregates unmet builder preconditions.
func NewPreconditionError(problems []string) *Error {
	return &Error{
		Code:    ErrCodePreconditionNotMet,
		Message: "functor builder is not ready",
		Details: problems,
	}
}
