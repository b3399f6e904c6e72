// Package fault defines the error taxonomy shared by the ledger engine.
//
// Every error that crosses a component boundary is a *Error carrying a Code.
// Callers classify errors with the Is* predicates, which use errors.As and
// therefore see through fmt.Errorf("...: %w") wrapping.
//
// Classification:
//   - VALIDATION: bad input (amount, address, unknown owner); nothing was written
//   - CONFLICT: input contradicts stored state (address/mint mismatch, reused signature)
//   - DUPLICATE_SIGNATURE: a transaction record already exists for the signature
//   - ALREADY_TERMINAL: completion of a record that is no longer pending
//   - INSUFFICIENT_FUNDS: expected business condition, not a system fault
//   - INVALID_STATE: an invariant was about to be violated; the unit aborted
//   - TRANSIENT: storage contention or lock timeout; safe to retry with the same inputs
//   - UNAUTHORIZED: the Authorization Gate denied the initiating program
//   - NOT_FOUND: lookup of a record that does not exist
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes ledger errors.
type Code string

const (
	CodeValidation         Code = "VALIDATION"
	CodeConflict           Code = "CONFLICT"
	CodeDuplicateSignature Code = "DUPLICATE_SIGNATURE"
	CodeAlreadyTerminal    Code = "ALREADY_TERMINAL"
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeTransient          Code = "TRANSIENT"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeNotFound           Code = "NOT_FOUND"
)

// Error is a classified ledger error with optional context.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Owner identifies the affected vault owner, if any.
	Owner string

	// Signature identifies the affected on-chain transaction, if any.
	Signature string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Owner != "" && e.Signature != "":
		msg = fmt.Sprintf("%s (owner=%s, signature=%s)", msg, e.Owner, e.Signature)
	case e.Owner != "":
		msg = fmt.Sprintf("%s (owner=%s)", msg, e.Owner)
	case e.Signature != "":
		msg = fmt.Sprintf("%s (signature=%s)", msg, e.Signature)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithOwner returns a copy of e annotated with the vault owner.
func (e *Error) WithOwner(owner string) *Error {
	c := *e
	c.Owner = owner
	return &c
}

// WithSignature returns a copy of e annotated with the transaction signature.
func (e *Error) WithSignature(signature string) *Error {
	c := *e
	c.Signature = signature
	return &c
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

func newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a VALIDATION error.
func Validation(format string, args ...any) *Error {
	return newf(CodeValidation, format, args...)
}

// Conflict creates a CONFLICT error.
func Conflict(format string, args ...any) *Error {
	return newf(CodeConflict, format, args...)
}

// DuplicateSignature creates a DUPLICATE_SIGNATURE error for signature.
func DuplicateSignature(signature string) *Error {
	return &Error{
		Code:      CodeDuplicateSignature,
		Message:   "transaction signature already registered",
		Signature: signature,
	}
}

// AlreadyTerminal creates an ALREADY_TERMINAL error for a record in status.
func AlreadyTerminal(signature, status string) *Error {
	return &Error{
		Code:      CodeAlreadyTerminal,
		Message:   fmt.Sprintf("transaction already %s", status),
		Signature: signature,
	}
}

// InsufficientFunds creates an INSUFFICIENT_FUNDS error.
func InsufficientFunds(owner string, requested, available int64) *Error {
	return &Error{
		Code:    CodeInsufficientFunds,
		Message: fmt.Sprintf("requested %d exceeds available %d", requested, available),
		Owner:   owner,
	}
}

// InvalidState creates an INVALID_STATE error.
func InvalidState(format string, args ...any) *Error {
	return newf(CodeInvalidState, format, args...)
}

// Transient creates a TRANSIENT error wrapping cause.
func Transient(message string, cause error) *Error {
	return &Error{Code: CodeTransient, Message: message, Err: cause}
}

// Unauthorized creates an UNAUTHORIZED error for program.
func Unauthorized(program string) *Error {
	return &Error{
		Code:    CodeUnauthorized,
		Message: fmt.Sprintf("program %s is not authorized", program),
	}
}

// NotFound creates a NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return newf(CodeNotFound, format, args...)
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsValidation reports whether err is a VALIDATION error.
func IsValidation(err error) bool { return Is(err, CodeValidation) }

// IsConflict reports whether err is a CONFLICT error.
func IsConflict(err error) bool { return Is(err, CodeConflict) }

// IsDuplicateSignature reports whether err is a DUPLICATE_SIGNATURE error.
func IsDuplicateSignature(err error) bool { return Is(err, CodeDuplicateSignature) }

// IsAlreadyTerminal reports whether err is an ALREADY_TERMINAL error.
func IsAlreadyTerminal(err error) bool { return Is(err, CodeAlreadyTerminal) }

// IsInsufficientFunds reports whether err is an INSUFFICIENT_FUNDS error.
func IsInsufficientFunds(err error) bool { return Is(err, CodeInsufficientFunds) }

// IsInvalidState reports whether err is an INVALID_STATE error.
func IsInvalidState(err error) bool { return Is(err, CodeInvalidState) }

// IsTransient reports whether err is a TRANSIENT error.
func IsTransient(err error) bool { return Is(err, CodeTransient) }

// IsUnauthorized reports whether err is an UNAUTHORIZED error.
func IsUnauthorized(err error) bool { return Is(err, CodeUnauthorized) }

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return Is(err, CodeNotFound) }
