package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is the caller's fault: bad input. Workflow state is left unchanged.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// Domain error codes.
const (
	CodeInvalidState           = "invalid_state"
	CodeNotUnderReview         = "not_under_review"
	CodeNotOwner               = "not_owner"
	CodeConcurrentModification = "concurrent_modification"
)

// DomainError reports a violated state-machine precondition. It is never auto-corrected.
type DomainError struct {
	Code string
	Msg  string
}

func NewDomainError(code, msg string) *DomainError {
	return &DomainError{Code: code, Msg: msg}
}

func (err DomainError) Error() string {
	return err.Msg
}

// ErrConcurrentModification is returned when a proof changed between read and write.
var ErrConcurrentModification = NewDomainError(
	CodeConcurrentModification, "the proof was modified by someone else, reload it and try again")

// AsDomainError returns the DomainError at the root of err, if any.
func AsDomainError(err error) (*DomainError, bool) {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr, true
	}
	return nil, false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
