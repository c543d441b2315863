// Package shared holds the error kinds, events and value objects the
// attendance domain and its adapters agree on. It imports only the
// standard library.
package shared

import (
	"errors"
	"fmt"
)

// Kinds. Match them with errors.Is or the Is* helpers below.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmptyValue       = errors.New("empty value")
	ErrNegativeValue    = errors.New("negative value")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrLockUnavailable  = errors.New("lock unavailable")
)

// DomainError is a failure of one operation, tagged with its kind.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DomainError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewDomainError returns an error of the given kind.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError is NewDomainError with a cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	e := NewDomainError(domain, op, kind, message)
	e.Err = err
	return e
}

// StoreError tags an adapter failure as ErrStoreUnavailable.
// Errors that already are a DomainError pass through.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return WrapError("store", op, ErrStoreUnavailable, "record store request failed", err)
}

var (
	ErrCourseNotFound    = NewDomainError("attendance", "FindCourse", ErrNotFound, "course not found")
	ErrNoCourses         = NewDomainError("attendance", "ListCourses", ErrNotFound, "no courses registered")
	ErrDuplicateNickname = NewDomainError("attendance", "AddCourse", ErrAlreadyExists, "course nickname already exists")
	ErrInvalidNickname   = NewDomainError("attendance", "AddCourse", ErrInvalidInput, "invalid course nickname")
	ErrNegativeCount     = NewDomainError("attendance", "SetManual", ErrNegativeValue, "attendance counts cannot be negative")

	ErrUserNotFound      = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrInvalidTelegramID = NewDomainError("user", "Validate", ErrInvalidID, "invalid Telegram ID")
	ErrPhoneNotVerified  = NewDomainError("user", "Verify", ErrUnauthorized, "phone number not verified")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsValidation reports bad input: ids, empty or negative values, malformed nicknames.
func IsValidation(err error) bool {
	for _, kind := range []error{ErrInvalidID, ErrInvalidInput, ErrEmptyValue, ErrNegativeValue} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func IsStoreUnavailable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }
