package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller. Kinds other than KindInternal
// are business outcomes; none of them is retried inside this package.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindCapacity
	KindTimeout
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCapacity:
		return "capacity"
	case KindTimeout:
		return "timeout"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Machine readable reasons carried in Error.Code.
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeRestaurantNotFound    = "RESTAURANT_NOT_FOUND"
	CodeRestaurantInactive    = "RESTAURANT_INACTIVE"
	CodeOutsideOperatingHours = "OUTSIDE_OPERATING_HOURS"
	CodeTooSoon               = "TOO_SOON"
	CodeTooFarAhead           = "TOO_FAR_AHEAD"
	CodeOutsideDailyWindow    = "OUTSIDE_DAILY_WINDOW"
	CodePartyTooLarge         = "PARTY_TOO_LARGE"
	CodeDeadlinePassed        = "DEADLINE_PASSED"
	CodeReservationNotFound   = "RESERVATION_NOT_FOUND"
	CodeRestaurantFullyBooked = "RESTAURANT_FULLY_BOOKED"
	CodeNoSuitableCapacity    = "NO_SUITABLE_CAPACITY"
	CodeNoSuitableTables      = "NO_SUITABLE_TABLES"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeValidationTimeout     = "VALIDATION_TIMEOUT"
	CodeTableSearchTimeout    = "TABLE_SEARCH_TIMEOUT"
	CodeBusy                  = "BUSY"
	CodeInternal              = "INTERNAL"
)

// Error is the failure type returned by every command.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and, when set, Code. It lets callers
// write errors.Is(err, service.ErrCapacity).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Kind-only targets for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrCapacity   = &Error{Kind: KindCapacity}
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrInternal   = &Error{Kind: KindInternal}
)

func validationError(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func notFoundError(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func capacityError(code, msg string) *Error {
	return &Error{Kind: KindCapacity, Code: code, Message: msg}
}

func timeoutError(code, msg string, err error) *Error {
	return &Error{Kind: KindTimeout, Code: code, Message: msg, Err: err}
}

func conflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Code: CodeInvalidTransition, Message: msg}
}

// internalError wraps err unless it already carries a classification.
func internalError(msg string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Err: err}
}

// KindOf returns the classification of err, KindInternal when err is not
// an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
