package apperr

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// Kind classifies an operation failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindDuplicateRelationship
	KindNotAuthorized
	KindNotFound
	KindStore
)

// Error is the failure type every engine operation returns. Callers
// branch on Kind; Msg is safe to show to the end user.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or missing input.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// DuplicateRelationship reports that a row already connects the pair.
func DuplicateRelationship(msg string) *Error {
	return &Error{Kind: KindDuplicateRelationship, Msg: msg}
}

// NotAuthorized reports that the actor is not a legitimate party to the
// record being mutated.
func NotAuthorized(msg string) *Error {
	return &Error{Kind: KindNotAuthorized, Msg: msg}
}

// NotFound reports that an id did not resolve.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Store wraps an underlying persistence failure. The user-visible
// message is deliberately generic.
func Store(err error) *Error {
	return &Error{Kind: KindStore, Msg: "storage error", Err: err}
}

// FromStore classifies an error bubbling out of GORM. Record-not-found
// becomes NotFound with the given message; everything else is a Store
// failure.
func FromStore(err error, notFound string) *Error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(notFound)
	}
	return Store(err)
}

// IsUniqueViolation detects duplicate-key errors from common database
// drivers. GORM does not expose a portable sentinel for these.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}

// KindOf extracts the Kind from an error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code the REST layer responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindDuplicateRelationship:
		return http.StatusConflict
	case KindNotAuthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the short message rendered to the client.
// Authorization and validation failures surface their own text; store
// and unknown failures get a generic retry suggestion.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStore && e.Kind != KindUnknown {
		return e.Msg
	}
	return "something went wrong, please try again"
}
