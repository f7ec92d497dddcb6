// Package apperror defines the closed set of error kinds MediBrief handlers
// return, and the single place that maps a kind to an HTTP status and JSON
// envelope.
package apperror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind is a closed sum type: every handler error is one of these.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindGone            Kind = "gone"
	KindRateLimited     Kind = "rate_limited"
	KindInternal        Kind = "internal"
	KindUnavailable     Kind = "unavailable"
)

var statusByKind = map[Kind]int{
	KindValidation:      http.StatusBadRequest,
	KindUnauthenticated: http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusConflict,
	KindGone:            http.StatusGone,
	KindRateLimited:     http.StatusTooManyRequests,
	KindInternal:        http.StatusInternalServerError,
	KindUnavailable:     http.StatusServiceUnavailable,
}

// StatusFor returns the HTTP status code for a Kind, defaulting to 500 for
// an unrecognized value (which should never occur given the closed set).
func StatusFor(k Kind) int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the application error type carried through service and handler
// layers. It implements the error interface so it can be returned and
// wrapped normally.
type Error struct {
	Kind    Kind         `json:"-"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind.
func New(k Kind, message string) *Error {
	return &Error{Kind: k, Message: message}
}

// Wrap creates an Error of the given kind that wraps an underlying cause.
// The cause is never exposed to the client; it is for logging only.
func Wrap(k Kind, message string, cause error) *Error {
	return &Error{Kind: k, Message: message, cause: cause}
}

// Validation creates a validation Error carrying field-level messages.
func Validation(message string, fields []FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// As extracts an *Error from any error, returning a generic internal Error
// if err does not wrap one. Use this at the handler boundary so every
// response path goes through the same envelope.
func As(err error) *Error {
	var appErr *Error
	if errorsAs(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindInternal, Message: "internal error", cause: err}
}

func errorsAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// envelope is the wire shape of an error response body.
type envelope struct {
	Error  string       `json:"error"`
	Message string       `json:"message"`
	Fields []FieldError `json:"fields,omitempty"`
}

// Respond writes err to w as a JSON error envelope, choosing the status
// code from err's Kind.
func Respond(w http.ResponseWriter, err error) {
	appErr := As(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(appErr.Kind))
	_ = json.NewEncoder(w).Encode(envelope{
		Error:   string(appErr.Kind),
		Message: appErr.Message,
		Fields:  appErr.Fields,
	})
}
