// Package apperr defines the error taxonomy shared by stores, policies,
// and handlers, and maps each kind to an HTTP response.
//
// Stores and policies return *Error values; handlers pass whatever they
// get to Render, which picks the status code and writes the JSON body.
// Unknown errors render as 500 without leaking their message.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Kind classifies an error for HTTP mapping.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Conflict
	CapacityExceeded
	InvalidState
	Validation
	Unauthenticated
	Forbidden
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, not exposed to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with a client-safe message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf builds a classified error with a formatted client-safe message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a classified error. The cause is logged but
// never sent to the client.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the Kind from err, or Internal for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Is reports whether err is classified with the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// statusOf maps a kind to its HTTP status code.
func statusOf(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Conflict, CapacityExceeded:
		return http.StatusConflict
	case InvalidState:
		return http.StatusUnprocessableEntity
	case Validation:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// codeOf maps a kind to the machine-readable code in the JSON body.
func codeOf(kind Kind) string {
	switch kind {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case CapacityExceeded:
		return "capacity_exceeded"
	case InvalidState:
		return "invalid_state"
	case Validation:
		return "validation_failed"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

type body struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Render writes err as a JSON error response. Unclassified errors are
// logged and rendered as a generic 500.
func Render(w http.ResponseWriter, log *zap.Logger, err error) {
	var ae *Error
	if !errors.As(err, &ae) {
		if log != nil {
			log.Error("unhandled error", zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, body{
			Error:   "internal",
			Message: "internal server error",
		})
		return
	}

	if ae.Kind == Internal && log != nil {
		log.Error("internal error", zap.Error(ae))
	}

	msg := ae.Message
	if ae.Kind == Internal {
		msg = "internal server error"
	}
	writeJSON(w, statusOf(ae.Kind), body{Error: codeOf(ae.Kind), Message: msg})
}

// RenderFields writes a 400 validation response with per-field messages.
func RenderFields(w http.ResponseWriter, msg string, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, body{
		Error:   "validation_failed",
		Message: msg,
		Fields:  fields,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
