// Package pipelineerr defines the error-kind taxonomy used across the
// pipeline execution engine and the HTTP/CLI status mapping for each kind.
package pipelineerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the error categories the engine can surface.
type Kind string

const (
	KindCompositionParse      Kind = "CompositionParse"
	KindCompositionValidation Kind = "CompositionValidation"
	KindSecretUnresolved      Kind = "SecretUnresolved"
	KindUnknownVariable       Kind = "UnknownVariable"
	KindFunctionFailure       Kind = "FunctionFailure"
	KindAdapterFailure        Kind = "AdapterFailure"
	KindPipelineTooDeep       Kind = "PipelineTooDeep"
	KindPipelineTimeout       Kind = "PipelineTimeout"
	KindControlPlaneConflict Kind = "ControlPlaneConflict"
	KindNotFound              Kind = "NotFound"
	KindConnectivity          Kind = "Connectivity"
	KindRateLimited           Kind = "RateLimited"
)

// Error is the typed error carried through the engine. It wraps an
// underlying cause and tags it with a Kind for status mapping and
// JSON-shape rendering at the HTTP boundary.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// New builds an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error kind, usable in switch statements by callers.
func (e *Error) Kind() Kind { return e.kind }

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; the zero Kind otherwise.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.kind, true
	}
	return "", false
}

// HTTPStatus maps a Kind to the status code spec'd in the error handling
// design. Kinds with no request-path disposition (fatal-at-load/startup
// kinds) map to 500 as a fallback for any caller that still wants a
// status for them.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAdapterFailure:
		return http.StatusBadGateway
	case KindPipelineTooDeep:
		return http.StatusInternalServerError
	case KindPipelineTimeout:
		return http.StatusGatewayTimeout
	case KindControlPlaneConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindCompositionParse, KindCompositionValidation, KindSecretUnresolved:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// CLIExitCode maps a Kind to the exit code the CLI surface uses.
func (k Kind) CLIExitCode() int {
	switch k {
	case KindNotFound:
		return 2
	case KindConnectivity, KindCompositionParse, KindCompositionValidation:
		return 1
	default:
		return 1
	}
}

// JSON is the wire shape for runtime failures: {"error": {"code", "message"}}.
type JSON struct {
	ErrorBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ToJSON renders err (ideally an *Error) into the user-visible envelope.
func ToJSON(err error) JSON {
	var out JSON
	kind, ok := KindOf(err)
	if !ok {
		out.ErrorBody.Code = "Internal"
		out.ErrorBody.Message = err.Error()
		return out
	}
	out.ErrorBody.Code = string(kind)
	out.ErrorBody.Message = err.Error()
	return out
}

// ValidationErrors aggregates every diagnostic produced while validating a
// composition, in contrast to the donor's fail-fast Finalize()/Validate()
// pattern: spec's Testable Property #1 requires that k independent errors
// yield exactly k reported diagnostics, so this collector never short
// circuits.
type ValidationErrors struct {
	Diagnostics []Diagnostic
}

// Diagnostic is a single validation failure with enough context for the
// user-visible report spec.md §7 requires: path, field, and reason.
type Diagnostic struct {
	Path   string
	Field  string
	Reason string
}

func (d Diagnostic) String() string {
	if d.Field != "" {
		return fmt.Sprintf("%s.%s: %s", d.Path, d.Field, d.Reason)
	}
	return fmt.Sprintf("%s: %s", d.Path, d.Reason)
}

// Add appends one diagnostic. It never stops collection.
func (v *ValidationErrors) Add(path, field, reason string) {
	v.Diagnostics = append(v.Diagnostics, Diagnostic{Path: path, Field: field, Reason: reason})
}

// Addf appends one diagnostic with a formatted reason.
func (v *ValidationErrors) Addf(path, field, format string, args ...any) {
	v.Add(path, field, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any diagnostic was collected.
func (v *ValidationErrors) HasErrors() bool { return len(v.Diagnostics) > 0 }

// Err converts the collected diagnostics into a single *Error of kind
// CompositionValidation, or nil if none were collected.
func (v *ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}
	msgs := make([]string, len(v.Diagnostics))
	for i, d := range v.Diagnostics {
		msgs[i] = d.String()
	}
	return &Error{
		kind:    KindCompositionValidation,
		message: fmt.Sprintf("%d validation error(s)", len(v.Diagnostics)),
		cause:   errors.New(joinLines(msgs)),
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "; "
		}
		out += l
	}
	return out
}
