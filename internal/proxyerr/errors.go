// Package proxyerr defines the proxy's tagged error type and the small
// pure-function utilities (model-name normalization, "no model loaded"
// detection, duration formatting) that the rest of the proxy builds on.
package proxyerr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind tags a ProxyError with the outcome it represents.
type Kind string

const (
	KindBadRequest     Kind = "bad_request"
	KindNotFound       Kind = "not_found"
	KindNotImplemented Kind = "not_implemented"
	KindInternal       Kind = "internal"
	KindCancelled      Kind = "cancelled"
)

// StatusForKind is the default HTTP status for each Kind.
func StatusForKind(k Kind) int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNotImplemented:
		return http.StatusNotImplemented
	case KindCancelled:
		return 499 // non-standard, matches nginx/Ollama convention for client-closed-request
	case KindInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Error is the proxy's tagged error value. Every error that crosses a
// handler boundary is one of these so the router can map it to an HTTP
// response without inspecting arbitrary error strings.
type Error struct {
	Kind    Kind
	Message string
	// Status overrides StatusForKind(Kind) when non-zero. Used when a
	// backend's own status code (e.g. a 404 from LM Studio) should be
	// preserved instead of collapsed to a generic Internal 500.
	Status int
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus returns the status code this error should produce.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return StatusForKind(e.Kind)
}

func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NotImplemented(format string, args ...any) *Error {
	return &Error{Kind: KindNotImplemented, Message: fmt.Sprintf(format, args...)}
}

func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// InternalWithStatus preserves a concrete backend status code (e.g. a
// 404 or 503 proxied from LM Studio) while still tagging the error as
// Internal for logging purposes.
func InternalWithStatus(status int, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Status: status, Message: fmt.Sprintf(format, args...)}
}

// Cancelled is returned whenever the cancel signal fires during an
// in-flight operation.
func Cancelled() *Error {
	return &Error{Kind: KindCancelled, Message: "request cancelled"}
}

// IsCancelled reports whether err is (or wraps) a Cancelled ProxyError.
func IsCancelled(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindCancelled
}

// noModelPatterns are matched case-insensitively as substrings against
// a backend error message to decide whether the retry engine (C5)
// should trigger a model-load probe.
var noModelPatterns = []string{
	"no model",
	"model not loaded",
	"no models loaded",
	"model loading",
	"load a model",
	"model is not loaded",
}

// IsNoModelsLoadedError reports whether msg indicates the backend has
// no model loaded and would benefit from a load-and-retry cycle.
func IsNoModelsLoadedError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, pattern := range noModelPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// FormatDuration renders d the way Ollama's CLI does: sub-second
// durations in milliseconds, everything else in seconds with two
// decimal places.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
}

// CleanModelName strips trailing ":latest" and ":<digits>" tags from
// name, repeating until neither remains. Idempotent by construction:
// once no such suffix is left there is nothing left to strip.
func CleanModelName(name string) string {
	for {
		if stripped := strings.TrimSuffix(name, ":latest"); stripped != name {
			name = stripped
			continue
		}
		if idx := strings.LastIndex(name, ":"); idx != -1 {
			suffix := name[idx+1:]
			if suffix != "" && isAllDigits(suffix) {
				name = name[:idx]
				continue
			}
		}
		return name
	}
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateModelName returns false with a warning for names that are
// empty, contain control characters other than tab, or are implausibly
// long (over 256 bytes). It never
// rejects well-formed unusual names outright (those are the backend's
// problem) — it is advisory, for logging, not an authorization gate.
func ValidateModelName(name string) (bool, string) {
	if name == "" {
		return false, "model name is empty"
	}
	if len(name) > 256 {
		return false, "model name is implausibly long"
	}
	for _, r := range name {
		if r < 0x20 && r != '\t' {
			return false, "model name contains control characters"
		}
	}
	return true, ""
}
