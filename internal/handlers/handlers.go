// Package handlers implements the thin per-endpoint orchestration C7
// describes: parse/validate the request body, issue the backend call
// through the cancellation fabric and retry engine, translate the
// result, and mark the request's tracker completed on every success
// path.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/cancel"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/logging"
)

// Scope is the per-request handle the router builds and every handler
// receives: the cancel signal, a context derived from the inbound
// request, a logger, and the callback that marks this request's
// tracker completed.
type Scope struct {
	Ctx           context.Context
	Signal        *cancel.Signal
	Logger        *logging.Logger
	Start         time.Time
	MarkCompleted func()
}

// Deps are the proxy-wide collaborators every handler shares: the
// backend HTTP client, its base URL, the configured timeouts, and the
// process start time used as a fabricated "modified_at".
type Deps struct {
	Client         *http.Client
	BackendURL     string
	UseV0          bool
	LoadTimeout    time.Duration
	RequestTimeout time.Duration
	StreamTimeout  time.Duration
	ProcessStart   time.Time
	Logger         *logging.Logger
}

// Func is the signature every endpoint handler implements. A returned
// error is mapped to an HTTP response by the router unless the
// response writer has already had bytes written to it (the streaming
// case, where errors become an in-band error-chunk instead).
type Func func(c *gin.Context, scope Scope, deps Deps) error

// backendEndpoint resolves path (e.g. "/v1/models") against deps,
// honoring the UseV0 flag that redirects calls to the /api/v0/*
// LM Studio-native surface instead of the generic OpenAI-compatible
// one.
func backendEndpoint(deps Deps, path string) string {
	if deps.UseV0 {
		path = "/api/v0" + path[len("/v1"):]
	}
	return deps.BackendURL + path
}
