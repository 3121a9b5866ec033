// Package retry implements the single-retry wrapper that detects a
// backend "no model loaded" failure, issues a model-load probe, waits,
// and reissues the call exactly once.
package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/cancel"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/logging"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
)

// Result is the outcome of an operation attempt, as returned by the
// factory passed to WithRetry.
type Result struct {
	Response *http.Response
	Body     []byte
	Err      error
}

// Scope carries the per-request context the retry engine needs: the
// cancel signal to race against, a logger, the shared HTTP client, the
// backend base URL, and the probe timeout.
type Scope struct {
	Ctx         context.Context
	Signal      *cancel.Signal
	Logger      *logging.Logger
	Client      *http.Client
	BackendURL  string
	LoadTimeout time.Duration
}

// ErrMessage extracts the text WithRetry should test against
// proxyerr.IsNoModelsLoadedError. Callers supply this because the
// failure text may live in the error, the response body, or both,
// depending on whether the backend returned a non-2xx status or a 200
// with an embedded error message.
type ErrMessage func(Result) string

// Factory produces one attempt of the retried operation. It must be a
// restartable closure, not a single future: WithRetry may invoke it
// twice.
type Factory func() Result

// WithRetry executes op once. If the result is not Cancelled and its
// message matches the "no model loaded" pattern, it probes the
// backend's models list, sleeps cancellably for scope.LoadTimeout, and
// executes op a second and final time.
func WithRetry(scope Scope, op Factory, extractMessage ErrMessage) Result {
	result := op()
	if result.Err != nil && proxyerr.IsCancelled(result.Err) {
		return result
	}

	message := extractMessage(result)
	if !proxyerr.IsNoModelsLoadedError(message) {
		return result
	}

	scope.Logger.InfoContext(scope.Ctx, "no model loaded, triggering load probe", "backend_url", scope.BackendURL)
	triggerModelLoading(scope)

	if err := cancel.Sleep(scope.Signal, scope.LoadTimeout); err != nil {
		return Result{Err: err}
	}

	scope.Logger.InfoContext(scope.Ctx, "retrying after model load probe")
	return op()
}

// triggerModelLoading issues a cancellable GET against the backend's
// models-list endpoint to nudge LM Studio into loading the requested
// model. Its response is discarded; only whether it completed matters.
// The probe always targets /v1/models; the /api/v0 redirect applied to
// handler calls is not applied here.
func triggerModelLoading(scope Scope) {
	resp, err := cancel.Call(scope.Ctx, scope.Signal, http.MethodGet, scope.BackendURL+"/v1/models", nil, nil, scope.Client, scope.LoadTimeout)
	if err != nil {
		scope.Logger.Warn("model load probe failed", "error", err)
		return
	}
	defer resp.Body.Close()
}
