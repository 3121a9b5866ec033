package handlers

import (
	"net/http"
	"strings"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/cancel"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/retry"
)

// callBackendJSON issues a single non-streaming backend call wrapped
// in the retry engine: one attempt, and on a detected "no model
// loaded" failure, one model-load probe plus one reissue.
func callBackendJSON(scope Scope, deps Deps, method, url string, body []byte) ([]byte, error) {
	retryScope := retryScope(scope, deps)

	op := func() retry.Result {
		headers := http.Header{"Content-Type": []string{"application/json"}}
		resp, err := cancel.Call(scope.Ctx, scope.Signal, method, url, body, headers, deps.Client, deps.RequestTimeout)
		if err != nil {
			return retry.Result{Err: err}
		}
		defer resp.Body.Close()

		data, err := cancel.ReadAll(scope.Signal, resp.Body)
		if err != nil {
			return retry.Result{Err: err}
		}
		if resp.StatusCode >= 400 {
			return retry.Result{Body: data, Err: proxyerr.InternalWithStatus(resp.StatusCode, "backend error: %s", string(data))}
		}
		return retry.Result{Body: data}
	}

	result := retry.WithRetry(retryScope, op, messageOf)
	return result.Body, result.Err
}

// callBackendStream issues the backend call for a streaming-capable
// endpoint. If the backend answers with a JSON error body instead of
// an event stream (the common shape for "no model loaded" failures),
// it is read eagerly so the retry engine can inspect it; otherwise the
// response and its unread body are returned for the caller to pass to
// the transcoder.
func callBackendStream(scope Scope, deps Deps, method, url string, body []byte) (*http.Response, []byte, error) {
	retryScope := retryScope(scope, deps)

	op := func() retry.Result {
		headers := http.Header{"Content-Type": []string{"application/json"}}
		resp, err := cancel.Call(scope.Ctx, scope.Signal, method, url, body, headers, deps.Client, deps.RequestTimeout)
		if err != nil {
			return retry.Result{Err: err}
		}

		if isEventStream(resp) && resp.StatusCode < 400 {
			return retry.Result{Response: resp}
		}

		defer resp.Body.Close()
		data, err := cancel.ReadAll(scope.Signal, resp.Body)
		if err != nil {
			return retry.Result{Err: err}
		}
		if resp.StatusCode >= 400 || proxyerr.IsNoModelsLoadedError(string(data)) {
			return retry.Result{Body: data, Err: proxyerr.InternalWithStatus(resp.StatusCode, "backend error: %s", string(data))}
		}
		return retry.Result{Response: resp, Body: data}
	}

	result := retry.WithRetry(retryScope, op, messageOf)
	if result.Err != nil {
		return nil, result.Body, result.Err
	}
	return result.Response, result.Body, nil
}

func isEventStream(resp *http.Response) bool {
	return strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream")
}

func retryScope(scope Scope, deps Deps) retry.Scope {
	return retry.Scope{
		Ctx:         scope.Ctx,
		Signal:      scope.Signal,
		Logger:      scope.Logger,
		Client:      deps.Client,
		BackendURL:  deps.BackendURL,
		LoadTimeout: deps.LoadTimeout,
	}
}

func messageOf(r retry.Result) string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return string(r.Body)
}
