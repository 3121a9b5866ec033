package cancel

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
)

// Call issues an HTTP request and races three outcomes, per §4.2:
// response headers arriving, the cancel Signal firing, or timeout
// elapsing. Whichever happens first determines the result.
//
// The request is built with a context derived from ctx so that when
// the signal fires or the timeout expires, the in-flight transport
// round trip is aborted rather than left to finish in the background.
func Call(ctx context.Context, signal *Signal, method, url string, body []byte, headers http.Header, client *http.Client, timeout time.Duration) (*http.Response, error) {
	callCtx, stopTimeout := context.WithTimeout(ctx, timeout)
	defer stopTimeout()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(callCtx, method, url, reader)
	if err != nil {
		return nil, proxyerr.Internal("failed to build backend request: %v", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	type result struct {
		resp *http.Response
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		resp, err := client.Do(req)
		resultCh <- result{resp, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			if callCtx.Err() == context.DeadlineExceeded {
				return nil, proxyerr.Internal("request timeout")
			}
			if signal.IsTriggered() {
				return nil, proxyerr.Cancelled()
			}
			return nil, proxyerr.Internal("backend request failed: %v", r.err)
		}
		return r.resp, nil
	case <-signal.Done():
		stopTimeout() // cancel callCtx immediately so client.Do aborts the round trip
		<-resultCh    // drain to let client.Do return and release its connection
		return nil, proxyerr.Cancelled()
	case <-callCtx.Done():
		<-resultCh
		return nil, proxyerr.Internal("request timeout")
	}
}

// ReadAll reads the entirety of body, racing against signal. On
// cancellation, any bytes read so far are discarded and a Cancelled
// error is returned.
func ReadAll(signal *Signal, body io.Reader) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		data, err := io.ReadAll(body)
		resultCh <- result{data, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return nil, proxyerr.Internal("failed to read backend response: %v", r.err)
		}
		return r.data, nil
	case <-signal.Done():
		return nil, proxyerr.Cancelled()
	}
}
