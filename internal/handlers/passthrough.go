package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/cancel"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/transcode"
)

// PassthroughHandler forwards /v1/* requests to the backend's
// equivalent endpoint with minimal modification: the request body goes
// through unchanged, and the response body is forwarded byte-for-byte.
// It streams only when the request body sets stream:true. Any other
// request is answered after the backend's whole body has been read,
// with Content-Type application/json, even if the backend answered
// with an event stream.
func PassthroughHandler(backendPath string) Func {
	return func(c *gin.Context, scope Scope, deps Deps) error {
		var reqBody []byte
		if c.Request.Body != nil {
			data, err := cancel.ReadAll(scope.Signal, c.Request.Body)
			if err != nil {
				return err
			}
			reqBody = data
		}

		wantsStream := requestWantsStream(reqBody)
		url := backendEndpoint(deps, backendPath)

		if wantsStream {
			return passthroughStreaming(c, scope, deps, url, reqBody)
		}
		return passthroughBuffered(c, scope, deps, url, reqBody)
	}
}

func requestWantsStream(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var probe struct {
		Stream bool `json:"stream"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Stream
}

func passthroughBuffered(c *gin.Context, scope Scope, deps Deps, url string, reqBody []byte) error {
	data, err := callBackendJSON(scope, deps, requestMethod(c), url, nonEmptyBody(reqBody))
	if err != nil {
		return err
	}
	c.Data(200, "application/json", data)
	scope.MarkCompleted()
	return nil
}

func passthroughStreaming(c *gin.Context, scope Scope, deps Deps, url string, reqBody []byte) error {
	resp, _, err := callBackendStream(scope, deps, requestMethod(c), url, nonEmptyBody(reqBody))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/event-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(200)
	c.Writer.Flush()

	if err := transcode.Passthrough(scope.Signal, resp.Body, c.Writer, c.Writer); err != nil {
		scope.Logger.Warn("passthrough stream terminated with write error", "error", err)
		return nil
	}
	scope.MarkCompleted()
	return nil
}

func requestMethod(c *gin.Context) string {
	if c.Request.Method == "" {
		return http.MethodGet
	}
	return c.Request.Method
}

func nonEmptyBody(body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	return body
}

