package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/transcode"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/translate"
)

// GenerateHandler answers POST /api/generate, streaming iff the
// request body sets stream:true. Per the spec's open question, this
// path always maps to backend completions; it never routes to
// chat-completions, so vision prompts are unsupported here.
func GenerateHandler(c *gin.Context, scope Scope, deps Deps) error {
	var in translate.OllamaGenerateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		return proxyerr.BadRequest("malformed request body: %v", err)
	}
	if in.Model == "" {
		return proxyerr.BadRequest("model is required")
	}

	reqBody, err := translate.BuildGenerateBackendRequest(in)
	if err != nil {
		return err
	}

	model := proxyerr.CleanModelName(in.Model) + ":latest"
	isStreaming := in.Stream != nil && *in.Stream
	url := backendEndpoint(deps, "/v1/completions")

	if !isStreaming {
		data, err := callBackendJSON(scope, deps, http.MethodPost, url, reqBody)
		if err != nil {
			return err
		}
		var backendResp translate.BackendGenerateResponse
		if err := decodeJSON(data, &backendResp); err != nil {
			return proxyerr.Internal("malformed backend generate response: %v", err)
		}
		out, err := translate.OllamaGenerateResponse(model, backendResp, time.Since(scope.Start), time.Now())
		if err != nil {
			return proxyerr.Internal("failed to build generate response: %v", err)
		}
		c.Data(200, "application/json", out)
		scope.MarkCompleted()
		return nil
	}

	resp, _, err := callBackendStream(scope, deps, http.MethodPost, url, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(200)
	c.Writer.Flush()

	session := &transcode.Session{Model: model, IsChat: false, Start: scope.Start, ChunkTimeout: deps.StreamTimeout}
	if err := session.Run(scope.Signal, resp.Body, c.Writer, c.Writer); err != nil {
		scope.Logger.Warn("generate stream terminated with write error", "error", err)
		return nil
	}
	scope.MarkCompleted()
	return nil
}
