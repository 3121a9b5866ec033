package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/transcode"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/translate"
)

// ChatHandler answers POST /api/chat, streaming iff the request body
// sets stream:true.
func ChatHandler(c *gin.Context, scope Scope, deps Deps) error {
	var in translate.OllamaChatRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		return proxyerr.BadRequest("malformed request body: %v", err)
	}
	if in.Model == "" {
		return proxyerr.BadRequest("model is required")
	}

	reqBody, err := translate.BuildChatBackendRequest(in)
	if err != nil {
		return err
	}

	model := proxyerr.CleanModelName(in.Model) + ":latest"
	isStreaming := in.Stream != nil && *in.Stream
	url := backendEndpoint(deps, "/v1/chat/completions")

	if !isStreaming {
		data, err := callBackendJSON(scope, deps, http.MethodPost, url, reqBody)
		if err != nil {
			return err
		}
		var backendResp translate.BackendChatResponse
		if err := decodeJSON(data, &backendResp); err != nil {
			return proxyerr.Internal("malformed backend chat response: %v", err)
		}
		out, err := translate.OllamaChatResponse(model, backendResp, time.Since(scope.Start), time.Now())
		if err != nil {
			return proxyerr.Internal("failed to build chat response: %v", err)
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

	session := &transcode.Session{Model: model, IsChat: true, Start: scope.Start, ChunkTimeout: deps.StreamTimeout}
	if err := session.Run(scope.Signal, resp.Body, c.Writer, c.Writer); err != nil {
		scope.Logger.Warn("chat stream terminated with write error", "error", err)
		return nil
	}
	scope.MarkCompleted()
	return nil
}
