package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/translate"
)

// EmbedHandler answers POST /api/embed and POST /api/embeddings. Both
// endpoints share one implementation; embeddings are never streamed.
func EmbedHandler(c *gin.Context, scope Scope, deps Deps) error {
	var in translate.OllamaEmbedRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		return proxyerr.BadRequest("malformed request body: %v", err)
	}
	if in.Model == "" {
		return proxyerr.BadRequest("model is required")
	}

	reqBody, err := translate.BuildEmbedBackendRequest(in)
	if err != nil {
		return err
	}

	url := backendEndpoint(deps, "/v1/embeddings")
	data, err := callBackendJSON(scope, deps, http.MethodPost, url, reqBody)
	if err != nil {
		return err
	}

	var backendResp translate.BackendEmbedResponse
	if err := decodeJSON(data, &backendResp); err != nil {
		return proxyerr.Internal("malformed backend embeddings response: %v", err)
	}

	out, err := translate.OllamaEmbedResponse(in.Model, backendResp, time.Since(scope.Start))
	if err != nil {
		return proxyerr.Internal("failed to build embeddings response: %v", err)
	}

	c.Data(200, "application/json", out)
	scope.MarkCompleted()
	return nil
}
