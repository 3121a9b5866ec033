package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/translate"
)

// TagsHandler answers GET /api/tags by fetching the backend's model
// list and rewriting each entry into Ollama's tag shape, fabricating
// every detail field from the model name via modelmeta.
func TagsHandler(c *gin.Context, scope Scope, deps Deps) error {
	url := backendEndpoint(deps, "/v1/models")
	data, err := callBackendJSON(scope, deps, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	var list translate.BackendModelsList
	if err := decodeJSON(data, &list); err != nil {
		return proxyerr.Internal("malformed backend models response: %v", err)
	}

	out, err := translate.OllamaTagsResponse(list, deps.ProcessStart)
	if err != nil {
		return proxyerr.Internal("failed to build tags response: %v", err)
	}

	c.Data(200, "application/json", out)
	scope.MarkCompleted()
	return nil
}
