package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/translate"
)

// ShowHandler answers POST /api/show. It is purely fabricated from the
// request body's "name" field; no backend call is made.
func ShowHandler(c *gin.Context, scope Scope, deps Deps) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return proxyerr.BadRequest("malformed request body: %v", err)
	}
	if body.Name == "" {
		return proxyerr.BadRequest("name is required")
	}

	out, err := translate.OllamaShowResponse(body.Name, deps.ProcessStart)
	if err != nil {
		return proxyerr.Internal("failed to build show response: %v", err)
	}

	c.Data(200, "application/json", out)
	scope.MarkCompleted()
	return nil
}
