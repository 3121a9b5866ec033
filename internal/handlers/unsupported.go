package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
)

// UnsupportedHandler answers the five Ollama model-management
// endpoints this proxy does not implement: create, pull, push, delete,
// copy. LM Studio has no equivalent remote model management surface.
func UnsupportedHandler(action string) Func {
	return func(c *gin.Context, scope Scope, deps Deps) error {
		return proxyerr.NotImplemented("%s is not supported by this proxy; manage models directly in LM Studio", action)
	}
}
