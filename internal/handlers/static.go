package handlers

import "github.com/gin-gonic/gin"

// ProxyVersion is reported verbatim by GET /api/version. It identifies
// this proxy, not the backend model runtime behind it.
const ProxyVersion = "0.1.0"

// VersionHandler answers GET /api/version with a fixed constant; no
// backend contact is made.
func VersionHandler(c *gin.Context, scope Scope, deps Deps) error {
	c.JSON(200, gin.H{"version": ProxyVersion})
	scope.MarkCompleted()
	return nil
}

// PSHandler answers GET /api/ps. LM Studio exposes no equivalent of
// Ollama's "currently loaded models" list, so the proxy always reports
// none loaded.
func PSHandler(c *gin.Context, scope Scope, deps Deps) error {
	c.JSON(200, gin.H{"models": []any{}})
	scope.MarkCompleted()
	return nil
}
