// Package router builds the gin engine, dispatches the fixed route
// table, and gives every request its own cancel signal and connection
// tracker per §4.8. It is the single place a ProxyError becomes an
// HTTP response.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/cancel"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/handlers"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/logging"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
)

// serviceName identifies this proxy's spans in the tracer it shares
// with cmd/ollama-lmstudio-proxy's provider setup.
const serviceName = "ollama-lmstudio-proxy"

// New builds the gin engine with every dispatched route wired per §6.
// Middleware is attached before any route registration: gin freezes a
// route's handler chain at Handle()-time, so Use() after registration
// would silently not apply to routes already added.
func New(deps handlers.Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(serviceName))

	register := func(method, path string, h handlers.Func) {
		engine.Handle(method, path, wrap(h, deps))
	}

	register(http.MethodGet, "/api/tags", handlers.TagsHandler)
	register(http.MethodGet, "/api/ps", handlers.PSHandler)
	register(http.MethodGet, "/api/version", handlers.VersionHandler)
	register(http.MethodPost, "/api/show", handlers.ShowHandler)
	register(http.MethodPost, "/api/chat", handlers.ChatHandler)
	register(http.MethodPost, "/api/generate", handlers.GenerateHandler)
	register(http.MethodPost, "/api/embed", handlers.EmbedHandler)
	register(http.MethodPost, "/api/embeddings", handlers.EmbedHandler)

	for action, path := range map[string]string{
		"create": "/api/create",
		"pull":   "/api/pull",
		"push":   "/api/push",
		"delete": "/api/delete",
		"copy":   "/api/copy",
	} {
		register(http.MethodPost, path, handlers.UnsupportedHandler(action))
	}

	register(http.MethodGet, "/v1/models", handlers.PassthroughHandler("/v1/models"))
	register(http.MethodPost, "/v1/chat/completions", handlers.PassthroughHandler("/v1/chat/completions"))
	register(http.MethodPost, "/v1/completions", handlers.PassthroughHandler("/v1/completions"))
	register(http.MethodPost, "/v1/embeddings", handlers.PassthroughHandler("/v1/embeddings"))

	engine.NoRoute(func(c *gin.Context) {
		writeError(c, proxyerr.NotFound("no such route: %s %s", c.Request.Method, c.Request.URL.Path))
	})

	return engine
}

// wrap adapts a handlers.Func into a gin.HandlerFunc: it creates the
// per-request CancelSignal and ConnectionTracker, watches the
// request's own context for the client-disconnect signal the HTTP
// server exposes, invokes the handler, and maps any returned error to
// an HTTP response unless the handler already started writing one
// (the streaming case).
//
// A handler return whose error is not itself Cancelled marks the
// tracker completed, so an ordinary failure does not fire the cancel
// signal; a Cancelled error, a handler that returns without marking
// completion, or a panic leaves it unmarked, and the deferred Release
// fires the signal.
func wrap(h handlers.Func, deps handlers.Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		signal := cancel.NewSignal()
		tracker := cancel.NewTracker(signal)
		defer tracker.Release()

		handlerDone := make(chan struct{})
		go func() {
			select {
			case <-c.Request.Context().Done():
				signal.Trigger()
			case <-handlerDone:
			}
		}()

		logger := deps.Logger
		if logger == nil {
			logger = logging.Default()
		}
		logger = logger.With("request_id", uuid.NewString())

		scope := handlers.Scope{
			Ctx:           c.Request.Context(),
			Signal:        signal,
			Logger:        logger,
			Start:         time.Now(),
			MarkCompleted: tracker.MarkCompleted,
		}

		err := h(c, scope, deps)
		close(handlerDone)

		if err != nil && !proxyerr.IsCancelled(err) {
			tracker.MarkCompleted()
		}

		if err != nil && !c.Writer.Written() {
			writeError(c, err)
			return
		}
		if err != nil {
			logStreamingError(logger, err)
		}
	}
}

func logStreamingError(logger *logging.Logger, err error) {
	if proxyerr.IsCancelled(err) {
		logger.Info("request cancelled mid-stream")
		return
	}
	logger.Error("error after response headers were sent", "error", err)
}

// writeError maps err to the wire error shape the spec's §6 fixes:
// {"error":{"type":"<kind>","message":"<text>"}}.
func writeError(c *gin.Context, err error) {
	pe, ok := err.(*proxyerr.Error)
	if !ok {
		pe = proxyerr.Internal("%v", err)
	}
	c.JSON(pe.HTTPStatus(), gin.H{
		"error": gin.H{
			"type":    string(pe.Kind),
			"message": pe.Message,
		},
	})
}
