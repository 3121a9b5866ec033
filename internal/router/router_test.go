package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/handlers"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testDeps(backendURL string) handlers.Deps {
	return handlers.Deps{
		Client:         http.DefaultClient,
		BackendURL:     backendURL,
		RequestTimeout: 5 * time.Second,
		LoadTimeout:    10 * time.Millisecond,
		StreamTimeout:  time.Second,
		ProcessStart:   time.Now(),
		Logger:         logging.Default(),
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	engine := New(testDeps(""))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	errObj := out["error"].(map[string]any)
	assert.Equal(t, "not_found", errObj["type"])
}

func TestUnsupportedEndpointReturns501(t *testing.T) {
	engine := New(testDeps(""))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pull", nil)
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestVersionRouteDispatches(t *testing.T) {
	engine := New(testDeps(""))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestShowRouteBadRequestOnMissingName(t *testing.T) {
	engine := New(testDeps(""))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/show", nil)
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTagsRouteEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"list","data":[{"id":"llama-3-8b-instruct","object":"model"}]}`))
	}))
	defer srv.Close()

	engine := New(testDeps(srv.URL))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "body = %s", w.Body.String())
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	models := out["models"].([]any)
	require.Len(t, models, 1)
}
