package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/cancel"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/logging"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newScope() Scope {
	return Scope{
		Ctx:           nil,
		Signal:        cancel.NewSignal(),
		Logger:        logging.Default(),
		Start:         time.Now(),
		MarkCompleted: func() {},
	}
}

func newTestContext(method, path string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestVersionHandler(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "/api/version", "")
	scope := newScope()
	require.NoError(t, VersionHandler(c, scope, Deps{}))
	assert.Equal(t, 200, w.Code)
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	assert.Equal(t, ProxyVersion, out["version"])
}

func TestPSHandlerReturnsEmptyModels(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "/api/ps", "")
	require.NoError(t, PSHandler(c, newScope(), Deps{}))
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	models, ok := out["models"].([]any)
	assert.True(t, ok)
	assert.Empty(t, models)
}

func TestShowHandlerFabricatesFromName(t *testing.T) {
	c, w := newTestContext(http.MethodPost, "/api/show", `{"name":"qwen2.5:14b"}`)
	require.NoError(t, ShowHandler(c, newScope(), Deps{ProcessStart: time.Now()}))
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	details := out["details"].(map[string]any)
	assert.Equal(t, "qwen", details["family"])
}

func TestShowHandlerRejectsMissingName(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "/api/show", `{}`)
	err := ShowHandler(c, newScope(), Deps{})
	assert.Error(t, err, "expected error for missing name")
}

func TestUnsupportedHandlerReturnsNotImplemented(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "/api/pull", `{"name":"x"}`)
	err := UnsupportedHandler("pull")(c, newScope(), Deps{})
	pe, ok := err.(*proxyerr.Error)
	require.True(t, ok, "expected *proxyerr.Error, got %T", err)
	assert.Equal(t, http.StatusNotImplemented, pe.HTTPStatus())
}

func backendDeps(backendURL string) Deps {
	return Deps{
		Client:         http.DefaultClient,
		BackendURL:     backendURL,
		RequestTimeout: 5 * time.Second,
		LoadTimeout:    10 * time.Millisecond,
		StreamTimeout:  time.Second,
		ProcessStart:   time.Now(),
		Logger:         logging.Default(),
	}
}

func TestTagsHandlerRewritesBackendList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"list","data":[{"id":"llama-3-8b-instruct","object":"model"}]}`))
	}))
	defer srv.Close()

	c, w := newTestContext(http.MethodGet, "/api/tags", "")
	scope := newScope()
	scope.Ctx = emptyCtx()
	require.NoError(t, TagsHandler(c, scope, backendDeps(srv.URL)))
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	models := out["models"].([]any)
	require.Len(t, models, 1)
	m := models[0].(map[string]any)
	assert.Equal(t, "llama-3-8b-instruct:latest", m["name"])
}

func TestChatHandlerNonStreamingMergesReasoning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"hello","reasoning_content":"greeting"}}],"usage":{"prompt_tokens":2,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	body := `{"model":"qwen:latest","messages":[{"role":"user","content":"hi"}],"stream":false}`
	c, w := newTestContext(http.MethodPost, "/api/chat", body)
	scope := newScope()
	scope.Ctx = emptyCtx()
	require.NoError(t, ChatHandler(c, scope, backendDeps(srv.URL)))
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	message := out["message"].(map[string]any)
	want := "**Reasoning:**\ngreeting\n\n**Answer:**\nhello"
	assert.Equal(t, want, message["content"])
	assert.Equal(t, "qwen:latest", out["model"])
}

func TestChatHandlerNormalizesModelNameToLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	body := `{"model":"llama3","messages":[{"role":"user","content":"hi"}],"stream":false}`
	c, w := newTestContext(http.MethodPost, "/api/chat", body)
	scope := newScope()
	scope.Ctx = emptyCtx()
	require.NoError(t, ChatHandler(c, scope, backendDeps(srv.URL)))
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	assert.Equal(t, "llama3:latest", out["model"], "response model must carry the :latest suffix even when the request omitted a tag")
}

func TestChatHandlerRetriesOnNoModelLoaded(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/v1/models") {
			w.Write([]byte(`{"object":"list","data":[]}`))
			return
		}
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("No models loaded"))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	body := `{"model":"qwen:latest","messages":[{"role":"user","content":"hi"}]}`
	c, w := newTestContext(http.MethodPost, "/api/chat", body)
	scope := newScope()
	scope.Ctx = emptyCtx()
	require.NoError(t, ChatHandler(c, scope, backendDeps(srv.URL)))
	assert.Equal(t, 2, calls, "expected 2 chat calls (1 failure + 1 retry)")
	assert.Equal(t, 200, w.Code)
}

func TestEmbedHandlerAcceptsScalarInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}],"usage":{"prompt_tokens":1}}`))
	}))
	defer srv.Close()

	body := `{"model":"nomic-embed-text","input":"hello"}`
	c, w := newTestContext(http.MethodPost, "/api/embed", body)
	scope := newScope()
	scope.Ctx = emptyCtx()
	require.NoError(t, EmbedHandler(c, scope, backendDeps(srv.URL)))
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	embeddings, ok := out["embeddings"].([]any)
	assert.True(t, ok)
	assert.Len(t, embeddings, 1)
}

func emptyCtx() context.Context { return context.Background() }
