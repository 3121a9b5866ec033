package translate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChatBackendRequestMapsOptions(t *testing.T) {
	temp := 0.7
	numPredict := 128
	in := OllamaChatRequest{
		Model:    "qwen:latest",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		Options:  &OllamaOptions{Temperature: &temp, NumPredict: &numPredict},
	}
	raw, err := BuildChatBackendRequest(in)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "qwen", out["model"], "latest suffix should be stripped")
	assert.Equal(t, 0.7, out["temperature"])
	assert.Equal(t, float64(128), out["max_tokens"])
}

func TestBuildChatBackendRequestRequiresModelAndMessages(t *testing.T) {
	_, err := BuildChatBackendRequest(OllamaChatRequest{})
	assert.Error(t, err, "expected error for missing model")

	_, err = BuildChatBackendRequest(OllamaChatRequest{Model: "x"})
	assert.Error(t, err, "expected error for missing messages")
}

func TestBuildGenerateBackendRequestNoMessages(t *testing.T) {
	raw, err := BuildGenerateBackendRequest(OllamaGenerateRequest{Model: "llama3:8b", Prompt: "hello"})
	require.NoError(t, err)
	var out map[string]any
	json.Unmarshal(raw, &out)
	assert.Equal(t, "hello", out["prompt"])
	_, hasMessages := out["messages"]
	assert.False(t, hasMessages, "generate request should not carry messages")
}

func TestBuildEmbedBackendRequestNormalizesInput(t *testing.T) {
	cases := []struct {
		name string
		req  OllamaEmbedRequest
		want []string
	}{
		{"scalar input", OllamaEmbedRequest{Model: "nomic", Input: "hello"}, []string{"hello"}},
		{"array input", OllamaEmbedRequest{Model: "nomic", Input: []any{"a", "b"}}, []string{"a", "b"}},
		{"scalar prompt fallback", OllamaEmbedRequest{Model: "nomic", Prompt: "legacy"}, []string{"legacy"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			raw, err := BuildEmbedBackendRequest(c.req)
			require.NoError(t, err)
			var out struct {
				Input []string `json:"input"`
			}
			json.Unmarshal(raw, &out)
			assert.Equal(t, c.want, out.Input)
		})
	}
}

func TestBuildEmbedBackendRequestRejectsMissingInput(t *testing.T) {
	_, err := BuildEmbedBackendRequest(OllamaEmbedRequest{Model: "nomic"})
	assert.Error(t, err, "expected error for missing input")
}

func TestSynthesizeTimingsProportional(t *testing.T) {
	timings := SynthesizeTimings(10*time.Second, 10, 30)
	assert.Equal(t, timings.TotalDuration, timings.PromptEvalDuration+timings.EvalDuration, "durations do not sum to total")
	assert.Equal(t, timings.TotalDuration/4, timings.PromptEvalDuration, "expected 1/4 of total for prompt phase")
}

func TestSynthesizeTimingsFallsBackToHalfSplit(t *testing.T) {
	timings := SynthesizeTimings(10*time.Second, 0, 0)
	assert.Equal(t, timings.EvalDuration, timings.PromptEvalDuration, "expected even split")
}

func TestOllamaChatResponseMergesReasoning(t *testing.T) {
	resp := BackendChatResponse{
		Choices: []backendChatChoice{{Message: backendChatMessage{Content: "hello", ReasoningContent: "greeting"}}},
		Usage:   &Usage{PromptTokens: 2, CompletionTokens: 1},
	}
	raw, err := OllamaChatResponse("qwen:latest", resp, time.Second, time.Now())
	require.NoError(t, err)
	var out map[string]any
	json.Unmarshal(raw, &out)
	message := out["message"].(map[string]any)
	want := "**Reasoning:**\ngreeting\n\n**Answer:**\nhello"
	assert.Equal(t, want, message["content"])
	assert.Equal(t, true, out["done"])
	assert.Equal(t, float64(2), out["prompt_eval_count"])
	assert.Equal(t, float64(1), out["eval_count"])
}

func TestOllamaChatResponseNoReasoning(t *testing.T) {
	resp := BackendChatResponse{Choices: []backendChatChoice{{Message: backendChatMessage{Content: "hi"}}}}
	raw, _ := OllamaChatResponse("m", resp, time.Millisecond, time.Now())
	var out map[string]any
	json.Unmarshal(raw, &out)
	message := out["message"].(map[string]any)
	assert.Equal(t, "hi", message["content"])
}

func TestOllamaGenerateResponseShape(t *testing.T) {
	resp := BackendGenerateResponse{Choices: []backendCompletionChoice{{Text: "result"}}}
	raw, err := OllamaGenerateResponse("m", resp, time.Second, time.Now())
	require.NoError(t, err)
	var out map[string]any
	json.Unmarshal(raw, &out)
	assert.Equal(t, "result", out["response"])
	_, hasMessage := out["message"]
	assert.False(t, hasMessage, "generate response should not carry a message object")
}

func TestOllamaTagsResponseFabricatesDetails(t *testing.T) {
	list := BackendModelsList{Data: []backendModel{{ID: "llama-3-8b-instruct"}}}
	raw, err := OllamaTagsResponse(list, time.Now())
	require.NoError(t, err)
	var out struct {
		Models []map[string]any `json:"models"`
	}
	json.Unmarshal(raw, &out)
	require.Len(t, out.Models, 1)
	m := out.Models[0]
	assert.Equal(t, "llama-3-8b-instruct:latest", m["name"])
	details := m["details"].(map[string]any)
	assert.Equal(t, "llama", details["family"])
	assert.Equal(t, "8B", details["parameter_size"])
}

func TestOllamaShowResponseUsesCleanedName(t *testing.T) {
	raw, err := OllamaShowResponse("qwen2.5:14b", time.Now())
	require.NoError(t, err)
	var out map[string]any
	json.Unmarshal(raw, &out)
	details := out["details"].(map[string]any)
	assert.Equal(t, "qwen", details["family"])
	assert.Equal(t, "14B", details["parameter_size"])
	_, hasCaps := out["capabilities"]
	assert.True(t, hasCaps, "expected capabilities field")
}
