// Package translate rewrites request and response payloads between the
// Ollama dialect and the OpenAI/LM Studio dialect: chat, generate, and
// embeddings shapes in both directions, the tags/show fabrications, and
// the timing-estimate synthesis every non-streaming and final-chunk
// response needs.
package translate

import (
	"encoding/json"
	"time"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/modelmeta"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
)

// ChatMessage is a single turn in an Ollama or OpenAI chat exchange;
// the two dialects agree on shape closely enough to share one type.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OllamaOptions carries the subset of Ollama's free-form "options" map
// this proxy understands and forwards.
type OllamaOptions struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	NumPredict       *int     `json:"num_predict,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	RepeatPenalty    *float64 `json:"repeat_penalty,omitempty"`
	LogitBias        any      `json:"logit_bias,omitempty"`
}

// OllamaChatRequest is the body of POST /api/chat.
type OllamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ChatMessage   `json:"messages"`
	Stream   *bool           `json:"stream,omitempty"`
	Options  *OllamaOptions  `json:"options,omitempty"`
}

// OllamaGenerateRequest is the body of POST /api/generate.
type OllamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  *bool          `json:"stream,omitempty"`
	Options *OllamaOptions `json:"options,omitempty"`
}

// OllamaEmbedRequest is the body of POST /api/embed or /api/embeddings.
// Both "input" (v2) and "prompt" (v1) spellings are accepted.
type OllamaEmbedRequest struct {
	Model  string `json:"model"`
	Input  any    `json:"input,omitempty"`
	Prompt any    `json:"prompt,omitempty"`
}

// backendRequest is the shared shape forwarded to the OpenAI/LM Studio
// backend for chat and completion calls; omitempty on every optional
// field keeps untouched options out of the wire body.
type backendRequest struct {
	Model            string          `json:"model"`
	Messages         []ChatMessage   `json:"messages,omitempty"`
	Prompt           string          `json:"prompt,omitempty"`
	Stream           bool            `json:"stream"`
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	TopK             *int            `json:"top_k,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
	Seed             *int            `json:"seed,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	RepeatPenalty    *float64        `json:"repeat_penalty,omitempty"`
	LogitBias        any             `json:"logit_bias,omitempty"`
}

func applyOptions(req *backendRequest, opts *OllamaOptions) {
	if opts == nil {
		return
	}
	req.Temperature = opts.Temperature
	req.MaxTokens = opts.NumPredict
	req.TopP = opts.TopP
	req.TopK = opts.TopK
	req.Stop = opts.Stop
	req.Seed = opts.Seed
	req.PresencePenalty = opts.PresencePenalty
	req.FrequencyPenalty = opts.FrequencyPenalty
	req.RepeatPenalty = opts.RepeatPenalty
	req.LogitBias = opts.LogitBias
}

// BuildChatBackendRequest rewrites an Ollama /api/chat body into the
// backend's chat-completions shape.
func BuildChatBackendRequest(in OllamaChatRequest) ([]byte, error) {
	if in.Model == "" {
		return nil, proxyerr.BadRequest("model is required")
	}
	if len(in.Messages) == 0 {
		return nil, proxyerr.BadRequest("messages is required")
	}
	out := backendRequest{
		Model:    proxyerr.CleanModelName(in.Model),
		Messages: in.Messages,
		Stream:   in.Stream != nil && *in.Stream,
	}
	applyOptions(&out, in.Options)
	return json.Marshal(out)
}

// BuildGenerateBackendRequest rewrites an Ollama /api/generate body
// into the backend's completions shape. No prompt template is applied
// on this path.
func BuildGenerateBackendRequest(in OllamaGenerateRequest) ([]byte, error) {
	if in.Model == "" {
		return nil, proxyerr.BadRequest("model is required")
	}
	out := backendRequest{
		Model:  proxyerr.CleanModelName(in.Model),
		Prompt: in.Prompt,
		Stream: in.Stream != nil && *in.Stream,
	}
	applyOptions(&out, in.Options)
	return json.Marshal(out)
}

// BuildEmbedBackendRequest rewrites an Ollama /api/embed(dings) body
// into the backend's embeddings shape, normalizing either "input" or
// "prompt" (scalar or array) into a single string array.
func BuildEmbedBackendRequest(in OllamaEmbedRequest) ([]byte, error) {
	if in.Model == "" {
		return nil, proxyerr.BadRequest("model is required")
	}
	raw := in.Input
	if raw == nil {
		raw = in.Prompt
	}
	normalized, err := normalizeEmbedInput(raw)
	if err != nil {
		return nil, err
	}
	out := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{
		Model: proxyerr.CleanModelName(in.Model),
		Input: normalized,
	}
	return json.Marshal(out)
}

func normalizeEmbedInput(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, proxyerr.BadRequest("input is required")
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, proxyerr.BadRequest("input array must contain only strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, proxyerr.BadRequest("input must be a string or array of strings")
	}
}

// Usage is the token-count block most OpenAI-compatible responses
// embed; any field may be absent.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type backendChatMessage struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

type backendChatChoice struct {
	Message backendChatMessage `json:"message"`
}

// BackendChatResponse is the non-streaming backend chat-completions
// response.
type BackendChatResponse struct {
	Choices []backendChatChoice `json:"choices"`
	Usage   *Usage              `json:"usage"`
}

type backendCompletionChoice struct {
	Text string `json:"text"`
}

// BackendGenerateResponse is the non-streaming backend completions
// response.
type BackendGenerateResponse struct {
	Choices []backendCompletionChoice `json:"choices"`
	Usage   *Usage                    `json:"usage"`
}

// BackendEmbedResponse is the backend embeddings response.
type BackendEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage *Usage `json:"usage"`
}

// Timings holds the duration and token-count fields every Ollama
// response shape carries. Only TotalDuration is measured; the phase
// durations are synthesized from it and LoadDuration is always zero.
type Timings struct {
	TotalDuration     int64
	LoadDuration      int64
	PromptEvalCount   int
	PromptEvalDuration int64
	EvalCount         int
	EvalDuration      int64
}

// SynthesizeTimings splits elapsed proportionally between prompt and
// eval phases by token counts, falling back to an even 50/50 split
// when counts are unavailable. This is a heuristic, never a
// measurement: the backend does not report phase-level timing.
func SynthesizeTimings(elapsed time.Duration, promptTokens, evalTokens int) Timings {
	total := elapsed.Nanoseconds()
	t := Timings{
		TotalDuration:   total,
		LoadDuration:    0,
		PromptEvalCount: promptTokens,
		EvalCount:       evalTokens,
	}
	sum := promptTokens + evalTokens
	if sum <= 0 {
		t.PromptEvalDuration = total / 2
		t.EvalDuration = total / 2
		return t
	}
	t.PromptEvalDuration = total * int64(promptTokens) / int64(sum)
	t.EvalDuration = total - t.PromptEvalDuration
	return t
}

// mergeReasoning folds a non-empty reasoning_content into content per
// the Ollama-visible "**Reasoning:**" convention.
func mergeReasoning(content, reasoning string) string {
	if reasoning == "" {
		return content
	}
	return "**Reasoning:**\n" + reasoning + "\n\n**Answer:**\n" + content
}

// OllamaChatResponse builds the client-facing /api/chat response.
func OllamaChatResponse(model string, resp BackendChatResponse, elapsed time.Duration, now time.Time) ([]byte, error) {
	content := ""
	reasoning := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		reasoning = resp.Choices[0].Message.ReasoningContent
	}
	content = mergeReasoning(content, reasoning)

	promptTokens, evalTokens := 0, 0
	if resp.Usage != nil {
		promptTokens, evalTokens = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	timings := SynthesizeTimings(elapsed, promptTokens, evalTokens)

	out := map[string]any{
		"model":                model,
		"created_at":           now.UTC().Format(time.RFC3339Nano),
		"message":              map[string]any{"role": "assistant", "content": content},
		"done":                 true,
		"total_duration":       timings.TotalDuration,
		"load_duration":        timings.LoadDuration,
		"prompt_eval_count":    timings.PromptEvalCount,
		"prompt_eval_duration": timings.PromptEvalDuration,
		"eval_count":           timings.EvalCount,
		"eval_duration":        timings.EvalDuration,
	}
	return json.Marshal(out)
}

// OllamaGenerateResponse builds the client-facing /api/generate
// response.
func OllamaGenerateResponse(model string, resp BackendGenerateResponse, elapsed time.Duration, now time.Time) ([]byte, error) {
	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Text
	}
	promptTokens, evalTokens := 0, 0
	if resp.Usage != nil {
		promptTokens, evalTokens = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	timings := SynthesizeTimings(elapsed, promptTokens, evalTokens)

	out := map[string]any{
		"model":                model,
		"created_at":           now.UTC().Format(time.RFC3339Nano),
		"response":             text,
		"done":                 true,
		"total_duration":       timings.TotalDuration,
		"load_duration":        timings.LoadDuration,
		"prompt_eval_count":    timings.PromptEvalCount,
		"prompt_eval_duration": timings.PromptEvalDuration,
		"eval_count":           timings.EvalCount,
		"eval_duration":        timings.EvalDuration,
	}
	return json.Marshal(out)
}

// OllamaEmbedResponse builds the client-facing /api/embed(dings)
// response.
func OllamaEmbedResponse(model string, resp BackendEmbedResponse, elapsed time.Duration) ([]byte, error) {
	embeddings := make([][]float64, 0, len(resp.Data))
	for _, d := range resp.Data {
		embeddings = append(embeddings, d.Embedding)
	}
	promptTokens := 0
	if resp.Usage != nil {
		promptTokens = resp.Usage.PromptTokens
	}
	out := map[string]any{
		"model":             model,
		"embeddings":        embeddings,
		"total_duration":    elapsed.Nanoseconds(),
		"load_duration":     int64(0),
		"prompt_eval_count": promptTokens,
	}
	return json.Marshal(out)
}

// backendModel is one entry of the backend's /v1/models list.
type backendModel struct {
	ID string `json:"id"`
}

// BackendModelsList is the backend's /v1/models response.
type BackendModelsList struct {
	Data []backendModel `json:"data"`
}

// OllamaTagsResponse rewrites the backend's model list into Ollama's
// /api/tags shape, fabricating every metadata field via modelmeta.
func OllamaTagsResponse(list BackendModelsList, processStart time.Time) ([]byte, error) {
	models := make([]map[string]any, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, buildTagEntry(m.ID, processStart))
	}
	out := map[string]any{"models": models}
	return json.Marshal(out)
}

func buildTagEntry(id string, processStart time.Time) map[string]any {
	name := id + ":latest"
	family, families := modelmeta.DetermineModelFamily(id)
	paramSize := modelmeta.DetermineParameterSize(id)
	return map[string]any{
		"name":        name,
		"model":       name,
		"modified_at": processStart.UTC().Format(time.RFC3339Nano),
		"size":        modelmeta.EstimateModelSize(paramSize),
		"digest":      modelmeta.Digest(id),
		"details": map[string]any{
			"format":            "gguf",
			"family":            string(family),
			"families":          families,
			"parameter_size":    paramSize,
			"quantization_level": "Q4_K_M",
		},
	}
}

// OllamaShowResponse fabricates the /api/show response entirely from
// the requested model name; no backend call is made.
func OllamaShowResponse(name string, processStart time.Time) ([]byte, error) {
	cleaned := proxyerr.CleanModelName(name)
	family, families := modelmeta.DetermineModelFamily(cleaned)
	paramSize := modelmeta.DetermineParameterSize(cleaned)
	caps := modelmeta.DetermineModelCapabilities(cleaned)

	capStrings := make([]string, 0, len(caps))
	for _, c := range caps {
		capStrings = append(capStrings, string(c))
	}

	out := map[string]any{
		"modelfile": "# fabricated by proxy, no Modelfile available from LM Studio",
		"parameters": "",
		"template":   "{{ .Prompt }}",
		"details": map[string]any{
			"format":            "gguf",
			"family":            string(family),
			"families":          families,
			"parameter_size":    paramSize,
			"quantization_level": "Q4_K_M",
		},
		"model_info": map[string]any{
			"general.architecture":    string(family),
			"general.parameter_count": modelmeta.EstimateModelSize(paramSize),
		},
		"capabilities": capStrings,
	}
	return json.Marshal(out)
}
