// Package transcode turns a backend SSE stream into Ollama-dialect
// NDJSON, chunk by chunk, and also carries the raw passthrough path for
// /v1/* streaming responses. In the SSE-to-NDJSON loop every read races
// the cancel signal and the per-chunk idle timeout; the passthrough path
// races the cancel signal only and has no idle timeout.
package transcode

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/cancel"
)

const partialBufferCap = 4096

// partialBuffer accumulates streamed delta text up to a cap; further
// appends past the cap are silently discarded rather than growing
// unbounded for very long generations.
type partialBuffer struct {
	b strings.Builder
}

func (p *partialBuffer) append(s string) {
	if p.b.Len() >= partialBufferCap {
		return
	}
	remaining := partialBufferCap - p.b.Len()
	if len(s) > remaining {
		s = s[:remaining]
	}
	p.b.WriteString(s)
}

func (p *partialBuffer) String() string { return p.b.String() }

// Flusher is the subset of http.Flusher the transcoder needs; tests
// can supply a no-op.
type Flusher interface {
	Flush()
}

// Session holds the per-stream state described by §3's StreamState:
// the model name, chat-vs-generate mode, start time, running chunk
// counter, and capped partial-content accumulator.
type Session struct {
	Model        string
	IsChat       bool
	Start        time.Time
	ChunkTimeout time.Duration

	chunkCount int
	partial    partialBuffer
}

type readResult struct {
	data []byte
	err  error
}

// Run drives the transcode loop: read SSE frames from body, rewrite
// each into an Ollama NDJSON chunk written to w, and terminate with
// exactly one of a final-chunk, error-chunk, or cancel-chunk.
func (s *Session) Run(signal *cancel.Signal, body io.Reader, w io.Writer, flusher Flusher) error {
	readCh := make(chan readResult, 1)
	go pump(body, readCh)

	var buf []byte
	for {
		frame, rest, found := splitFrame(buf)
		if found {
			buf = rest
			done, err := s.processFrame(frame, w, flusher)
			if err != nil {
				return s.emitError(w, flusher, err.Error())
			}
			if done {
				return s.emitFinal(w, flusher)
			}
			continue
		}

		select {
		case <-signal.Done():
			return s.emitCancel(w, flusher)
		case <-time.After(s.ChunkTimeout):
			return s.emitError(w, flusher, "stream timeout: no data received from backend")
		case r, ok := <-readCh:
			if !ok {
				return s.emitFinal(w, flusher)
			}
			if r.err != nil {
				if r.err == io.EOF {
					return s.emitFinal(w, flusher)
				}
				return s.emitError(w, flusher, r.err.Error())
			}
			buf = append(buf, r.data...)
		}
	}
}

func pump(body io.Reader, out chan<- readResult) {
	defer close(out)
	chunk := make([]byte, 32*1024)
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			data := make([]byte, n)
			copy(data, chunk[:n])
			out <- readResult{data: data}
		}
		if err != nil {
			out <- readResult{err: err}
			return
		}
	}
}

// splitFrame extracts the first complete SSE frame (text up to the
// first "\n\n") from buf, per the buffer-and-scan approach in §9:
// keep a bytes buffer, scan for the boundary, slice, shift.
func splitFrame(buf []byte) (frame []byte, rest []byte, found bool) {
	idx := indexDoubleNewline(buf)
	if idx < 0 {
		return nil, buf, false
	}
	return buf[:idx], buf[idx+2:], true
}

func indexDoubleNewline(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == '\n' && buf[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// processFrame handles one SSE frame: extracts the data: payload (if
// any), ignoring comment/id/event lines, and emits the corresponding
// NDJSON chunk. Returns done=true when the frame carries the [DONE]
// sentinel or a non-null finish_reason.
func (s *Session) processFrame(frame []byte, w io.Writer, flusher Flusher) (done bool, err error) {
	payload, hasPayload := extractDataPayload(frame)
	if !hasPayload {
		return false, nil
	}
	if payload == "[DONE]" {
		return true, nil
	}

	s.chunkCount++

	var parsed backendStreamChunk
	if jsonErr := json.Unmarshal([]byte(payload), &parsed); jsonErr != nil {
		return false, nil // malformed chunk, skip rather than abort the stream
	}

	if s.IsChat {
		return s.emitChatDelta(parsed, w, flusher)
	}
	return s.emitGenerateDelta(parsed, w, flusher)
}

// backendStreamChunk covers both chat-delta and completion-delta
// shapes; whichever field applies to the session's mode is read.
type backendStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text         string  `json:"text"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func extractDataPayload(frame []byte) (string, bool) {
	lines := strings.Split(string(frame), "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimPrefix(line, "data: "), true
		}
		if strings.HasPrefix(line, "data:") {
			return strings.TrimPrefix(line, "data:"), true
		}
	}
	return "", false
}

func (s *Session) emitChatDelta(chunk backendStreamChunk, w io.Writer, flusher Flusher) (done bool, err error) {
	content := ""
	finished := false
	if len(chunk.Choices) > 0 {
		content = chunk.Choices[0].Delta.Content
		finished = chunk.Choices[0].FinishReason != nil
	}
	s.partial.append(content)

	if content != "" {
		obj := map[string]any{
			"model":      s.Model,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
			"message":    map[string]any{"role": "assistant", "content": content},
			"done":       false,
		}
		if writeErr := writeNDJSON(w, flusher, obj); writeErr != nil {
			return false, writeErr
		}
	}
	return finished, nil
}

func (s *Session) emitGenerateDelta(chunk backendStreamChunk, w io.Writer, flusher Flusher) (done bool, err error) {
	text := ""
	finished := false
	if len(chunk.Choices) > 0 {
		text = chunk.Choices[0].Text
		finished = chunk.Choices[0].FinishReason != nil
	}
	s.partial.append(text)

	if text != "" {
		obj := map[string]any{
			"model":      s.Model,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
			"response":   text,
			"done":       false,
		}
		if writeErr := writeNDJSON(w, flusher, obj); writeErr != nil {
			return false, writeErr
		}
	}
	return finished, nil
}

// emitFinal writes the normal end-of-stream chunk: same shape as a
// non-streaming response with done:true and synthesized timings. Eval
// count is estimated from accumulated characters / 4 since the backend
// does not supply usage inline in stream chunks.
func (s *Session) emitFinal(w io.Writer, flusher Flusher) error {
	elapsed := time.Since(s.Start)
	evalCount := len(s.partial.String()) / 4
	total := elapsed.Nanoseconds()

	obj := map[string]any{
		"model":                s.Model,
		"created_at":           time.Now().UTC().Format(time.RFC3339Nano),
		"done":                 true,
		"total_duration":       total,
		"load_duration":        int64(0),
		"prompt_eval_count":    0,
		"prompt_eval_duration": total / 2,
		"eval_count":           evalCount,
		"eval_duration":        total / 2,
	}
	if s.IsChat {
		obj["message"] = map[string]any{"role": "assistant", "content": ""}
	} else {
		obj["response"] = ""
	}
	return writeNDJSON(w, flusher, obj)
}

func (s *Session) emitError(w io.Writer, flusher Flusher, message string) error {
	obj := map[string]any{
		"model":      s.Model,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		"error":      message,
		"done":       true,
	}
	return writeNDJSON(w, flusher, obj)
}

// emitCancel writes the cancel-chunk: partial content plus cancelled
// markers, then returns so the caller closes the body cleanly. Never
// an abrupt reset after headers have gone out.
func (s *Session) emitCancel(w io.Writer, flusher Flusher) error {
	obj := map[string]any{
		"model":            s.Model,
		"created_at":       time.Now().UTC().Format(time.RFC3339Nano),
		"done":             true,
		"cancelled":        true,
		"partial_response": true,
	}
	partial := s.partial.String()
	if s.IsChat {
		obj["message"] = map[string]any{"role": "assistant", "content": partial}
	} else {
		obj["response"] = partial
	}
	return writeNDJSON(w, flusher, obj)
}

func writeNDJSON(w io.Writer, flusher Flusher, obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}
