package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/CMBAgents/synapses/pkg/providers"
)

// sseFrame is one streaming chunk in OpenAI-compatible shape, so existing
// chat clients can consume the stream unchanged.
type sseFrame struct {
	ID      string      `json:"id"`
	Object  string      `json:"object"`
	Model   string      `json:"model,omitempty"`
	Choices []sseChoice `json:"choices"`
}

type sseChoice struct {
	Index        int      `json:"index"`
	Delta        sseDelta `json:"delta"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

type sseDelta struct {
	Content string `json:"content,omitempty"`
}

// sseWriter writes stream frames as Server-Sent Events. It implements the
// executor's FrameWriter.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      string
	model   string
}

// newSSEWriter prepares the response for SSE and returns the writer, or an
// error when the ResponseWriter cannot flush.
func newSSEWriter(w http.ResponseWriter, id, model string) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher, id: id, model: model}, nil
}

func (s *sseWriter) writeFrame(frame *sseFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteChunk writes one content frame.
func (s *sseWriter) WriteChunk(chunk *providers.StreamChunk) error {
	id := chunk.ID
	if id == "" {
		id = s.id
	}
	model := chunk.Model
	if model == "" {
		model = s.model
	}
	return s.writeFrame(&sseFrame{
		ID:     id,
		Object: "chat.completion.chunk",
		Model:  model,
		Choices: []sseChoice{{
			Delta:        sseDelta{Content: chunk.Delta},
			FinishReason: chunk.FinishReason,
		}},
	})
}

// WriteDone writes the end-of-stream marker.
func (s *sseWriter) WriteDone() error {
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteCancelled writes a final frame marking the stream as cancelled.
func (s *sseWriter) WriteCancelled() error {
	return s.writeFrame(&sseFrame{
		ID:     s.id,
		Object: "chat.completion.chunk",
		Model:  s.model,
		Choices: []sseChoice{{
			FinishReason: providers.FinishReasonCancelled,
		}},
	})
}

// WriteError writes a terminal error frame. The HTTP status is long gone by
// mid-stream, so the error rides in-band.
func (s *sseWriter) WriteError(err error) error {
	body := struct {
		Error ErrorDetail `json:"error"`
	}{Error: ErrorDetail{
		Kind:    string(providers.Classify(err)),
		Message: err.Error(),
	}}
	data, merr := json.Marshal(body)
	if merr != nil {
		return merr
	}
	if _, werr := fmt.Fprintf(s.w, "data: %s\n\n", data); werr != nil {
		return werr
	}
	s.flusher.Flush()
	return nil
}
