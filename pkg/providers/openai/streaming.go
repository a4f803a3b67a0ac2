package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/CMBAgents/synapses/pkg/providers"
)

// maxSSELineBytes bounds a single SSE line. Chunks are small, but a
// misbehaving upstream could emit a giant line; 1 MiB is generous.
const maxSSELineBytes = 1 << 20

// readStream reads Server-Sent Events from an OpenAI-compatible stream body
// and forwards normalized chunks onto out. It returns when the stream ends
// ("data: [DONE]" or EOF), on a read or parse failure (delivered as a final
// chunk with Err set), or when ctx is cancelled.
func readStream(ctx context.Context, provider string, body io.Reader, out chan<- *providers.StreamChunk) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxSSELineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		// Skip non-data lines (comments, event types).
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			return
		}

		var wire wireStreamResponse
		if err := json.Unmarshal([]byte(data), &wire); err != nil {
			emit(ctx, out, &providers.StreamChunk{
				Err: &providers.ParseError{
					Provider:    provider,
					RawResponse: data,
					Cause:       fmt.Errorf("failed to parse stream chunk: %w", err),
				},
			})
			return
		}

		if !emit(ctx, out, transformStreamChunk(&wire)) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		// Cancellation closes the body mid-read; report that as ctx
		// cancellation rather than a stream failure.
		if ctx.Err() != nil {
			return
		}
		emit(ctx, out, &providers.StreamChunk{
			Err: &providers.StreamError{
				Provider: provider,
				Message:  "failed to read stream",
				Cause:    err,
			},
		})
	}
}

// emit sends a chunk unless the context is cancelled first. Returns false
// when the send was abandoned.
func emit(ctx context.Context, out chan<- *providers.StreamChunk, chunk *providers.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
