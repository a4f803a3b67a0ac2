package openai

import (
	"github.com/CMBAgents/synapses/pkg/providers"
)

// Wire types for the OpenAI-compatible chat completions API. Mistral,
// DeepSeek, and OpenRouter all speak this format, so one adapter covers
// every provider with DialectOpenAI.

// wireRequest is a chat completion request in OpenAI format.
type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	N           int           `json:"n,omitempty"`
}

// wireMessage is a message in OpenAI format.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireResponse is a chat completion response in OpenAI format.
type wireResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

// wireChoice is a completion choice in OpenAI format.
type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// wireUsage is token usage in OpenAI format.
type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// wireStreamResponse is a chunk in the OpenAI SSE stream.
type wireStreamResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []wireStreamChoice `json:"choices"`
	Usage   *wireUsage         `json:"usage,omitempty"`
}

// wireStreamChoice is a choice in a stream chunk.
type wireStreamChoice struct {
	Index        int             `json:"index"`
	Delta        wireStreamDelta `json:"delta"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

// wireStreamDelta is the incremental content in a stream chunk.
type wireStreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// transformRequest converts a provider-agnostic request to OpenAI format.
func transformRequest(req *providers.CompletionRequest) *wireRequest {
	out := &wireRequest{
		Model:       req.Model,
		Messages:    make([]wireMessage, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
		N:           1, // Always generate 1 completion
	}
	for i, msg := range req.Messages {
		out.Messages[i] = wireMessage{Role: msg.Role, Content: msg.Content}
	}
	return out
}

// transformResponse converts an OpenAI response to provider-agnostic format.
func transformResponse(provider string, resp *wireResponse) (*providers.CompletionResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, &providers.ParseError{
			Provider:    provider,
			RawResponse: "",
			Cause:       errNoChoices,
		}
	}

	// Use the first choice (we always request N=1)
	choice := resp.Choices[0]

	return &providers.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: normalizeFinishReason(choice.FinishReason),
		Usage: providers.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Created: resp.Created,
	}, nil
}

// transformStreamChunk converts an OpenAI stream chunk to provider-agnostic
// format. Chunks without choices (usage-only frames) yield an empty delta.
func transformStreamChunk(resp *wireStreamResponse) *providers.StreamChunk {
	chunk := &providers.StreamChunk{
		ID:    resp.ID,
		Model: resp.Model,
	}
	if len(resp.Choices) > 0 {
		chunk.Delta = resp.Choices[0].Delta.Content
		chunk.FinishReason = normalizeFinishReason(resp.Choices[0].FinishReason)
	}
	if resp.Usage != nil {
		chunk.Usage = &providers.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return chunk
}

// normalizeFinishReason maps OpenAI finish reasons onto the shared constants.
func normalizeFinishReason(reason string) string {
	switch reason {
	case "stop":
		return providers.FinishReasonStop
	case "length":
		return providers.FinishReasonLength
	case "content_filter":
		return providers.FinishReasonContentFilter
	default:
		return reason
	}
}
