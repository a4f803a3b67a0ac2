package vertex

import (
	"github.com/CMBAgents/synapses/pkg/providers"
)

// Wire types for the Vertex AI generateContent API.

// wireRequest is a generateContent request body.
type wireRequest struct {
	Contents          []wireContent   `json:"contents"`
	SystemInstruction *wireContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *wireGenConfig  `json:"generationConfig,omitempty"`
}

// wireContent is a role-tagged list of parts.
type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

// wirePart is a single content part. Only text parts are used.
type wirePart struct {
	Text string `json:"text,omitempty"`
}

// wireGenConfig is the generation configuration block.
type wireGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

// wireResponse is a generateContent response, also used for each SSE frame
// of streamGenerateContent.
type wireResponse struct {
	Candidates    []wireCandidate `json:"candidates,omitempty"`
	UsageMetadata *wireUsage      `json:"usageMetadata,omitempty"`
}

// wireCandidate is a single generation candidate.
type wireCandidate struct {
	Content      wireContent `json:"content"`
	FinishReason string      `json:"finishReason,omitempty"`
	Index        int         `json:"index"`
}

// wireUsage is the token accounting block.
type wireUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// transformRequest converts a provider-agnostic request to Vertex format.
// System messages become the systemInstruction block; assistant messages map
// to the "model" role.
func transformRequest(req *providers.CompletionRequest) *wireRequest {
	out := &wireRequest{}

	for _, msg := range req.Messages {
		switch msg.Role {
		case providers.RoleSystem:
			if out.SystemInstruction == nil {
				out.SystemInstruction = &wireContent{}
			}
			out.SystemInstruction.Parts = append(out.SystemInstruction.Parts, wirePart{Text: msg.Content})
		case providers.RoleAssistant:
			out.Contents = append(out.Contents, wireContent{
				Role:  "model",
				Parts: []wirePart{{Text: msg.Content}},
			})
		default:
			out.Contents = append(out.Contents, wireContent{
				Role:  "user",
				Parts: []wirePart{{Text: msg.Content}},
			})
		}
	}

	if req.MaxTokens > 0 || req.Temperature > 0 {
		out.GenerationConfig = &wireGenConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	return out
}

// candidateText concatenates the text parts of a candidate.
func candidateText(c *wireCandidate) string {
	var text string
	for _, part := range c.Content.Parts {
		text += part.Text
	}
	return text
}

// transformResponse converts a Vertex response to provider-agnostic format.
func transformResponse(provider, model string, resp *wireResponse) (*providers.CompletionResponse, error) {
	if len(resp.Candidates) == 0 {
		return nil, &providers.ParseError{
			Provider: provider,
			Cause:    errNoCandidates,
		}
	}

	candidate := resp.Candidates[0]
	out := &providers.CompletionResponse{
		Model:        model,
		Content:      candidateText(&candidate),
		FinishReason: normalizeFinishReason(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.Usage = providers.TokenUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

// transformStreamFrame converts one streamGenerateContent frame to a chunk.
func transformStreamFrame(model string, resp *wireResponse) *providers.StreamChunk {
	chunk := &providers.StreamChunk{Model: model}
	if len(resp.Candidates) > 0 {
		chunk.Delta = candidateText(&resp.Candidates[0])
		chunk.FinishReason = normalizeFinishReason(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		chunk.Usage = &providers.TokenUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return chunk
}

// normalizeFinishReason maps Vertex finish reasons onto the shared constants.
func normalizeFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return providers.FinishReasonStop
	case "MAX_TOKENS":
		return providers.FinishReasonLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return providers.FinishReasonContentFilter
	case "":
		return ""
	default:
		return reason
	}
}
