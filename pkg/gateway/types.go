package gateway

import (
	"github.com/CMBAgents/synapses/pkg/providers"
)

// ChatRequest is the body of POST /v1/chat/completions.
type ChatRequest struct {
	// ProgramID selects the documentation context to inject.
	ProgramID string `json:"programId,omitempty"`

	// ModelID is the composite "<provider>/<model>" identifier.
	ModelID string `json:"modelId"`

	// Messages is the conversation so far.
	Messages []providers.Message `json:"messages"`

	// Stream requests an SSE response. It is honored only for models
	// with streaming enabled in the gateway configuration.
	Stream bool `json:"stream,omitempty"`

	// Query optionally overrides the retrieval query; defaults to the
	// last user message.
	Query string `json:"query,omitempty"`

	// Credentials are caller-supplied per-provider credential fields.
	Credentials providers.CredentialSet `json:"credentials,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

// ChatResponse is the non-streaming response body.
type ChatResponse struct {
	ID           string              `json:"id"`
	Model        string              `json:"model"`
	Content      string              `json:"content"`
	FinishReason string              `json:"finishReason,omitempty"`
	Usage        providers.TokenUsage `json:"usage"`
}

// ValidateRequest is the body of POST /v1/credentials/validate.
type ValidateRequest struct {
	// Provider is the registry key to validate against.
	Provider string `json:"provider"`

	// Credentials are the credential fields to check.
	Credentials map[string]string `json:"credentials,omitempty"`
}

// ValidateResponse is the validation result.
type ValidateResponse struct {
	Provider string `json:"provider"`
	Valid    bool   `json:"valid"`
	Message  string `json:"message,omitempty"`
}

// ErrorBody is the error envelope for every non-2xx JSON response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	// Kind is the classified error kind, stable for programmatic use.
	Kind string `json:"kind"`

	// Message is a human-readable description.
	Message string `json:"message"`
}
