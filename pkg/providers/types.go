package providers

// Message represents a single message in a conversation.
// It is provider-agnostic and transformed to provider-specific formats by
// each wire dialect.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// CompletionRequest represents a provider-agnostic completion request.
type CompletionRequest struct {
	// Model is the provider-local model identifier (e.g. "gpt-4o",
	// "gemini-1.5-pro"), without the provider prefix.
	Model string `json:"model"`

	// Messages is the caller-supplied conversation history, including any
	// system message carrying assembled program context.
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// Stream indicates whether to stream the response
	Stream bool `json:"stream,omitempty"`
}

// CompletionResponse represents a provider-agnostic completion response.
type CompletionResponse struct {
	// ID is the unique response identifier
	ID string `json:"id"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Content is the generated text content
	Content string `json:"content"`

	// FinishReason indicates why generation stopped (stop, length, ...)
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption information
	Usage TokenUsage `json:"usage"`

	// Created is the Unix timestamp when the response was created
	Created int64 `json:"created"`
}

// StreamChunk represents a single chunk in a streaming response.
type StreamChunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model"`

	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set in the final chunk to indicate why generation stopped
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is included in the final chunk (if supported by the provider)
	Usage *TokenUsage `json:"usage,omitempty"`

	// Err is set if an error occurred during streaming
	Err error `json:"-"`
}

// Dialect identifies the wire format a provider speaks.
type Dialect string

const (
	// DialectOpenAI is the OpenAI-compatible chat completions format,
	// spoken by OpenAI itself and by most aggregators and open-model hosts.
	DialectOpenAI Dialect = "openai-compatible"

	// DialectVertex is the Google Vertex AI generateContent format.
	DialectVertex Dialect = "vertex"
)

// Credential field names used in credential sets.
const (
	FieldAPIKey         = "apiKey"
	FieldProjectID      = "projectId"
	FieldLocation       = "location"
	FieldServiceAccount = "serviceAccount"
)

// Identity is the immutable registry record for a provider.
// Identities are created at process start from the built-in table and
// never mutated afterwards.
type Identity struct {
	// Key is the provider identifier used in composite model ids
	// (e.g. "openai" in "openai/gpt-4o").
	Key string

	// BaseURL is the API endpoint base URL.
	BaseURL string

	// DefaultModel is used when a request names the provider without a model.
	DefaultModel string

	// Dialect selects the wire format the request executor speaks to this
	// provider. This is static registry data, never inferred per request.
	Dialect Dialect

	// CredentialEnv maps credential field names to the environment
	// variables consulted when the caller does not supply that field.
	CredentialEnv map[string]string

	// RequiredFields lists the credential fields that must be present for
	// a request to this provider to be attempted.
	RequiredFields []string
}

// CredentialSet maps provider keys to named secret fields supplied by the
// caller for a single request. It is merged over environment defaults by
// the Resolver and exists only for the lifetime of one request.
type CredentialSet map[string]map[string]string

// Message role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reason constants.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"

	// FinishReasonCancelled is synthesized when a stream is torn down by
	// client disconnect; it never comes from an upstream provider.
	FinishReasonCancelled = "cancelled"
)
