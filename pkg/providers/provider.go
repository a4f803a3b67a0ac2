package providers

import "context"

// Provider is the interface all upstream adapters implement. It gives the
// executor a uniform view over wire dialects (OpenAI-compatible, Vertex).
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must respect context cancellation and return promptly when
// the context is cancelled.
//
// Example usage:
//
//	resolution, err := resolver.Resolve("openai/gpt-4o", creds)
//	if err != nil {
//	    return err
//	}
//	p := dialer.Dial(resolution)
//
//	resp, err := p.Complete(ctx, &CompletionRequest{
//	    Model:    resolution.Model,
//	    Messages: []Message{{Role: RoleUser, Content: "Hello!"}},
//	})
type Provider interface {
	// Complete sends a completion request and returns the full response.
	// The request is transformed to the provider's wire format and the
	// response normalized back to the provider-agnostic shape.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// StreamComplete sends a streaming completion request. It returns a
	// channel that yields incremental chunks as they arrive.
	//
	// The caller must drain the channel until it closes. A mid-stream
	// failure is delivered as a final chunk with Err set. Cancelling the
	// context closes the upstream connection and the channel.
	StreamComplete(ctx context.Context, req *CompletionRequest) (<-chan *StreamChunk, error)

	// CheckCredentials verifies the effective credentials are usable,
	// typically with a lightweight upstream call. Returns nil when the
	// credentials are accepted.
	CheckCredentials(ctx context.Context) error

	// Name returns the provider's registry key (e.g. "openai", "vertex").
	Name() string

	// Close releases pooled connections held by the adapter.
	Close() error
}

// Dialer constructs a Provider adapter for a resolution. Implemented by the
// dialect-specific packages and assembled in the executor wiring; injectable
// so tests can substitute fakes.
type Dialer interface {
	Dial(res *Resolution) Provider
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(res *Resolution) Provider

// Dial calls f(res).
func (f DialerFunc) Dial(res *Resolution) Provider { return f(res) }
